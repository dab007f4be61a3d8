package grid_world

import (
	"fmt"
	"io"
	"math"
)

// Glyphs used by the console printers.
var spriteGlyphs = map[SpriteKind]rune{
	AGENT:     'A',
	PENALTY_1: 'X',
	PENALTY_2: 'X',
	PENALTY_3: 'X',
	GOAL:      'G',
}

// Glyph returns the console rune of a sprite kind.
func Glyph(kind SpriteKind) rune {
	if r, ok := spriteGlyphs[kind]; ok {
		return r
	}
	return '?'
}

// ShowGrid prints the grid, for visual reference: the agent, penalties and goal as glyphs, empty cells as '.'.
// The agent is printed over any static sprite it stands on.
func ShowGrid(w io.Writer, env *Environment) {
	var grid [HEIGHT][WIDTH]rune
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}
	// Agent is first, so print the statics first and overwrite.
	sprites := env.Sprites()
	for i := len(sprites) - 1; i >= 0; i-- {
		cell := CoordsToState(sprites[i].Pos)
		grid[cell.Y][cell.X] = Glyph(sprites[i].Kind)
	}

	for y := range grid {
		for x := range grid[y] {
			fmt.Fprintf(w, "%c ", grid[y][x])
		}
		fmt.Fprintln(w)
	}
}

// ShowValues prints the max action value of each cell in the table, and '-' for cells without one.
func ShowValues(w io.Writer, table ValueTable) {
	cells := table.cells()
	fmt.Fprintln(w, "Max vals:")
	for y := 0; y < HEIGHT; y++ {
		fmt.Fprint(w, " ")
		for x := 0; x < WIDTH; x++ {
			values, ok := cells[GridState{X: x, Y: y}]
			if !ok {
				fmt.Fprintf(w, "%8s ", "-")
				continue
			}
			fmt.Fprintf(w, "%8.2f ", MaxValue(values))
		}
		fmt.Fprintln(w)
	}
}

// MaxValue returns the largest of a cell's action values.
func MaxValue(values [NUM_ACTIONS]float64) float64 {
	max := -math.MaxFloat64
	for _, v := range values {
		max = math.Max(max, v)
	}
	return max
}
