// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"github.com/mvtalan/Q-Learning-m/grid_world"
)

// Cell is a view-model of a single grid cell, converted from a value table, such that
// [x][y] is the cell x units right and y units down from the top left of the grid.
// As a rule of thumb, Cell fields should be immediately usable as view parameters.
type Cell struct {
	X, Y                int
	Max                 float64
	PolicyArrowRotation int
	Visited             bool
	Fill                string
}

// Convert transforms the passed value table into Cells for consumption by value views.
// Cells absent from the table have zero value and no policy.
func Convert(table grid_world.ValueTable) (cells [][]Cell) {
	cells = make([][]Cell, grid_world.WIDTH)
	for x := range cells {
		cells[x] = make([]Cell, grid_world.HEIGHT)
		for y := range cells[x] {
			cells[x][y] = Cell{X: x, Y: y, Fill: "white"}
		}
	}

	for kind, pos := range grid_world.Layout {
		cell := grid_world.CoordsToState(pos)
		cells[cell.X][cell.Y].Fill = getFill(kind)
	}

	for key, values := range table {
		state, err := grid_world.ParseStateKey(key)
		if err != nil || !state.InBounds() {
			continue
		}
		cell := &cells[state.X][state.Y]
		best := bestAction(values)
		cell.Max = values[best]
		cell.PolicyArrowRotation = getDegrees(best)
		cell.Visited = true
	}
	return
}

// bestAction returns the first action of maximal value.
func bestAction(values [grid_world.NUM_ACTIONS]float64) (best grid_world.Action) {
	for _, action := range grid_world.Actions {
		if values[action] > values[best] {
			best = action
		}
	}
	return
}

// getDegrees returns the degrees passed to svg's rotate() for an upward arrow rune to point toward the action.
func getDegrees(action grid_world.Action) int {
	switch action {
	case grid_world.RIGHT:
		return 90
	case grid_world.DOWN:
		return 180
	case grid_world.LEFT:
		return 270
	}
	return 0
}

func getFill(kind grid_world.SpriteKind) (fill string) {
	switch {
	case kind == grid_world.AGENT:
		fill = "lightblue"
	case kind.IsPenalty():
		fill = "mistyrose"
	case kind == grid_world.GOAL:
		fill = "lightyellow"
	}
	return
}
