// terminal renders the grid world as text, redrawn in place on every update.
package terminal

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mvtalan/Q-Learning-m/grid_world"

	"github.com/gosuri/uilive"
	"github.com/logrusorgru/aurora"
)

// A cell is its glyph and the best annotated value, each followed by a space.
const (
	valueWidth = 6
	cellWidth  = valueWidth + 3
)

// Renderer implements grid_world.Renderer by printing the grid as a frame of text, which
// replaces the previous frame on every Update. Each cell shows the glyph of its sprite
// and the best of its annotated action values.
type Renderer struct {
	mu      sync.Mutex
	out     *uilive.Writer
	au      aurora.Aurora
	width   int
	height  int
	sprites map[grid_world.SpriteKind]grid_world.Pixel
	top     *grid_world.SpriteKind
	labels  map[grid_world.GridState][grid_world.NUM_ACTIONS]string
	clock   string
}

// NewRenderer returns a renderer writing to @w, colored when @colors is set.
func NewRenderer(w io.Writer, colors bool) *Renderer {
	out := uilive.New()
	out.Out = w
	return &Renderer{
		out:     out,
		au:      aurora.NewAurora(colors),
		width:   grid_world.WIDTH,
		height:  grid_world.HEIGHT,
		sprites: map[grid_world.SpriteKind]grid_world.Pixel{},
		labels:  map[grid_world.GridState][grid_world.NUM_ACTIONS]string{},
		clock:   grid_world.FormatElapsed(0),
	}
}

func (r *Renderer) DrawGrid(width, height, unit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

func (r *Renderer) DrawSprite(sprite grid_world.Sprite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sprites[sprite.Kind] = sprite.Pos
}

func (r *Renderer) RaiseSprite(kind grid_world.SpriteKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.top = &kind
}

func (r *Renderer) DrawText(label grid_world.Label) {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := r.labels[label.Cell]
	texts[label.Action] = label.Text
	r.labels[label.Cell] = texts
}

func (r *Renderer) ClearText() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = map[grid_world.GridState][grid_world.NUM_ACTIONS]string{}
}

func (r *Renderer) SetClock(elapsed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = elapsed
}

// Update redraws the frame in place. Write errors are dropped; the next update retries.
func (r *Renderer) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, r.frame())
	_ = r.out.Flush()
}

// Frame returns the current frame.
func (r *Renderer) Frame() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame()
}

func (r *Renderer) frame() string {
	glyphs := r.glyphs()

	var sb strings.Builder
	sb.WriteString("Elapsed " + r.au.Bold(r.clock).String() + "\n")
	border := "+" + strings.Repeat(strings.Repeat("-", cellWidth)+"+", r.width) + "\n"
	sb.WriteString(border)
	for y := 0; y < r.height; y++ {
		sb.WriteString("|")
		for x := 0; x < r.width; x++ {
			cell := grid_world.GridState{X: x, Y: y}
			sb.WriteString(r.colorGlyph(glyphs[cell]))
			sb.WriteString(" ")
			sb.WriteString(r.colorValue(r.bestLabel(cell)))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
		sb.WriteString(border)
	}
	return sb.String()
}

// glyphs places the drawn sprites, the top sprite over any it shares a cell with.
func (r *Renderer) glyphs() map[grid_world.GridState]rune {
	glyphs := map[grid_world.GridState]rune{}
	for _, kind := range grid_world.SpriteKinds {
		if r.top != nil && *r.top == kind {
			continue
		}
		if pos, ok := r.sprites[kind]; ok {
			glyphs[grid_world.CoordsToState(pos)] = grid_world.Glyph(kind)
		}
	}
	if r.top != nil {
		if pos, ok := r.sprites[*r.top]; ok {
			glyphs[grid_world.CoordsToState(pos)] = grid_world.Glyph(*r.top)
		}
	}
	return glyphs
}

func (r *Renderer) colorGlyph(glyph rune) string {
	switch glyph {
	case 0:
		return r.au.Faint(".").String()
	case grid_world.Glyph(grid_world.AGENT):
		return r.au.Bold(r.au.Cyan(string(glyph))).String()
	case grid_world.Glyph(grid_world.GOAL):
		return r.au.Green(string(glyph)).String()
	default:
		return r.au.Red(string(glyph)).String()
	}
}

// bestLabel returns the text of the cell's largest annotated value, or "" if it has none.
func (r *Renderer) bestLabel(cell grid_world.GridState) (best string) {
	texts, ok := r.labels[cell]
	if !ok {
		return
	}
	max := math.Inf(-1)
	for _, text := range texts {
		val, err := strconv.ParseFloat(text, 64)
		if err != nil {
			continue
		}
		if val > max {
			max, best = val, text
		}
	}
	return
}

func (r *Renderer) colorValue(text string) string {
	padded := fmt.Sprintf("%*s", valueWidth, text)
	if len(padded) > valueWidth {
		padded = padded[:valueWidth]
	}
	switch {
	case strings.HasPrefix(text, "-"):
		return r.au.Red(padded).String()
	case text == "" || text == "0.0":
		return padded
	default:
		return r.au.Green(padded).String()
	}
}
