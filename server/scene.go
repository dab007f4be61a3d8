package server

import (
	"fmt"
	"html/template"
	"strconv"
	"sync"

	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/fastview"
)

const (
	CLOCK_ID      = "clock"
	sceneTemplate = "scene"
)

// SpriteId returns the svg element id of a sprite, e.g. "sprite-agent".
func SpriteId(kind grid_world.SpriteKind) string {
	return "sprite-" + kind.String()
}

// LabelId returns the svg element id of the annotation text of a cell's action, e.g. "label-2-3-up".
func LabelId(cell grid_world.GridState, action grid_world.Action) string {
	return fmt.Sprintf("label-%d-%d-%s", cell.X, cell.Y, action)
}

// Scene is the browser rendition of the grid world: it implements grid_world.Renderer by
// recording what is drawn, and publishes the whole scene as element updates on every Update.
// Every published snapshot fully describes the scene, so subscribers may drop any of them.
type Scene struct {
	mu      sync.Mutex
	width   int
	height  int
	unit    int
	sprites map[grid_world.SpriteKind]grid_world.Pixel
	top     *grid_world.SpriteKind
	labels  map[string]string
	clock   string
	updates chan []fastview.EleUpdate
}

func NewScene() *Scene {
	return &Scene{
		width:   grid_world.WIDTH,
		height:  grid_world.HEIGHT,
		unit:    grid_world.UNIT,
		sprites: map[grid_world.SpriteKind]grid_world.Pixel{},
		labels:  map[string]string{},
		clock:   grid_world.FormatElapsed(0),
		// Holds only the latest snapshot; see publish.
		updates: make(chan []fastview.EleUpdate, 1),
	}
}

func (s *Scene) DrawGrid(width, height, unit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height, s.unit = width, height, unit
}

func (s *Scene) DrawSprite(sprite grid_world.Sprite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sprites[sprite.Kind] = sprite.Pos
}

func (s *Scene) RaiseSprite(kind grid_world.SpriteKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top = &kind
}

func (s *Scene) DrawText(label grid_world.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[LabelId(label.Cell, label.Action)] = label.Text
}

func (s *Scene) ClearText() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = map[string]string{}
}

func (s *Scene) SetClock(elapsed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = elapsed
}

// Update publishes a snapshot of the scene. It never blocks: an unconsumed
// snapshot is replaced by the newer one.
func (s *Scene) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(s.snapshot())
}

func (s *Scene) publish(snapshot []fastview.EleUpdate) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snapshot
}

// Updates returns the channel of scene snapshots.
func (s *Scene) Updates() <-chan []fastview.EleUpdate {
	return s.updates
}

// Snapshot returns the element updates that bring a freshly parsed scene to its current state.
func (s *Scene) Snapshot() []fastview.EleUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// snapshot lists the clock, every label slot (blank when not drawn), then every sprite.
func (s *Scene) snapshot() (updates []fastview.EleUpdate) {
	updates = append(updates, fastview.EleUpdate{
		EleId: CLOCK_ID,
		Ops:   []fastview.Op{{Key: fastview.TEXT_CONTENT, Value: s.clock}},
	})

	for _, slot := range labelSlots() {
		updates = append(updates, fastview.EleUpdate{
			EleId: slot.Id,
			Ops:   []fastview.Op{{Key: fastview.TEXT_CONTENT, Value: s.labels[slot.Id]}},
		})
	}

	for _, kind := range grid_world.SpriteKinds {
		pos, ok := s.sprites[kind]
		if !ok {
			continue
		}
		corner := spriteCorner(pos)
		ops := []fastview.Op{
			{Key: "x", Value: strconv.Itoa(corner.X)},
			{Key: "y", Value: strconv.Itoa(corner.Y)},
			{Key: "visibility", Value: "visible"},
		}
		if s.top != nil && *s.top == kind {
			ops = append(ops, fastview.Op{Key: fastview.RAISE})
		}
		updates = append(updates, fastview.EleUpdate{EleId: SpriteId(kind), Ops: ops})
	}
	return
}

// spriteCorner converts a sprite's center to the top left corner of its image.
func spriteCorner(center grid_world.Pixel) grid_world.Pixel {
	return grid_world.Pixel{
		X: center.X - grid_world.SPRITE_SIZE/2,
		Y: center.Y - grid_world.SPRITE_SIZE/2,
	}
}

type labelSlot struct {
	Id   string
	X, Y int
}

// labelSlots enumerates the position of every possible label, in column-major cell order.
func labelSlots() (slots []labelSlot) {
	for x := 0; x < grid_world.WIDTH; x++ {
		for y := 0; y < grid_world.HEIGHT; y++ {
			cell := grid_world.GridState{X: x, Y: y}
			for _, action := range grid_world.Actions {
				pos := grid_world.LabelPosition(cell, action)
				slots = append(slots, labelSlot{Id: LabelId(cell, action), X: pos.X, Y: pos.Y})
			}
		}
	}
	return
}

// sceneModel is the template data of the scene's svg.
type sceneModel struct {
	Width, Height int
	Lines         []line
	Sprites       []spriteModel
	Labels        []labelModel
	Clock         string
}

type line struct {
	X1, Y1, X2, Y2 int
}

type spriteModel struct {
	Id, Href   string
	X, Y, Size int
	Visibility string
}

type labelModel struct {
	Id, Text string
	X, Y     int
}

func (s *Scene) model() (m sceneModel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := s.width*s.unit, s.height*s.unit
	// One extra pixel for the closing lines.
	m.Width, m.Height = w+1, h+1
	for c := 0; c <= s.width; c++ {
		m.Lines = append(m.Lines, line{X1: c * s.unit, Y1: 0, X2: c * s.unit, Y2: h})
	}
	for r := 0; r <= s.height; r++ {
		m.Lines = append(m.Lines, line{X1: 0, Y1: r * s.unit, X2: w, Y2: r * s.unit})
	}

	for _, slot := range labelSlots() {
		m.Labels = append(m.Labels, labelModel{Id: slot.Id, X: slot.X, Y: slot.Y, Text: s.labels[slot.Id]})
	}

	// Statics first and the top sprite last, per svg draw order.
	kinds := []grid_world.SpriteKind{}
	for _, kind := range grid_world.SpriteKinds {
		if s.top == nil || *s.top != kind {
			kinds = append(kinds, kind)
		}
	}
	if s.top != nil {
		kinds = append(kinds, *s.top)
	}
	for _, kind := range kinds {
		sm := spriteModel{
			Id:         SpriteId(kind),
			Href:       "/img/" + kind.String(),
			Size:       grid_world.SPRITE_SIZE,
			Visibility: "hidden",
		}
		if pos, ok := s.sprites[kind]; ok {
			corner := spriteCorner(pos)
			sm.X, sm.Y, sm.Visibility = corner.X, corner.Y, "visible"
		}
		m.Sprites = append(m.Sprites, sm)
	}

	m.Clock = s.clock
	return
}

// Parse defines the scene's svg, drawn in its current state, within the passed template.
func (s *Scene) Parse(t *template.Template) (name string, err error) {
	name = sceneTemplate
	model := s.model()
	_, err = t.Funcs(template.FuncMap{
		"sceneModel": func() sceneModel { return model },
	}).Parse(`{{ define "` + name + `" }}
		{{ $scene := sceneModel }}
		<div id="scene-container" style="padding:10px;">
			<p>Elapsed: <span id="` + CLOCK_ID + `">{{ $scene.Clock }}</span></p>
			<svg id="scene" xmlns="http://www.w3.org/2000/svg"
				width="{{ $scene.Width }}px"
				height="{{ $scene.Height }}px"
				style="background: white; shape-rendering: crispEdges;">
				{{ range $line := $scene.Lines }}
				<line x1="{{ $line.X1 }}" y1="{{ $line.Y1 }}" x2="{{ $line.X2 }}" y2="{{ $line.Y2 }}" stroke="black" stroke-width="1"/>
				{{ end }}
				<g id="scene-layer">
					{{ range $sprite := $scene.Sprites }}
					<image id="{{ $sprite.Id }}" href="{{ $sprite.Href }}"
						x="{{ $sprite.X }}" y="{{ $sprite.Y }}"
						width="{{ $sprite.Size }}" height="{{ $sprite.Size }}"
						visibility="{{ $sprite.Visibility }}"/>
					{{ end }}
					{{ range $label := $scene.Labels }}
					<text id="{{ $label.Id }}" x="{{ $label.X }}" y="{{ $label.Y }}"
						font-family="Helvetica" font-size="9" fill="black"
						dominant-baseline="hanging">{{ $label.Text }}</text>
					{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
