// grid_world contains the 5x5 grid environment: geometry, sprites, the reward function,
// and the conversions between canvas pixels and discrete cell states.
package grid_world

import (
	"fmt"
)

// GridState is the discrete cell of the agent. X is the horizontal cell index (derived
// from the pixel x coordinate) and Y the vertical one, such that the origin (0,0) is the
// top left cell as drawn on the canvas.
type GridState struct {
	X, Y int
}

func (s GridState) String() string {
	return StateKey(s)
}

// InBounds reports whether the state lies on the grid.
func (s GridState) InBounds() bool {
	return s.X >= 0 && s.X < WIDTH && s.Y >= 0 && s.Y < HEIGHT
}

// Pixel is a canvas coordinate. Sprites are positioned by their center.
type Pixel struct {
	X, Y int
}

// Action is one of the four compass moves. Values outside of [UP, RIGHT] are valid
// inputs to Step, which treats them as no-ops.
type Action int

const (
	UP Action = iota
	DOWN
	LEFT
	RIGHT
)

var actionNames = [NUM_ACTIONS]string{"up", "down", "left", "right"}

// Actions is the action space in index order, as used for value table entries.
var Actions = [NUM_ACTIONS]Action{UP, DOWN, LEFT, RIGHT}

func (a Action) Valid() bool {
	return a >= UP && a <= RIGHT
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// SpriteKind is the visual identity of a sprite.
type SpriteKind int

const (
	AGENT SpriteKind = iota
	PENALTY_1
	PENALTY_2
	PENALTY_3
	GOAL
)

// SpriteKinds lists every sprite identity, in draw order.
var SpriteKinds = []SpriteKind{AGENT, PENALTY_1, PENALTY_2, PENALTY_3, GOAL}

var spriteNames = map[SpriteKind]string{
	AGENT:     "agent",
	PENALTY_1: "penalty1",
	PENALTY_2: "penalty2",
	PENALTY_3: "penalty3",
	GOAL:      "goal",
}

func (k SpriteKind) String() string {
	if name, ok := spriteNames[k]; ok {
		return name
	}
	return fmt.Sprintf("sprite(%d)", int(k))
}

// ParseSpriteKind returns the kind whose String() is @name.
func ParseSpriteKind(name string) (SpriteKind, bool) {
	for kind, kindName := range spriteNames {
		if kindName == name {
			return kind, true
		}
	}
	return 0, false
}

// IsPenalty reports whether stepping onto this sprite ends the episode with a penalty.
func (k SpriteKind) IsPenalty() bool {
	return k == PENALTY_1 || k == PENALTY_2 || k == PENALTY_3
}

// Sprite is a fixed-size image placed at a pixel position on the canvas.
type Sprite struct {
	Kind SpriteKind
	Pos  Pixel
}

// Label is an overlay text item, a single action value drawn within a cell.
type Label struct {
	Cell   GridState
	Action Action
	Pos    Pixel
	Text   string
}

const (
	// Geometry: a WIDTH x HEIGHT grid of UNIT sized cells.
	UNIT      = 100
	HALF_UNIT = UNIT / 2
	HEIGHT    = 5
	WIDTH     = 5

	// Sprite images are scaled to this square footprint.
	SPRITE_SIZE = 65

	NUM_ACTIONS = 4

	// Rewards
	GOAL_REWARD    = 100
	PENALTY_REWARD = -100
	STEP_REWARD    = 0
)

// ORIGIN is the agent's start cell.
var ORIGIN = GridState{X: 0, Y: 0}

// Layout holds the fixed design coordinates of every sprite.
var Layout = map[SpriteKind]Pixel{
	AGENT:     {X: 50, Y: 50},
	PENALTY_1: {X: 250, Y: 150},
	PENALTY_2: {X: 150, Y: 250},
	PENALTY_3: {X: 250, Y: 350},
	GOAL:      {X: 250, Y: 250},
}

// labelOffsets are the per-action positions of annotation text, relative to the top left of a cell.
// Up and down values sit at the top and bottom edges, left and right values at the sides.
var labelOffsets = [NUM_ACTIONS]Pixel{
	UP:    {X: 42, Y: 7},
	DOWN:  {X: 42, Y: 85},
	LEFT:  {X: 5, Y: 42},
	RIGHT: {X: 77, Y: 42},
}

// CoordsToState converts a sprite's center pixel to its cell.
func CoordsToState(p Pixel) GridState {
	return GridState{
		X: (p.X - HALF_UNIT) / UNIT,
		Y: (p.Y - HALF_UNIT) / UNIT,
	}
}

// StateToCoords converts a cell to the pixel at its center.
func StateToCoords(s GridState) Pixel {
	return Pixel{
		X: s.X*UNIT + HALF_UNIT,
		Y: s.Y*UNIT + HALF_UNIT,
	}
}

// LabelPosition returns the pixel at which the value of @action is drawn within @cell.
func LabelPosition(cell GridState, action Action) Pixel {
	off := labelOffsets[action]
	return Pixel{
		X: cell.X*UNIT + off.X,
		Y: cell.Y*UNIT + off.Y,
	}
}

// moveDelta returns the pixel displacement of @action from @pos. A move that would leave
// the grid yields a zero displacement on that axis, as do unknown actions.
func moveDelta(pos Pixel, action Action) (dx, dy int) {
	switch action {
	case UP:
		if pos.Y > UNIT {
			dy = -UNIT
		}
	case DOWN:
		if pos.Y < (HEIGHT-1)*UNIT {
			dy = UNIT
		}
	case LEFT:
		if pos.X > UNIT {
			dx = -UNIT
		}
	case RIGHT:
		if pos.X < (WIDTH-1)*UNIT {
			dx = UNIT
		}
	}
	return
}
