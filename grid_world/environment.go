package grid_world

import (
	"errors"
	"fmt"
	"time"
)

// TerminalPolicy determines how Step behaves once an episode has ended and Reset has
// not yet been called.
type TerminalPolicy string

const (
	// STRICT refuses to step a finished episode, returning ErrEpisodeDone.
	STRICT TerminalPolicy = "strict"
	// PERMISSIVE keeps stepping as if nothing happened; the agent may walk off a goal or penalty.
	PERMISSIVE TerminalPolicy = "permissive"
	// AUTORESET resets the environment before applying the action.
	AUTORESET TerminalPolicy = "autoreset"
)

// ParseTerminalPolicy validates a policy name.
func ParseTerminalPolicy(name string) (TerminalPolicy, error) {
	switch policy := TerminalPolicy(name); policy {
	case STRICT, PERMISSIVE, AUTORESET:
		return policy, nil
	}
	return "", fmt.Errorf("unknown terminal policy %q: expected one of %s, %s, %s",
		name, STRICT, PERMISSIVE, AUTORESET)
}

// ErrEpisodeDone is returned by Step under the STRICT policy when the previous step ended the episode.
var ErrEpisodeDone = errors.New("episode is done: Reset must be called before stepping")

const (
	DEFAULT_RENDER_DELAY = 30 * time.Millisecond
	DEFAULT_RESET_DELAY  = 500 * time.Millisecond
	STOPWATCH_PERIOD     = time.Second
)

// Environment is the grid world: one agent sprite moved by actions, three penalty sprites and
// one goal sprite that never move. It is not safe for concurrent use; a single routine is
// expected to drive it, as a learning agent does.
//
// Rendering is paced by short sleeps so that a human can follow the agent; these have
// no effect on the dynamics and may be disabled via WithRenderDelay and WithResetDelay.
type Environment struct {
	renderer Renderer
	agent    Sprite
	// Static sprites, penalties then goal.
	statics []Sprite
	labels  []Label
	active  bool

	policy      TerminalPolicy
	renderDelay time.Duration
	resetDelay  time.Duration
	sleep       func(time.Duration)
	now         func() time.Time
	useWatch    bool
	watch       *stopwatch
}

// Option configures an Environment.
type Option func(*Environment)

// WithRenderDelay sets the pause preceding each render pass.
func WithRenderDelay(d time.Duration) Option {
	return func(env *Environment) { env.renderDelay = d }
}

// WithResetDelay sets the pause at the start of Reset, letting any visualization settle.
func WithResetDelay(d time.Duration) Option {
	return func(env *Environment) { env.resetDelay = d }
}

func WithTerminalPolicy(policy TerminalPolicy) Option {
	return func(env *Environment) { env.policy = policy }
}

// WithClock replaces the time source and sleep function, e.g. for tests.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(env *Environment) {
		env.now = now
		env.sleep = sleep
	}
}

// WithoutStopwatch disables the elapsed time display.
func WithoutStopwatch() Option {
	return func(env *Environment) { env.useWatch = false }
}

// NewEnvironment draws the grid and places every sprite at its design coordinates, with
// the agent at the origin, and starts the elapsed time display. Call Close to stop it.
func NewEnvironment(renderer Renderer, opts ...Option) *Environment {
	if renderer == nil {
		renderer = NopRenderer{}
	}

	env := &Environment{
		renderer:    renderer,
		agent:       Sprite{Kind: AGENT, Pos: Layout[AGENT]},
		active:      true,
		policy:      STRICT,
		renderDelay: DEFAULT_RENDER_DELAY,
		resetDelay:  DEFAULT_RESET_DELAY,
		sleep:       time.Sleep,
		now:         time.Now,
		useWatch:    true,
	}
	for _, opt := range opts {
		opt(env)
	}

	for _, kind := range []SpriteKind{PENALTY_1, PENALTY_2, PENALTY_3, GOAL} {
		env.statics = append(env.statics, Sprite{Kind: kind, Pos: Layout[kind]})
	}

	renderer.DrawGrid(WIDTH, HEIGHT, UNIT)
	renderer.DrawSprite(env.agent)
	for _, sprite := range env.statics {
		renderer.DrawSprite(sprite)
	}
	renderer.RaiseSprite(AGENT)

	if env.useWatch {
		env.watch = startStopwatch(env.now, STOPWATCH_PERIOD, func(elapsed string) {
			renderer.SetClock(elapsed)
			renderer.Update()
		})
	} else {
		renderer.Update()
	}

	return env
}

// Close stops the elapsed time display. The environment may still be stepped afterward.
func (env *Environment) Close() {
	if env.watch != nil {
		env.watch.Stop()
	}
}

// Reset returns the agent to the origin and begins a new episode.
func (env *Environment) Reset() GridState {
	env.renderer.Update()
	env.sleep(env.resetDelay)

	env.agent.Pos = StateToCoords(ORIGIN)
	env.renderer.DrawSprite(env.agent)
	env.Render()

	env.active = true
	return CoordsToState(env.agent.Pos)
}

// Step moves the agent one cell per @action, unless that would leave the grid, and returns
// the agent's new cell, the reward, and whether the episode is done. Reaching the goal yields
// GOAL_REWARD, any penalty cell PENALTY_REWARD; both end the episode. Unknown actions
// do not move the agent.
// The returned error is non-nil only for the STRICT policy, when stepping a finished episode.
func (env *Environment) Step(action Action) (next GridState, reward int, done bool, err error) {
	if !env.active {
		switch env.policy {
		case STRICT:
			return CoordsToState(env.agent.Pos), STEP_REWARD, true, ErrEpisodeDone
		case AUTORESET:
			env.Reset()
		}
	}

	pos := env.agent.Pos
	env.Render()

	dx, dy := moveDelta(pos, action)
	env.agent.Pos = Pixel{X: pos.X + dx, Y: pos.Y + dy}
	env.renderer.DrawSprite(env.agent)
	// Keep the agent visible above the annotation text.
	env.renderer.RaiseSprite(AGENT)

	reward, done = env.reward(env.agent.Pos)
	env.active = !done
	next = CoordsToState(env.agent.Pos)
	return
}

// reward compares the agent's position against each static sprite.
func (env *Environment) reward(pos Pixel) (reward int, done bool) {
	for _, sprite := range env.statics {
		if sprite.Kind == GOAL && sprite.Pos == pos {
			return GOAL_REWARD, true
		}
	}
	for _, sprite := range env.statics {
		if sprite.Kind.IsPenalty() && sprite.Pos == pos {
			return PENALTY_REWARD, true
		}
	}
	return STEP_REWARD, false
}

// Render pauses briefly and then flushes all pending drawing.
func (env *Environment) Render() {
	env.sleep(env.renderDelay)
	env.renderer.Update()
}

// Annotate replaces the overlay text with the values of @table: for every cell with an
// entry, each action's value is drawn, rounded to two decimals, toward that action's
// side of the cell. Malformed and off-grid keys are ignored.
// Annotate does not flush the renderer; the next render pass does.
func (env *Environment) Annotate(table ValueTable) {
	env.renderer.ClearText()
	env.labels = env.labels[:0]

	cells := table.cells()
	for x := 0; x < WIDTH; x++ {
		for y := 0; y < HEIGHT; y++ {
			cell := GridState{X: x, Y: y}
			values, ok := cells[cell]
			if !ok {
				continue
			}
			for _, action := range Actions {
				label := Label{
					Cell:   cell,
					Action: action,
					Pos:    LabelPosition(cell, action),
					Text:   FormatValue(values[action]),
				}
				env.labels = append(env.labels, label)
				env.renderer.DrawText(label)
			}
		}
	}
}

// Agent returns the agent's current cell.
func (env *Environment) Agent() GridState {
	return CoordsToState(env.agent.Pos)
}

// Sprites returns every sprite, agent first.
func (env *Environment) Sprites() []Sprite {
	return append([]Sprite{env.agent}, env.statics...)
}

// Labels returns the overlay text currently drawn.
func (env *Environment) Labels() []Label {
	return append([]Label(nil), env.labels...)
}

// Active is true between a Reset (or construction) and a terminal step.
func (env *Environment) Active() bool {
	return env.active
}

// Elapsed returns the time since construction, or zero if the stopwatch is disabled.
func (env *Environment) Elapsed() time.Duration {
	if env.watch == nil {
		return 0
	}
	return env.watch.Elapsed()
}
