package grid_world

import (
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// recorder is a Renderer that remembers what was drawn.
type recorder struct {
	mu      sync.Mutex
	grid    [3]int
	sprites map[SpriteKind]Pixel
	raised  []SpriteKind
	texts   []Label
	clocks  []string
	updates int
}

func newRecorder() *recorder {
	return &recorder{sprites: map[SpriteKind]Pixel{}}
}

func (r *recorder) DrawGrid(width, height, unit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grid = [3]int{width, height, unit}
}

func (r *recorder) DrawSprite(sprite Sprite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sprites[sprite.Kind] = sprite.Pos
}

func (r *recorder) RaiseSprite(kind SpriteKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raised = append(r.raised, kind)
}

func (r *recorder) DrawText(label Label) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, label)
}

func (r *recorder) ClearText() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = nil
}

func (r *recorder) SetClock(elapsed string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clocks = append(r.clocks, elapsed)
}

func (r *recorder) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
}

func (r *recorder) lastClock() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clocks) == 0 {
		return ""
	}
	return r.clocks[len(r.clocks)-1]
}

func noSleep(time.Duration) {}

func newTestEnv(rd Renderer, opts ...Option) *Environment {
	opts = append([]Option{WithClock(time.Now, noSleep), WithoutStopwatch()}, opts...)
	return NewEnvironment(rd, opts...)
}

func TestCoordinates(t *testing.T) {
	Convey("When converting between cells and pixels", t, func() {
		Convey("Every cell round trips through its center pixel", func() {
			for x := 0; x < WIDTH; x++ {
				for y := 0; y < HEIGHT; y++ {
					s := GridState{X: x, Y: y}
					So(CoordsToState(StateToCoords(s)), ShouldResemble, s)
				}
			}
		})

		Convey("The design coordinates land on the expected cells", func() {
			So(CoordsToState(Layout[AGENT]), ShouldResemble, GridState{0, 0})
			So(CoordsToState(Layout[PENALTY_1]), ShouldResemble, GridState{2, 1})
			So(CoordsToState(Layout[PENALTY_2]), ShouldResemble, GridState{1, 2})
			So(CoordsToState(Layout[PENALTY_3]), ShouldResemble, GridState{2, 3})
			So(CoordsToState(Layout[GOAL]), ShouldResemble, GridState{2, 2})
		})

		Convey("Label positions are offset within the cell", func() {
			cell := GridState{X: 3, Y: 1}
			So(LabelPosition(cell, UP), ShouldResemble, Pixel{342, 107})
			So(LabelPosition(cell, DOWN), ShouldResemble, Pixel{342, 185})
			So(LabelPosition(cell, LEFT), ShouldResemble, Pixel{305, 142})
			So(LabelPosition(cell, RIGHT), ShouldResemble, Pixel{377, 142})
		})
	})
}

func TestActions(t *testing.T) {
	Convey("Actions have names and validity", t, func() {
		So(UP.String(), ShouldEqual, "up")
		So(RIGHT.String(), ShouldEqual, "right")
		So(Action(7).Valid(), ShouldBeFalse)
		So(Action(-1).String(), ShouldEqual, "action(-1)")
	})
}

func TestSpriteKinds(t *testing.T) {
	Convey("Sprite kinds parse back from their names", t, func() {
		for _, kind := range SpriteKinds {
			parsed, ok := ParseSpriteKind(kind.String())
			So(ok, ShouldBeTrue)
			So(parsed, ShouldEqual, kind)
		}
		_, ok := ParseSpriteKind("bowser")
		So(ok, ShouldBeFalse)
		So(PENALTY_2.IsPenalty(), ShouldBeTrue)
		So(GOAL.IsPenalty(), ShouldBeFalse)
	})
}

func TestStateKeys(t *testing.T) {
	Convey("When serializing cells", t, func() {
		So(StateKey(GridState{2, 3}), ShouldEqual, "[2, 3]")

		Convey("Keys parse back, with or without spaces", func() {
			s, err := ParseStateKey("[2, 3]")
			So(err, ShouldBeNil)
			So(s, ShouldResemble, GridState{2, 3})

			s, err = ParseStateKey(" [4,0] ")
			So(err, ShouldBeNil)
			So(s, ShouldResemble, GridState{4, 0})
		})

		Convey("Malformed keys are rejected", func() {
			for _, key := range []string{"", "2, 3", "[2]", "[a, b]", "[1, 2, 3]", "(1, 2)"} {
				_, err := ParseStateKey(key)
				So(errors.Is(err, ErrMalformedKey), ShouldBeTrue)
			}
		})
	})

	Convey("Values are rounded to two decimals", t, func() {
		So(FormatValue(0), ShouldEqual, "0.0")
		So(FormatValue(-100), ShouldEqual, "-100.0")
		So(FormatValue(0.456), ShouldEqual, "0.46")
		So(FormatValue(12.3), ShouldEqual, "12.3")
	})
}

func TestStopwatch(t *testing.T) {
	Convey("The elapsed time is formatted as minutes and seconds", t, func() {
		So(FormatElapsed(0), ShouldEqual, "00:00")
		So(FormatElapsed(75*time.Second+400*time.Millisecond), ShouldEqual, "01:15")
		So(FormatElapsed(61*time.Minute), ShouldEqual, "61:00")
	})

	Convey("When the stopwatch runs", t, func() {
		var mu sync.Mutex
		start := time.Unix(1000, 0)
		now := start
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		ticks := make(chan string, 100)
		sw := startStopwatch(clock, time.Millisecond*5, func(elapsed string) {
			select {
			case ticks <- elapsed:
			default:
			}
		})

		So(<-ticks, ShouldEqual, "00:00")

		mu.Lock()
		now = start.Add(2*time.Minute + 5*time.Second)
		mu.Unlock()

		Convey("Ticks report the elapsed time until stopped", func() {
			var last string
			for last != "02:05" {
				select {
				case last = <-ticks:
				case <-time.After(time.Second):
					t.Fatal("no tick received")
				}
			}
			So(sw.Elapsed(), ShouldEqual, 2*time.Minute+5*time.Second)

			sw.Stop()
			sw.Stop()
			for len(ticks) > 0 {
				<-ticks
			}
			time.Sleep(time.Millisecond * 20)
			So(len(ticks), ShouldEqual, 0)
		})

	})
}
