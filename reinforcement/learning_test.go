package reinforcement

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mvtalan/Q-Learning-m/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

func newLearner(params map[string]float64, algorithm string) *Learner {
	cfg := DefaultConfig()
	cfg.Algorithm["name"] = algorithm
	for k, v := range params {
		cfg.SetHyperParam(k, v)
	}
	l, err := NewLearner(cfg, rand.New(rand.NewSource(7)))
	So(err, ShouldBeNil)
	return l
}

func newEnv() *grid_world.Environment {
	return grid_world.NewEnvironment(
		grid_world.NopRenderer{},
		grid_world.WithClock(time.Now, func(time.Duration) {}),
		grid_world.WithoutStopwatch())
}

func TestQTable(t *testing.T) {
	Convey("Given an empty Q-table", t, func() {
		q := NewQTable()
		s := grid_world.GridState{X: 1, Y: 3}

		So(q.Get(s, grid_world.UP), ShouldEqual, 0.0)
		So(len(q.ValueTable()), ShouldEqual, 0)

		Convey("Updates are visible in the value table snapshot", func() {
			q.Set(s, grid_world.LEFT, 2.5)
			So(q.Add(s, grid_world.LEFT, 0.5), ShouldEqual, 3.0)
			table := q.ValueTable()
			So(len(table), ShouldEqual, 1)
			So(table["[1, 3]"], ShouldResemble, [grid_world.NUM_ACTIONS]float64{0, 0, 3, 0})
			So(q.Max(s), ShouldEqual, 3.0)
			So(q.Best(s, rand.New(rand.NewSource(1))), ShouldEqual, grid_world.LEFT)
		})

		Convey("Off-grid states and invalid actions are ignored", func() {
			q.Set(grid_world.GridState{X: -1, Y: 0}, grid_world.UP, 1)
			q.Set(s, grid_world.Action(9), 1)
			So(q.Add(grid_world.GridState{X: 5, Y: 5}, grid_world.UP, 1), ShouldEqual, 0.0)
			So(len(q.ValueTable()), ShouldEqual, 0)
		})

		Convey("Ties are broken among the best actions only", func() {
			q.Set(s, grid_world.UP, 1)
			q.Set(s, grid_world.RIGHT, 1)
			q.Set(s, grid_world.DOWN, -1)
			rng := rand.New(rand.NewSource(3))
			seen := map[grid_world.Action]bool{}
			for i := 0; i < 100; i++ {
				seen[q.Best(s, rng)] = true
			}
			So(seen, ShouldResemble, map[grid_world.Action]bool{grid_world.UP: true, grid_world.RIGHT: true})
		})

		Convey("A cell of diverged values still yields a valid action", func() {
			for _, a := range grid_world.Actions {
				q.Set(s, a, math.NaN())
			}
			rng := rand.New(rand.NewSource(5))
			for i := 0; i < 20; i++ {
				So(q.Best(s, rng).Valid(), ShouldBeTrue)
			}
		})
	})
}

func TestLearn(t *testing.T) {
	Convey("When learning from transitions", t, func() {
		beside := grid_world.GridState{X: 3, Y: 2}
		goal := grid_world.GridState{X: 2, Y: 2}

		Convey("Repeatedly reaching the goal raises the value of the move toward it", func() {
			l := newLearner(map[string]float64{"eta": 0.5}, QLEARNING)
			last := 0.0
			for i := 0; i < 10; i++ {
				l.Learn(beside, grid_world.LEFT, grid_world.GOAL_REWARD, goal, grid_world.UP, true)
				val := l.Table().Get(beside, grid_world.LEFT)
				So(val, ShouldBeGreaterThan, last)
				last = val
			}
			So(last, ShouldBeLessThanOrEqualTo, float64(grid_world.GOAL_REWARD))
			So(last, ShouldBeGreaterThan, 99.0)
		})

		Convey("Q-learning bootstraps from the best successor action", func() {
			l := newLearner(map[string]float64{"eta": 1, "gamma": 0.5}, QLEARNING)
			l.Table().Set(beside, grid_world.LEFT, 100)
			from := grid_world.GridState{X: 4, Y: 2}
			delta := l.Learn(from, grid_world.LEFT, 0, beside, grid_world.DOWN, false)
			So(delta, ShouldEqual, 50.0)
			So(l.Table().Get(from, grid_world.LEFT), ShouldEqual, 50.0)
		})

		Convey("SARSA bootstraps from the action actually taken next", func() {
			l := newLearner(map[string]float64{"eta": 1, "gamma": 0.5}, SARSA)
			l.Table().Set(beside, grid_world.LEFT, 100)
			from := grid_world.GridState{X: 4, Y: 2}
			delta := l.Learn(from, grid_world.LEFT, 0, beside, grid_world.DOWN, false)
			So(delta, ShouldEqual, 0.0)
		})

		Convey("Penalties lower the value of the move into them", func() {
			l := newLearner(map[string]float64{"eta": 0.1}, QLEARNING)
			l.Learn(grid_world.GridState{X: 2, Y: 0}, grid_world.DOWN, grid_world.PENALTY_REWARD, grid_world.GridState{X: 2, Y: 1}, grid_world.UP, true)
			So(l.Table().Get(grid_world.GridState{X: 2, Y: 0}, grid_world.DOWN), ShouldEqual, -10.0)
		})
	})

	Convey("Unknown algorithms are rejected", t, func() {
		cfg := DefaultConfig()
		cfg.Algorithm["name"] = "dqn"
		_, err := NewLearner(cfg, rand.New(rand.NewSource(1)))
		So(errors.Is(err, ErrUnknownAlgorithm), ShouldBeTrue)
	})
}

func TestTrain(t *testing.T) {
	Convey("When training against the grid world", t, func() {
		env := newEnv()
		l := newLearner(map[string]float64{"eta": 0.5, "epsilon": 0.2, "maxSteps": 200}, QLEARNING)

		Convey("The requested number of episodes complete and are reported", func() {
			var reported []EpisodeResult
			results, err := Train(context.Background(), env, l, 40, func(_ context.Context, r EpisodeResult) {
				reported = append(reported, r)
			})
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 40)
			So(reported, ShouldResemble, results)

			for i, r := range results {
				So(r.Episode, ShouldEqual, i+1)
				So(r.Steps, ShouldBeGreaterThan, 0)
				if r.Truncated {
					So(r.Steps, ShouldEqual, 200)
					So(r.Reward, ShouldEqual, 0)
				} else {
					So(r.Reward, ShouldBeIn, []int{grid_world.GOAL_REWARD, grid_world.PENALTY_REWARD})
				}
			}

			Convey("And the environment displays the learned values", func() {
				So(len(env.Labels()), ShouldBeGreaterThan, 0)
				So(len(l.Table().ValueTable())*grid_world.NUM_ACTIONS, ShouldEqual, len(env.Labels()))
			})
		})

		Convey("A cancelled context stops training without error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			results, err := Train(ctx, env, l, 0, func(_ context.Context, r EpisodeResult) {
				if r.Episode == 5 {
					cancel()
				}
			})
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 5)
		})

		Convey("Environment errors abort training", func() {
			_, err := Train(context.Background(), &failingEnv{}, l, 3, nil)
			So(errors.Is(err, grid_world.ErrEpisodeDone), ShouldBeTrue)
		})
	})
}

type failingEnv struct{}

func (*failingEnv) Reset() grid_world.GridState { return grid_world.ORIGIN }
func (*failingEnv) Step(grid_world.Action) (grid_world.GridState, int, bool, error) {
	return grid_world.ORIGIN, 0, true, grid_world.ErrEpisodeDone
}
func (*failingEnv) Annotate(grid_world.ValueTable) {}
