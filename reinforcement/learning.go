package reinforcement

/*
Tabular Q-learning (and SARSA) against the grid world. The environment is stepped by a single
routine; the Q-table is readable concurrently, such that views and HTTP handlers can display
values while training runs. After every step the table is passed back to the environment as
an annotation, so the value of each action is drawn in its cell as learning progresses.
*/

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/mvtalan/Q-Learning-m/grid_world"
)

// Environment is the part of grid_world.Environment the learner drives.
type Environment interface {
	Reset() grid_world.GridState
	Step(grid_world.Action) (grid_world.GridState, int, bool, error)
	Annotate(grid_world.ValueTable)
}

const (
	QLEARNING = "qlearning"
	SARSA     = "sarsa"

	DEFAULT_EPSILON   = 0.1
	DEFAULT_ETA       = 0.01
	DEFAULT_GAMMA     = 0.9
	DEFAULT_MAX_STEPS = 1000
)

// ErrUnknownAlgorithm is returned for an algorithm name other than qlearning or sarsa.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Learner holds the Q-table and the hyper parameters of an epsilon-greedy agent.
type Learner struct {
	table     *QTable
	algorithm string
	// Epsilon: the agent exploration/exploitation policy param.
	epsilon float64
	// Eta: the learning rate
	eta float64
	// Gamma: the look-ahead parameter, or how much to value future state values.
	gamma    float64
	maxSteps int
	rng      *rand.Rand
}

// NewLearner builds a learner from the config's algorithm and hyper parameters.
func NewLearner(cfg *TrainingConfig, rng *rand.Rand) (*Learner, error) {
	algorithm := cfg.Algorithm["name"]
	switch algorithm {
	case "":
		algorithm = QLEARNING
	case QLEARNING, SARSA:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	return &Learner{
		table:     NewQTable(),
		algorithm: algorithm,
		epsilon:   cfg.GetHyperParamOrDefault("epsilon", DEFAULT_EPSILON),
		eta:       cfg.GetHyperParamOrDefault("eta", DEFAULT_ETA),
		gamma:     cfg.GetHyperParamOrDefault("gamma", DEFAULT_GAMMA),
		maxSteps:  int(cfg.GetHyperParamOrDefault("maxSteps", DEFAULT_MAX_STEPS)),
		rng:       rng,
	}, nil
}

func (l *Learner) Table() *QTable {
	return l.table
}

func (l *Learner) Algorithm() string {
	return l.algorithm
}

// Policy is epsilon-greedy: with probability epsilon a random action, else the best one.
func (l *Learner) Policy(s grid_world.GridState) grid_world.Action {
	if l.rng.Float64() < l.epsilon {
		return grid_world.Actions[l.rng.Intn(grid_world.NUM_ACTIONS)]
	}
	return l.table.Best(s, l.rng)
}

// Learn applies the temporal difference update for the transition (s, a, r, s').
// Q-learning bootstraps from max Q(s'); SARSA from Q(s', a') for the action a' the
// policy will take next. Terminal transitions bootstrap from nothing.
// Returns the delta added to Q(s,a).
func (l *Learner) Learn(
	s grid_world.GridState,
	a grid_world.Action,
	reward float64,
	next grid_world.GridState,
	nextAction grid_world.Action,
	done bool,
) (delta float64) {
	target := reward
	if !done {
		if l.algorithm == SARSA {
			target += l.gamma * l.table.Get(next, nextAction)
		} else {
			target += l.gamma * l.table.Max(next)
		}
	}
	delta = l.eta * (target - l.table.Get(s, a))
	l.table.Add(s, a, delta)
	return
}

// EpisodeResult summarizes one episode.
type EpisodeResult struct {
	Episode int
	Reward  int
	Steps   int
	// Truncated is true if the episode hit the step limit before a terminal cell.
	Truncated bool
}

// ProgressFunc is a callback by which the training method can lend progress details,
// while exercising some level of control over its cancellation to prevent blocking.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, EpisodeResult)

// Train runs episodes until @episodes have completed (unbounded if zero) or the context is done,
// returning the results of every completed episode. Context cancellation is a normal stop
// and is not returned as an error.
func Train(
	ctx context.Context,
	env Environment,
	learner *Learner,
	episodes int,
	progressFn ProgressFunc,
) (results []EpisodeResult, err error) {
	for ep := 1; episodes <= 0 || ep <= episodes; ep++ {
		if ctx.Err() != nil {
			return
		}

		var result EpisodeResult
		if result, err = learner.runEpisode(ctx, env, ep); err != nil {
			err = fmt.Errorf("episode %d: %w", ep, err)
			return
		}
		if ctx.Err() != nil {
			// Discard the interrupted episode.
			return
		}

		results = append(results, result)
		if progressFn != nil {
			progressFn(ctx, result)
		}
	}
	return
}

func (l *Learner) runEpisode(
	ctx context.Context,
	env Environment,
	episode int,
) (result EpisodeResult, err error) {
	result.Episode = episode
	state := env.Reset()
	action := l.Policy(state)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		next, reward, done, stepErr := env.Step(action)
		if stepErr != nil {
			err = stepErr
			return
		}
		result.Reward += reward
		result.Steps++

		// SARSA commits to its next action before the update, Q-learning after.
		var nextAction grid_world.Action
		if l.algorithm == SARSA {
			nextAction = l.Policy(next)
		}
		l.Learn(state, action, float64(reward), next, nextAction, done)
		if l.algorithm != SARSA {
			nextAction = l.Policy(next)
		}
		env.Annotate(l.table.ValueTable())

		if done {
			return
		}
		if l.maxSteps > 0 && result.Steps >= l.maxSteps {
			result.Truncated = true
			return
		}
		state, action = next, nextAction
	}
}
