package reinforcement

import (
	"math/rand"
	"sync/atomic"

	"github.com/mvtalan/Q-Learning-m/atomic_float"
	"github.com/mvtalan/Q-Learning-m/grid_world"

	"gonum.org/v1/gonum/floats"
)

// QTable holds an action value per cell and action. Values are atomic so that views
// may read the table while a single learner writes it.
type QTable struct {
	cells [grid_world.WIDTH][grid_world.HEIGHT]qCell
}

type qCell struct {
	visited atomic.Bool
	values  [grid_world.NUM_ACTIONS]atomic_float.AtomicFloat64
}

func NewQTable() *QTable {
	return &QTable{}
}

func (q *QTable) cell(s grid_world.GridState) *qCell {
	return &q.cells[s.X][s.Y]
}

// Get returns Q(s,a). Off-grid states and invalid actions have value zero.
func (q *QTable) Get(s grid_world.GridState, a grid_world.Action) float64 {
	if !s.InBounds() || !a.Valid() {
		return 0
	}
	return q.cell(s).values[a].Load()
}

// Values returns the action values of s, indexed by action.
func (q *QTable) Values(s grid_world.GridState) (values [grid_world.NUM_ACTIONS]float64) {
	if !s.InBounds() {
		return
	}
	c := q.cell(s)
	for a := range values {
		values[a] = c.values[a].Load()
	}
	return
}

// Set overwrites Q(s,a) and marks s visited.
func (q *QTable) Set(s grid_world.GridState, a grid_world.Action, val float64) {
	if !s.InBounds() || !a.Valid() {
		return
	}
	c := q.cell(s)
	c.values[a].Store(val)
	c.visited.Store(true)
}

// Add adds delta to Q(s,a), marks s visited, and returns the new value.
func (q *QTable) Add(s grid_world.GridState, a grid_world.Action, delta float64) float64 {
	if !s.InBounds() || !a.Valid() {
		return 0
	}
	c := q.cell(s)
	c.visited.Store(true)
	return c.values[a].Add(delta)
}

// Max returns the largest action value of s.
func (q *QTable) Max(s grid_world.GridState) float64 {
	values := q.Values(s)
	return floats.Max(values[:])
}

// Best returns the highest valued action of s, breaking ties uniformly at random.
// If no value compares, e.g. all are NaN, any action may be returned.
func (q *QTable) Best(s grid_world.GridState, rng *rand.Rand) grid_world.Action {
	values := q.Values(s)
	max := floats.Max(values[:])
	ties := make([]grid_world.Action, 0, grid_world.NUM_ACTIONS)
	for _, a := range grid_world.Actions {
		if values[a] == max {
			ties = append(ties, a)
		}
	}
	if len(ties) == 0 {
		return grid_world.Actions[rng.Intn(len(grid_world.Actions))]
	}
	return ties[rng.Intn(len(ties))]
}

// ValueTable returns a snapshot of the visited cells, keyed per grid_world.StateKey.
func (q *QTable) ValueTable() grid_world.ValueTable {
	table := grid_world.ValueTable{}
	for x := range q.cells {
		for y := range q.cells[x] {
			s := grid_world.GridState{X: x, Y: y}
			if !q.cell(s).visited.Load() {
				continue
			}
			table[grid_world.StateKey(s)] = q.Values(s)
		}
	}
	return table
}
