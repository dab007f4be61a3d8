package grid_world

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueTable maps the key of a cell (see StateKey) to its per-action values, indexed by Action.
// It is supplied by an external learner purely for display.
type ValueTable map[string][NUM_ACTIONS]float64

// ErrMalformedKey is returned when a value table key is not of the form "[x, y]".
var ErrMalformedKey = errors.New("malformed state key")

// StateKey returns the canonical key of a cell, e.g. "[2, 3]".
func StateKey(s GridState) string {
	return fmt.Sprintf("[%d, %d]", s.X, s.Y)
}

// ParseStateKey parses a key produced by StateKey. Whitespace around the
// components is ignored, so "[2,3]" is accepted as well.
func ParseStateKey(key string) (state GridState, err error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "[") || !strings.HasSuffix(key, "]") {
		err = fmt.Errorf("%w: %q", ErrMalformedKey, key)
		return
	}

	parts := strings.Split(key[1:len(key)-1], ",")
	if len(parts) != 2 {
		err = fmt.Errorf("%w: %q", ErrMalformedKey, key)
		return
	}

	if state.X, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		err = fmt.Errorf("%w: %q: %v", ErrMalformedKey, key, err)
		return
	}
	if state.Y, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		err = fmt.Errorf("%w: %q: %v", ErrMalformedKey, key, err)
		return
	}
	return
}

// cells resolves the table's keys to grid cells, dropping malformed and off-grid keys.
func (table ValueTable) cells() map[GridState][NUM_ACTIONS]float64 {
	cells := make(map[GridState][NUM_ACTIONS]float64, len(table))
	for key, values := range table {
		state, err := ParseStateKey(key)
		if err != nil || !state.InBounds() {
			continue
		}
		cells[state] = values
	}
	return cells
}

// FormatValue rounds to two decimals, always printing at least one, e.g. 3 -> "3.0", 0.456 -> "0.46".
func FormatValue(val float64) string {
	s := strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
