// fastview implements a builder pattern to implement simple views:
// given an input data format, apply a transformation to a view-model,
// and then multiplex that data to one or more views, whose element updates
// are published to web clients over a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or one of the reserved keys below, values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

const (
	// TEXT_CONTENT sets ele.textContent to the op's value.
	TEXT_CONTENT = "textContent"
	// RAISE moves the element to the end of its parent, the top of the svg draw order; its value is ignored.
	RAISE = "raise"
)

// ViewComponent implements server side views: Parse to add their initial form to
// the page template and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse parses the view-component and adds it to the passed parent template, thus inheriting
	// or possibly extending its definition (func-map, etc). Returns the name of the defined template.
	Parse(*template.Template) (string, error)
}

// Merge overwrites the ops of @dst with those of @src, per element and key. Ops of elements and
// keys not in @src are kept. The result is sorted neither by element nor key; callers must not
// depend on order.
func Merge(dst map[string]EleUpdate, src []EleUpdate) {
	for _, update := range src {
		prev, ok := dst[update.EleId]
		if !ok {
			dst[update.EleId] = EleUpdate{EleId: update.EleId, Ops: append([]Op(nil), update.Ops...)}
			continue
		}
		for _, op := range update.Ops {
			prev.Ops = setOp(prev.Ops, op)
		}
		dst[update.EleId] = prev
	}
}

func setOp(ops []Op, op Op) []Op {
	for i := range ops {
		if ops[i].Key == op.Key {
			ops[i].Value = op.Value
			return ops
		}
	}
	return append(ops, op)
}

// Values returns the values of a map as a slice.
func Values[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
