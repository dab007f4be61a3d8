package cell_views

import (
	"fmt"
	"html/template"

	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid shows the max action value and the greedy policy of every cell.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	cells <-chan [][]Cell,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, cells, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

func valueTextId(cell Cell) string {
	return fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y)
}

func policyArrowId(cell Cell) string {
	return fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y)
}

func arrowOpacity(cell Cell) string {
	if cell.Visited {
		return "1"
	}
	return "0"
}

// onUpdate returns the set of view updates needed for the view to reflect the current values.
func (vg *ValuesGrid) onUpdate(cells [][]Cell) (ops []fastview.EleUpdate) {
	for _, row := range cells {
		for _, cell := range row {
			ops = append(ops, fastview.EleUpdate{
				EleId: valueTextId(cell),
				Ops: []fastview.Op{
					{Key: fastview.TEXT_CONTENT, Value: grid_world.FormatValue(cell.Max)},
				},
			})
			ops = append(ops, fastview.EleUpdate{
				EleId: policyArrowId(cell),
				Ops: []fastview.Op{
					{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
					{Key: "opacity", Value: arrowOpacity(cell)},
				},
			})
		}
	}
	return
}

// Parse defines an svg grid of cells, each showing its max value and policy arrow.
// The template is executed with the initial [][]Cell.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	addedMap := template.FuncMap{
		"formatValue":  grid_world.FormatValue,
		"valueTextId":  valueTextId,
		"arrowId":      policyArrowId,
		"arrowOpacity": arrowOpacity,
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div id="state_values" style="padding:10px;">
			{{ $x_cells := len . }}
			{{ $y_cells := len (index . 0) }}
			{{ $cell_width := ` + fmt.Sprintf("%d", grid_world.UNIT) + ` }}
			{{ $cell_height := $cell_width }}
			{{ $width := mult $cell_width $x_cells }}
			{{ $height := mult $cell_height $y_cells }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vg.id + `"
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := . }}
					{{ range $cell := $row }}
					<g>
						<rect
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{ valueTextId $cell }}"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) (sub $half_height 10) }}"
							stroke="blue"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ formatValue $cell.Max }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_width) $half_width }}, {{ add (mult $cell.Y $cell_height) (add $half_height 20) }})">
							<text id="{{ arrowId $cell }}"
							stroke="blue" stroke-width="1"
							dominant-baseline="central" text-anchor="middle"
							opacity="{{ arrowOpacity $cell }}"
							transform="rotate({{ $cell.PolicyArrowRotation }})"
							>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
