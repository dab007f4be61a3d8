package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValueFunction provides a view of the current value function as a 2d
// projection of the 3d function (x,y,value).
type ValueFunction struct {
	id      string
	surface surface
	updates <-chan []fastview.EleUpdate
}

func NewValueFunction(
	done <-chan struct{},
	cells <-chan [][]Cell,
) (vf *ValueFunction) {
	vf = &ValueFunction{
		id:      "valuefunction",
		surface: newSurface(grid_world.WIDTH, grid_world.HEIGHT),
	}
	vf.updates = channerics.Convert(done, cells, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

const (
	cellDim = 80 // Cell height/width size in pixels
	// ang could easily be a dynamic parameter, for a fixed set of view angles (30, 45, etc.)
	ang = math.Pi / 6
)

// surface holds the parameters of the isometric projection.
type surface struct {
	width, height  float64 // canvas size in pixels
	xyscale        float64 // pixels per x or y unit
	zscale         float64 // pixels per unit of normalized value
	sinAng, cosAng float64
}

func newSurface(xCells, yCells int) surface {
	return surface{
		width:   float64(xCells) * cellDim,
		height:  float64(yCells) * cellDim,
		xyscale: cellDim,
		zscale:  cellDim * 1.5,
		sinAng:  math.Sin(ang),
		cosAng:  math.Cos(ang),
	}
}

// project applies an isometric projection to the passed point.
func (sf surface) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * sf.cosAng * sf.xyscale
	sy := (x+y)*sf.sinAng*sf.xyscale - z*sf.zscale
	return sx, sy
}

// funcPolygon is the projection of the surface patch between four adjacent cells.
type funcPolygon struct {
	Id     string
	Fill   string
	ax, ay float64
	bx, by float64
	cx, cy float64
	dx, dy float64
}

// makeFuncPolygon projects four adjacent cells, whose values are scaled by @zNorm.
// Cell-A is bottom left, Cell-B is top left, Cell-C is top right, and Cell-D is bottom right.
func (sf surface) makeFuncPolygon(
	id string,
	zNorm float64,
	cellA, cellB, cellC, cellD Cell,
) (fp *funcPolygon) {
	fp = &funcPolygon{Id: id}
	fp.ax, fp.ay = sf.project(float64(cellA.X), float64(cellA.Y), cellA.Max/zNorm)
	fp.bx, fp.by = sf.project(float64(cellB.X), float64(cellB.Y), cellB.Max/zNorm)
	fp.cx, fp.cy = sf.project(float64(cellC.X), float64(cellC.Y), cellC.Max/zNorm)
	fp.dx, fp.dy = sf.project(float64(cellD.X), float64(cellD.Y), cellD.Max/zNorm)
	return
}

// Points returns a string suitable for the svg-polygon 'points' attribute.
// The values are truncated to ints.
func (fp *funcPolygon) Points() string {
	return fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d",
		int(fp.ax), int(fp.ay),
		int(fp.bx), int(fp.by),
		int(fp.cx), int(fp.cy),
		int(fp.dx), int(fp.dy),
	)
}

func (fp *funcPolygon) bounds() (minX, minY, maxX, maxY float64) {
	minX = math.Min(math.Min(fp.ax, fp.bx), math.Min(fp.cx, fp.dx))
	maxX = math.Max(math.Max(fp.ax, fp.bx), math.Max(fp.cx, fp.dx))
	minY = math.Min(math.Min(fp.ay, fp.by), math.Min(fp.cy, fp.dy))
	maxY = math.Max(math.Max(fp.ay, fp.by), math.Max(fp.cy, fp.dy))
	return
}

func polygonId(cell Cell) string {
	return fmt.Sprintf("%d-%d-value-polygon", cell.X, cell.Y)
}

// plot builds the surface's polygons, in draw order, and the transform of their group
// that centers them within the view.
func (sf surface) plot(cells [][]Cell) (polygons []*funcPolygon, transform string) {
	// Min and max values determine the extremes of the pseudo-gradient; each polygon is
	// shaded with the average of its four values.
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	for _, row := range cells {
		for _, cell := range row {
			minVal = math.Min(minVal, cell.Max)
			maxVal = math.Max(maxVal, cell.Max)
		}
	}
	zNorm := math.Max(math.Max(math.Abs(minVal), math.Abs(maxVal)), 1)

	xmin, ymin := math.MaxFloat64, math.MaxFloat64
	xmax, ymax := -math.MaxFloat64, -math.MaxFloat64
	// Rows are drawn front to back and columns right to left, so nearer patches obscure farther ones.
	for ri := 0; ri < len(cells)-1; ri++ {
		row := cells[ri]
		for ci := len(row) - 2; ci >= 0; ci-- {
			cellA := cells[ri+1][ci]
			cellB := cells[ri][ci]
			cellC := cells[ri][ci+1]
			cellD := cells[ri+1][ci+1]
			polygon := sf.makeFuncPolygon(polygonId(cellB), zNorm, cellA, cellB, cellC, cellD)
			polygon.Fill = getRGBFill(avg(cellA.Max, cellB.Max, cellC.Max, cellD.Max), minVal, maxVal)

			pminX, pminY, pmaxX, pmaxY := polygon.bounds()
			xmin, ymin = math.Min(xmin, pminX), math.Min(ymin, pminY)
			xmax, ymax = math.Max(xmax, pmaxX), math.Max(ymax, pmaxY)
			polygons = append(polygons, polygon)
		}
	}
	if len(polygons) == 0 {
		return nil, "translate(0 0)"
	}

	// Scale down by the maximum required to fit the full plot in view, but only if needed.
	scaler := math.Min(
		math.Min(
			math.Abs(sf.width/(xmax-xmin)),
			math.Abs(sf.height/(ymax-ymin)),
		),
		1.0,
	)
	transform = fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin))
	return
}

func avg(f ...float64) float64 {
	sum := 0.0
	for _, fn := range f {
		sum += fn
	}
	return sum / float64(len(f))
}

// getRGBFill returns an RGB value defined by where avgVal lies along the number line
// between minVal (blue) and maxVal (red).
func getRGBFill(avgVal, minVal, maxVal float64) string {
	pct := 0.5
	if maxVal > minVal {
		pct = (avgVal - minVal) / (maxVal - minVal)
	}
	redPct := int(math.Round(100 * pct))
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}

// onUpdate returns the set of view updates needed for the view to reflect current values.
func (vf *ValueFunction) onUpdate(
	cells [][]Cell,
) (ops []fastview.EleUpdate) {
	polygons, transform := vf.surface.plot(cells)
	for _, polygon := range polygons {
		ops = append(ops, fastview.EleUpdate{
			EleId: polygon.Id,
			Ops: []fastview.Op{
				{Key: "points", Value: polygon.Points()},
				{Key: "fill", Value: polygon.Fill},
			},
		})
	}
	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops:   []fastview.Op{{Key: "transform", Value: transform}},
	})
	return
}

// Parse returns an svg of polygons plotting the value function surface as a 2D projection.
// The template is executed with the initial [][]Cell.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	addedMap := template.FuncMap{
		"plotSurface": func(cells [][]Cell) map[string]any {
			polygons, transform := vf.surface.plot(cells)
			return map[string]any{"Polygons": polygons, "Transform": transform}
		},
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		{{ $plot := plotSurface . }}
		<div style="padding:40px;">
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprintf("%d", int(vf.surface.width*2)) + `px"
				height="` + fmt.Sprintf("%d", int(vf.surface.height*2)) + `px"
				style="shape-rendering: crispEdges; stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 3;">
				<g id="` + vf.id + `-group" transform="{{ $plot.Transform }}">
				{{ range $polygon := $plot.Polygons }}
					<polygon id="{{ $polygon.Id }}" fill="{{ $polygon.Fill }}" fill-opacity="1.0"
						points="{{ $polygon.Points }}" />
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
