package cell_views

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"github.com/mvtalan/Q-Learning-m/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

var testFuncs = template.FuncMap{
	"add":  func(i, j int) int { return i + j },
	"sub":  func(i, j int) int { return i - j },
	"mult": func(i, j int) int { return i * j },
	"div":  func(i, j int) int { return i / j },
}

func TestConvert(t *testing.T) {
	Convey("When converting a value table to cells", t, func() {
		table := grid_world.ValueTable{
			"[1, 0]":    {0, 0, 0, 2.5},
			"[0, 1]":    {-1, 3, 0, 0},
			"[9, 9]":    {1, 1, 1, 1},
			"not-a-key": {1, 1, 1, 1},
		}
		cells := Convert(table)

		Convey("Cells cover the grid, indexed by x then y", func() {
			So(len(cells), ShouldEqual, grid_world.WIDTH)
			for x := range cells {
				So(len(cells[x]), ShouldEqual, grid_world.HEIGHT)
				for y := range cells[x] {
					So(cells[x][y].X, ShouldEqual, x)
					So(cells[x][y].Y, ShouldEqual, y)
				}
			}
		})

		Convey("Visited cells hold the max value and point toward the best action", func() {
			So(cells[1][0].Visited, ShouldBeTrue)
			So(cells[1][0].Max, ShouldEqual, 2.5)
			So(cells[1][0].PolicyArrowRotation, ShouldEqual, 90)
			So(cells[0][1].Max, ShouldEqual, 3)
			So(cells[0][1].PolicyArrowRotation, ShouldEqual, 180)
		})

		Convey("Unvisited cells are zero and off-grid keys are ignored", func() {
			So(cells[4][4].Visited, ShouldBeFalse)
			So(cells[4][4].Max, ShouldEqual, 0)
		})

		Convey("Sprite cells are filled per sprite kind", func() {
			So(cells[0][0].Fill, ShouldEqual, "lightblue")
			So(cells[2][1].Fill, ShouldEqual, "mistyrose")
			So(cells[2][2].Fill, ShouldEqual, "lightyellow")
			So(cells[3][3].Fill, ShouldEqual, "white")
		})
	})
}

func TestValuesGrid(t *testing.T) {
	Convey("Given a values grid", t, func() {
		cells := Convert(grid_world.ValueTable{"[1, 0]": {0, 0, 3, 0}})
		vg := NewValuesGrid(nil, make(chan [][]Cell))

		Convey("Updates set every cell's value text and arrow", func() {
			ops := vg.onUpdate(cells)
			So(len(ops), ShouldEqual, 2*grid_world.WIDTH*grid_world.HEIGHT)

			found := map[string]string{}
			for _, update := range ops {
				for _, op := range update.Ops {
					found[update.EleId+"/"+op.Key] = op.Value
				}
			}
			So(found["1-0-value-text/textContent"], ShouldEqual, "3.0")
			So(found["1-0-policy-arrow/transform"], ShouldEqual, "rotate(270)")
			So(found["1-0-policy-arrow/opacity"], ShouldEqual, "1")
			So(found["3-3-policy-arrow/opacity"], ShouldEqual, "0")
		})

		Convey("The template renders the initial cells", func() {
			t := template.New("root").Funcs(testFuncs)
			name, err := vg.Parse(t)
			So(err, ShouldBeNil)

			buf := &bytes.Buffer{}
			So(t.ExecuteTemplate(buf, name, cells), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `id="1-0-value-text"`)
			So(buf.String(), ShouldContainSubstring, `id="4-4-policy-arrow"`)
		})
	})
}

func TestValueFunction(t *testing.T) {
	Convey("Given a value function view", t, func() {
		table := grid_world.ValueTable{"[2, 1]": {100, 0, 0, 0}, "[2, 3]": {-100, 0, 0, 0}}
		cells := Convert(table)
		vf := NewValueFunction(nil, make(chan [][]Cell))

		Convey("Updates set a polygon per patch plus the group transform", func() {
			ops := vf.onUpdate(cells)
			patches := (grid_world.WIDTH - 1) * (grid_world.HEIGHT - 1)
			So(len(ops), ShouldEqual, patches+1)
			So(ops[len(ops)-1].EleId, ShouldEqual, "valuefunction-group")
			So(ops[len(ops)-1].Ops[0].Value, ShouldStartWith, "scale(")
		})

		Convey("Fills span blue to red across the value range", func() {
			So(getRGBFill(-100, -100, 100), ShouldEqual, "rgb(0%,0%,100%)")
			So(getRGBFill(100, -100, 100), ShouldEqual, "rgb(100%,0%,0%)")
			So(getRGBFill(5, 5, 5), ShouldEqual, "rgb(50%,0%,50%)")
		})

		Convey("The template renders every polygon", func() {
			t := template.New("root").Funcs(testFuncs)
			name, err := vf.Parse(t)
			So(err, ShouldBeNil)

			buf := &bytes.Buffer{}
			So(t.ExecuteTemplate(buf, name, cells), ShouldBeNil)
			patches := (grid_world.WIDTH - 1) * (grid_world.HEIGHT - 1)
			So(strings.Count(buf.String(), "<polygon"), ShouldEqual, patches)
		})
	})
}
