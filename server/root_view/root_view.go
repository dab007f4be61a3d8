package root_view

import (
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/cell_views"
	"github.com/mvtalan/Q-Learning-m/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// The rate at which batched view updates are passed to subscribers.
const batchRate = time.Millisecond * 20

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, and their subscribers.
type RootView struct {
	views       fastview.Views
	mu          sync.Mutex
	subscribers map[chan []fastview.EleUpdate]struct{}
}

// NewRootView creates the main page: the scene followed by the views of the value table,
// whose updates are converted to cells and broadcast to each value view.
func NewRootView(
	ctx context.Context,
	scene fastview.ViewComponent,
	tableUpdates <-chan grid_world.ValueTable,
) (*RootView, error) {
	valueViews, err := fastview.NewViewBuilder[grid_world.ValueTable, [][]cell_views.Cell]().
		WithContext(ctx).
		WithModel(tableUpdates, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			cellUpdates <-chan [][]cell_views.Cell) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, cellUpdates)
		}).
		WithView(func(
			done <-chan struct{},
			cellUpdates <-chan [][]cell_views.Cell) fastview.ViewComponent {
			return cell_views.NewValueFunction(done, cellUpdates)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build value views: %w", err)
	}

	rv := &RootView{
		views:       append(fastview.Views{scene}, valueViews...),
		subscribers: map[chan []fastview.EleUpdate]struct{}{},
	}
	go rv.broadcast(ctx.Done(), rv.views.Updates(ctx.Done(), batchRate))
	return rv, nil
}

// Subscribe returns a channel of the views' batched updates, until done is closed.
// A subscriber that falls behind receives its pending updates merged with the newer ones.
func (rv *RootView) Subscribe(done <-chan struct{}) <-chan []fastview.EleUpdate {
	sub := make(chan []fastview.EleUpdate, 1)
	rv.mu.Lock()
	rv.subscribers[sub] = struct{}{}
	rv.mu.Unlock()

	go func() {
		<-done
		rv.mu.Lock()
		delete(rv.subscribers, sub)
		rv.mu.Unlock()
	}()
	return sub
}

func (rv *RootView) broadcast(
	done <-chan struct{},
	batches <-chan []fastview.EleUpdate,
) {
	for batch := range channerics.OrDone(done, batches) {
		rv.mu.Lock()
		for sub := range rv.subscribers {
			offer(sub, batch)
		}
		rv.mu.Unlock()
	}
}

// offer sends the batch without blocking, merging it into the subscriber's
// unconsumed batch if there is one. Callers must be the channel's only sender.
func offer(sub chan []fastview.EleUpdate, batch []fastview.EleUpdate) {
	select {
	case sub <- batch:
		return
	default:
	}

	pending := map[string]fastview.EleUpdate{}
	select {
	case prev := <-sub:
		fastview.Merge(pending, prev)
	default:
	}
	fastview.Merge(pending, batch)
	sub <- fastview.Values(pending)
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = fmt.Errorf("parse view: %w", parseErr)
			return
		}
		viewTemplates = append(viewTemplates, tname)
	}

	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += (`{{ template "` + tname + `" . }}`)
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>Q-Learning grid world</title>
			<link rel="icon" href="data:,">
			<!--The server pushes view updates to the page via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onclose = function (event) {
					console.log('WebSocket closed: ', event.code);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else if (op.Key === "raise") {
								ele.parentNode.appendChild(ele);
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body style="display: flex; flex-wrap: wrap;">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}
