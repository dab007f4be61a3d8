package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/mvtalan/Q-Learning-m/assets"
	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/cell_views"
	"github.com/mvtalan/Q-Learning-m/server/fastview"
	"github.com/mvtalan/Q-Learning-m/server/root_view"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Time allowed for in-flight requests when shutting down.
const shutdownTimeout = 5 * time.Second

// Server serves the main page, its websocket of view updates, the sprite images,
// and a json snapshot of the value table. Any number of pages may be open; each
// websocket client receives every view update.
type Server struct {
	ctx      context.Context
	addr     string
	rootView *root_view.RootView
	sprites  *assets.Set
	table    func() grid_world.ValueTable
	router   *mux.Router
	logger   zerolog.Logger
}

// NewServer initializes all of the views and returns a server. The views are torn
// down when ctx is cancelled. @table returns the current value table, by which pages
// are initially rendered.
func NewServer(
	ctx context.Context,
	addr string,
	scene *Scene,
	tableUpdates <-chan grid_world.ValueTable,
	table func() grid_world.ValueTable,
	sprites *assets.Set,
	logger zerolog.Logger,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, scene, tableUpdates)
	if err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}

	server := &Server{
		ctx:      ctx,
		addr:     addr,
		rootView: rootView,
		sprites:  sprites,
		table:    table,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/img/{kind}", server.serveImage).Methods(http.MethodGet)
	router.HandleFunc("/values", server.serveValues).Methods(http.MethodGet)
	server.router = router

	return server, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.logger.Info().Str("addr", server.addr).Msg("serving")
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects or the server's
// context is cancelled.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	// Hijacked connections outlive Shutdown, so the client is bound to the server's context too.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(server.ctx, cancel)
	defer stop()

	r = r.WithContext(ctx)
	client, err := fastview.NewClient(server.rootView.Subscribe(ctx.Done()), w, r, server.logger)
	if err != nil {
		server.logger.Warn().Err(err).Msg("websocket")
		return
	}

	if err := client.Sync(); err != nil && ctx.Err() == nil {
		server.logger.Warn().Err(err).Str("client", client.ID()).Msg("websocket sync")
	}
}

// serveIndex serves the main page, rendered in the current state of its views.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	cells := cell_views.Convert(server.table())
	if err := renderTemplate(w, server.rootView, cells); err != nil {
		server.logger.Error().Err(err).Msg("render index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveImage serves the resized image of a sprite kind, e.g. /img/agent.
func (server *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	kind, ok := grid_world.ParseSpriteKind(mux.Vars(r)["kind"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	encoded, ok := server.sprites.PNG(kind)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=3600")
	_, _ = w.Write(encoded)
}

// serveValues serves the current value table as json, keyed by cell, e.g. {"[0, 0]": [0.1, 0, 0, 0.5]}.
func (server *Server) serveValues(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.table()); err != nil {
		server.logger.Error().Err(err).Msg("encode values")
	}
}

// pageParser parses a page's template into a parent, returning the name of the defined template.
type pageParser interface {
	Parse(*template.Template) (string, error)
}

func renderTemplate(
	w io.Writer,
	vc pageParser,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
