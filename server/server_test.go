package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mvtalan/Q-Learning-m/assets"
	"github.com/mvtalan/Q-Learning-m/grid_world"
	"github.com/mvtalan/Q-Learning-m/server/fastview"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSprites(t *testing.T) *assets.Set {
	images := map[grid_world.SpriteKind]image.Image{}
	for _, kind := range grid_world.SpriteKinds {
		img := image.NewRGBA(image.Rect(0, 0, 10, 10))
		img.Set(5, 5, color.RGBA{R: 255, A: 255})
		images[kind] = img
	}
	set, err := assets.FromImages(images)
	require.NoError(t, err)
	return set
}

type fixture struct {
	scene  *Scene
	tables chan grid_world.ValueTable
	http   *httptest.Server
}

func newFixture(t *testing.T, table grid_world.ValueTable) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		scene:  NewScene(),
		tables: make(chan grid_world.ValueTable),
	}
	server, err := NewServer(
		ctx, ":0", f.scene, f.tables,
		func() grid_world.ValueTable { return table },
		testSprites(t), zerolog.Nop())
	require.NoError(t, err)

	f.http = httptest.NewServer(server.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func TestServeIndex(t *testing.T) {
	f := newFixture(t, grid_world.ValueTable{"[2, 0]": {1.5, 0, 0, 0}})

	resp, err := http.Get(f.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	assert.Contains(t, page, `id="scene"`)
	assert.Contains(t, page, `id="valuesgrid"`)
	assert.Contains(t, page, `id="valuefunction"`)
	assert.Contains(t, page, `id="2-0-value-text"`)
}

func TestServeImage(t *testing.T) {
	f := newFixture(t, grid_world.ValueTable{})

	resp, err := http.Get(f.http.URL + "/img/agent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, grid_world.SPRITE_SIZE, img.Bounds().Dx())

	missing, err := http.Get(f.http.URL + "/img/luigi")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServeValues(t *testing.T) {
	table := grid_world.ValueTable{"[0, 0]": {0.1, 0, -1, 0.5}}
	f := newFixture(t, table)

	resp, err := http.Get(f.http.URL + "/values")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got grid_world.ValueTable
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, table, got)
}

func TestServeWebsocket(t *testing.T) {
	f := newFixture(t, grid_world.ValueTable{})

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	env := grid_world.NewEnvironment(f.scene, grid_world.WithoutStopwatch())
	defer env.Close()

	// Snapshots are published on every update; keep rendering until one arrives.
	received := make(chan []fastview.EleUpdate)
	go func() {
		var updates []fastview.EleUpdate
		if err := conn.ReadJSON(&updates); err == nil {
			received <- updates
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case updates := <-received:
			assert.NotNil(t, opsOf(updates, CLOCK_ID))
			return
		case <-deadline:
			t.Fatal("no view updates received over the websocket")
		case <-time.After(50 * time.Millisecond):
			f.scene.Update()
		}
	}
}
