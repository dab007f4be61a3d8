package grid_world

// Renderer is the drawing capability the environment depends upon. Implementations
// buffer changes until Update is called, much like a canvas whose pending changes are
// flushed by the window's update loop.
//
// SetClock and Update are called from the stopwatch routine, concurrently with calls
// made by whoever drives the environment, hence implementations must be goroutine-safe.
type Renderer interface {
	// DrawGrid draws the cell lines of a width x height grid of unit sized cells.
	DrawGrid(width, height, unit int)
	// DrawSprite draws the sprite at its position, or moves it there if already drawn.
	DrawSprite(sprite Sprite)
	// RaiseSprite moves the sprite to the top of the draw order.
	RaiseSprite(kind SpriteKind)
	DrawText(label Label)
	// ClearText removes all labels previously drawn by DrawText.
	ClearText()
	// SetClock sets the elapsed time display, formatted as MM:SS.
	SetClock(elapsed string)
	// Update flushes pending changes to the display.
	Update()
}

// NopRenderer discards all drawing, for headless training and tests.
type NopRenderer struct{}

func (NopRenderer) DrawGrid(width, height, unit int) {}
func (NopRenderer) DrawSprite(sprite Sprite)         {}
func (NopRenderer) RaiseSprite(kind SpriteKind)      {}
func (NopRenderer) DrawText(label Label)             {}
func (NopRenderer) ClearText()                       {}
func (NopRenderer) SetClock(elapsed string)          {}
func (NopRenderer) Update()                          {}
