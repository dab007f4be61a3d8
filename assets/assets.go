// assets loads the sprite images and scales them to the sprite footprint.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	// Registered decoders
	_ "image/jpeg"

	"github.com/mvtalan/Q-Learning-m/grid_world"

	"golang.org/x/image/draw"
)

// Files names the image of each sprite, relative to the image directory.
var Files = map[grid_world.SpriteKind]string{
	grid_world.AGENT:     "Mario.png",
	grid_world.PENALTY_1: "Bowser.png",
	grid_world.PENALTY_2: "Bullet Bill.png",
	grid_world.PENALTY_3: "Goomba.png",
	grid_world.GOAL:      "Peach.png",
}

// Set holds every sprite image, scaled, and its png encoding for serving.
type Set struct {
	images  map[grid_world.SpriteKind]image.Image
	encoded map[grid_world.SpriteKind][]byte
}

// Load reads and scales the image of every sprite from @dir. Any missing or undecodable
// image is an error; the caller cannot proceed without them.
func Load(dir string) (*Set, error) {
	images := make(map[grid_world.SpriteKind]image.Image, len(Files))
	for _, kind := range grid_world.SpriteKinds {
		img, err := loadImage(filepath.Join(dir, Files[kind]))
		if err != nil {
			return nil, fmt.Errorf("load %s sprite: %w", kind, err)
		}
		images[kind] = img
	}
	return FromImages(images)
}

// FromImages scales the passed images to the sprite footprint.
func FromImages(images map[grid_world.SpriteKind]image.Image) (*Set, error) {
	set := &Set{
		images:  make(map[grid_world.SpriteKind]image.Image, len(images)),
		encoded: make(map[grid_world.SpriteKind][]byte, len(images)),
	}
	for kind, img := range images {
		scaled := Scale(img, grid_world.SPRITE_SIZE)
		var buf bytes.Buffer
		if err := png.Encode(&buf, scaled); err != nil {
			return nil, fmt.Errorf("encode %s sprite: %w", kind, err)
		}
		set.images[kind] = scaled
		set.encoded[kind] = buf.Bytes()
	}
	return set, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Scale resizes @src to a size x size square.
func Scale(src image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Image returns the scaled image of a sprite, or nil if none was loaded.
func (set *Set) Image(kind grid_world.SpriteKind) image.Image {
	return set.images[kind]
}

// PNG returns the png encoding of a sprite's scaled image.
func (set *Set) PNG(kind grid_world.SpriteKind) ([]byte, bool) {
	data, ok := set.encoded[kind]
	return data, ok
}
