// Package avatar renders letter avatars and caches them on disk.
//
// Generator is pure: a glyph and a size always produce the same PNG bytes.
// Store builds the get-or-create cache on top of it. Because rendering is
// deterministic, a cached file never needs to be checked or regenerated.
package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/sakif/indie-arcade/internal/apperror"
)

// DefaultSize is the width and height used when none is given.
const DefaultSize = 100

// glyphScale sets the font size relative to the shorter canvas side
// (48pt on the default 100x100 canvas).
const glyphScale = 0.48

// Generator renders avatar images. The zero value is not usable; call
// NewGenerator.
type Generator struct {
	font *opentype.Font

	// Faces are cached per point size; opentype faces are not safe for
	// concurrent use, so each entry carries its own lock.
	mu    sync.Mutex
	faces map[float64]*lockedFace
}

type lockedFace struct {
	mu   sync.Mutex
	face font.Face
}

// NewGenerator parses the embedded Go Bold font.
func NewGenerator() (*Generator, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("avatar: parsing font: %w", err)
	}
	return &Generator{font: f, faces: make(map[float64]*lockedFace)}, nil
}

// BackgroundColor derives the avatar background from the glyph.
//
// The glyph is lowercased first so "a" and "A" share a color. Its code point
// c gives n = 124 - c, and the color is int(n/28 * 0xFFFFFF) read as 0xRRGGBB.
// For a-z that lands inside 24 bits. Other runes are wrapped into range.
func BackgroundColor(glyph rune) color.RGBA {
	n := float64(124 - unicode.ToLower(glyph))
	v := int64(n / 28 * 0xFFFFFF)
	v %= 0x1000000
	if v < 0 {
		v += 0x1000000
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xFF,
	}
}

// ValidateGlyph reports whether glyph can be drawn as an avatar: a single
// printable, non-space rune.
func ValidateGlyph(glyph rune) error {
	if glyph == unicode.ReplacementChar || !unicode.IsPrint(glyph) || unicode.IsSpace(glyph) {
		return apperror.ValidationFailed("glyph", fmt.Sprintf("avatar glyph %q is not printable", glyph))
	}
	return nil
}

// Render draws glyph in white, uppercased and centred, on its background
// color and returns the PNG encoding. Non-positive dimensions fall back to
// DefaultSize.
func (g *Generator) Render(glyph rune, width, height int) ([]byte, error) {
	if err := ValidateGlyph(glyph); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(BackgroundColor(glyph)), image.Point{}, draw.Src)

	size := glyphScale * float64(min(width, height))
	lf, err := g.face(size)
	if err != nil {
		return nil, err
	}

	lf.mu.Lock()
	drawCentered(img, lf.face, string(unicode.ToUpper(glyph)))
	lf.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("avatar: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) face(size float64) (*lockedFace, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lf, ok := g.faces[size]; ok {
		return lf, nil
	}
	face, err := opentype.NewFace(g.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: creating font face: %w", err)
	}
	lf := &lockedFace{face: face}
	g.faces[size] = lf
	return lf, nil
}

// drawCentered places s so its advance box is centred horizontally and its
// ascent/descent box is centred vertically.
func drawCentered(dst draw.Image, face font.Face, s string) {
	b := dst.Bounds()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
	}

	m := face.Metrics()
	advance := d.MeasureString(s)
	x := (fixed.I(b.Dx()) - advance) / 2
	y := (fixed.I(b.Dy()) + m.Ascent - m.Descent) / 2

	d.Dot = fixed.Point26_6{X: fixed.I(b.Min.X) + x, Y: fixed.I(b.Min.Y) + y}
	d.DrawString(s)
}
