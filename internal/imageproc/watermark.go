// Package imageproc provides the watermark compositor plus decode/encode and preview helpers.
package imageproc

import (
	"errors"
	"image"
	"image/draw"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// FontResolver maps a font name and pixel size to a face.
type FontResolver interface {
	Resolve(name string, size int) (font.Face, error)
}

type anchor int

const (
	anchorCenter      anchor = iota // "mm": (w/2, h/2), centred both ways
	anchorBottomRight               // "rb": (w-inset, h-inset), right edge and descender line
)

var placementAnchors = map[model.Placement][]anchor{
	model.PlacementMiddle: {anchorCenter},
	model.PlacementBottom: {anchorBottomRight},
	model.PlacementBoth:   {anchorCenter, anchorBottomRight},
}

type Compositor struct {
	fonts FontResolver
	style model.Style
}

func NewCompositor(fonts FontResolver, style model.Style) *Compositor {
	return &Compositor{fonts: fonts, style: style}
}

// Render returns a copy of base with spec.Text stamped at every anchor of
// spec.Placement. Layers are composited one after another with source-over.
// base is never modified.
func (c *Compositor) Render(base image.Image, spec model.WatermarkSpec) (*image.NRGBA, error) {
	if base == nil {
		return nil, errors.New("nil base image provided to Render")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// копия в NRGBA - дальше работаем только с ней
	result := imaging.Clone(base)
	bounds := result.Bounds()
	if bounds.Empty() {
		return nil, &model.ParamError{Field: "image", Value: bounds.String()}
	}

	size, err := FontSize(bounds.Dy(), spec.Size)
	if err != nil {
		return nil, err
	}

	// шрифт резолвим до любой отрисовки: ошибка шрифта = ничего не нарисовано
	face, err := c.fonts.Resolve(spec.FontName, size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	if spec.Text == "" {
		return result, nil
	}

	for _, a := range placementAnchors[spec.Placement] {
		layer := image.NewNRGBA(bounds)
		dirty := c.drawText(layer, face, spec.Text, a)
		dirty = dirty.Intersect(bounds)
		if dirty.Empty() {
			continue
		}
		draw.Draw(result, dirty, layer, dirty.Min, draw.Over)
	}

	return result, nil
}

// drawText draws text onto the transparent layer and returns the rectangle
// that may contain non-transparent pixels.
func (c *Compositor) drawText(layer *image.NRGBA, face font.Face, text string, a anchor) image.Rectangle {
	w, h := layer.Bounds().Dx(), layer.Bounds().Dy()
	m := face.Metrics()
	advance := font.MeasureString(face, text)

	var dot fixed.Point26_6
	switch a {
	case anchorCenter:
		dot.X = fixed.I(w)/2 - advance/2
		dot.Y = fixed.I(h)/2 + (m.Ascent-m.Descent)/2
	case anchorBottomRight:
		dot.X = fixed.I(w-c.style.Inset) - advance
		dot.Y = fixed.I(h-c.style.Inset) - m.Descent
	}

	d := &font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(c.style.Fill),
		Face: face,
		Dot:  dot,
	}
	b, _ := d.BoundString(text)
	d.DrawString(text)

	// на пиксель шире с каждой стороны - антиалиасинг может вылезти за bound
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil()).Inset(-1)
}
