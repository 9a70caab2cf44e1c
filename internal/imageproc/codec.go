package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // best-effort webp input
)

const DefaultJPEGQuality = 95

// Decode reads any registered format and normalizes it to NRGBA.
func Decode(r io.Reader) (*image.NRGBA, error) {
	if r == nil {
		return nil, errors.New("nil-reader provided to Decode")
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("decoded image has no pixels")
	}

	return imaging.Clone(img), nil
}

// FormatFromPath picks the output format from the file extension.
func FormatFromPath(path string) (imaging.Format, error) {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return -1, fmt.Errorf("%w: %q", model.ErrUnsupportedFmt, path)
	}
	return f, nil
}

// ParseFormat accepts "png", ".jpg", "JPEG" etc.
func ParseFormat(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return -1, fmt.Errorf("%w: %q", model.ErrUnsupportedFmt, name)
	}
	return f, nil
}

// EncodableName keeps name when its extension can be encoded and otherwise
// swaps the extension for ".png": "wm_photo.webp" becomes "wm_photo.png".
func EncodableName(name string) string {
	if _, err := FormatFromPath(name); err == nil {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + model.GetImageFileExt[imaging.PNG]
}

// Encode writes img in the given format. JPEG has no alpha channel, so the
// image is flattened onto bg first.
func Encode(w io.Writer, img image.Image, format imaging.Format, quality int, bg color.Color) error {
	if img == nil {
		return errors.New("nil image provided to Encode")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	if format == imaging.JPEG {
		img = Flatten(img, bg)
	}

	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(quality)); err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return fmt.Errorf("%w: %v", model.ErrUnsupportedFmt, format)
		}
		return fmt.Errorf("encode %v image: %w", format, err)
	}
	return nil
}

// EncodeToBuffer encodes into memory and reports the size, for uploads and HTTP responses.
func EncodeToBuffer(img image.Image, format imaging.Format, quality int, bg color.Color) (io.Reader, int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality, bg); err != nil {
		return nil, 0, err
	}
	return &buf, int64(buf.Len()), nil
}

// Flatten composites img over an opaque background of the same size.
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	if bg == nil {
		bg = model.JPEGBackground
	}
	r, g, b, _ := bg.RGBA()
	opaque := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}

	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), opaque)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
