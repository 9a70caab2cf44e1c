// Package model provides data-structs and errors for internal app-usage
package model

import (
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type (
	SizeCategory string
	Placement    string
	PreviewKind  string
)

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// SizeOrder - порядок категорий от меньшей к большей, на нем держится монотонность размера шрифта
var SizeOrder = []SizeCategory{SizeSmall, SizeMedium, SizeLarge}

// SizeDivisors - делитель высоты картинки для каждой категории
var SizeDivisors = map[SizeCategory]int{
	SizeSmall:  20,
	SizeMedium: 15,
	SizeLarge:  10,
}

const (
	PlacementMiddle Placement = "middle"
	PlacementBottom Placement = "bottom"
	PlacementBoth   Placement = "both"
)

var PlacementsMap = map[Placement]bool{
	PlacementMiddle: true,
	PlacementBottom: true,
	PlacementBoth:   true,
}

const (
	PreviewOriginal    PreviewKind = "original"
	PreviewWatermarked PreviewKind = "watermarked"
)

//---------------------

// WatermarkSpec describes one watermarking request. It is passed by value into
// every render call and never modified afterwards.
type WatermarkSpec struct {
	Text      string       `json:"text"`
	FontName  string       `json:"font_name"`
	Size      SizeCategory `json:"size"`
	Placement Placement    `json:"placement"`
}

// NewWatermarkSpec parses raw UI/request values into a validated spec.
// Size and placement are matched case-insensitively and stored canonical.
func NewWatermarkSpec(text, fontName, size, placement string) (WatermarkSpec, error) {
	sz, err := ParseSizeCategory(size)
	if err != nil {
		return WatermarkSpec{}, err
	}
	pl, err := ParsePlacement(placement)
	if err != nil {
		return WatermarkSpec{}, err
	}

	spec := WatermarkSpec{
		Text:      text,
		FontName:  strings.TrimSpace(fontName),
		Size:      sz,
		Placement: pl,
	}
	if err := spec.Validate(); err != nil {
		return WatermarkSpec{}, err
	}
	return spec, nil
}

// Validate checks a spec that may have been built as a literal.
func (s WatermarkSpec) Validate() error {
	if _, ok := SizeDivisors[s.Size]; !ok {
		return &ParamError{Field: "size", Value: string(s.Size), Allowed: sizeNames()}
	}
	if !PlacementsMap[s.Placement] {
		return &ParamError{Field: "placement", Value: string(s.Placement), Allowed: placementNames()}
	}
	if strings.TrimSpace(s.FontName) == "" {
		return &ParamError{Field: "font_name", Value: s.FontName}
	}
	return nil
}

func ParseSizeCategory(raw string) (SizeCategory, error) {
	sz := SizeCategory(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := SizeDivisors[sz]; !ok {
		return "", &ParamError{Field: "size", Value: raw, Allowed: sizeNames()}
	}
	return sz, nil
}

func ParsePlacement(raw string) (Placement, error) {
	pl := Placement(strings.ToLower(strings.TrimSpace(raw)))
	if !PlacementsMap[pl] {
		return "", &ParamError{Field: "placement", Value: raw, Allowed: placementNames()}
	}
	return pl, nil
}

func ParsePreviewKind(raw string) (PreviewKind, error) {
	switch k := PreviewKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case PreviewOriginal, PreviewWatermarked:
		return k, nil
	default:
		return "", &ParamError{
			Field:   "kind",
			Value:   raw,
			Allowed: []string{string(PreviewOriginal), string(PreviewWatermarked)},
		}
	}
}

func sizeNames() []string {
	res := make([]string, 0, len(SizeOrder))
	for _, s := range SizeOrder {
		res = append(res, string(s))
	}
	return res
}

func placementNames() []string {
	return []string{string(PlacementMiddle), string(PlacementBottom), string(PlacementBoth)}
}

//---------------------

// Style holds the drawing defaults shared by all renders.
type Style struct {
	Fill  color.NRGBA
	Inset int
}

const (
	DefaultAlpha = 128
	DefaultInset = 10
)

func DefaultStyle() Style {
	return Style{
		Fill:  color.NRGBA{R: 255, G: 255, B: 255, A: DefaultAlpha},
		Inset: DefaultInset,
	}
}

// JPEGBackground - фон, на который сплющивается альфа перед кодированием в JPEG
var JPEGBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

//---------------------

type SessionInfo struct {
	ID           uuid.UUID      `json:"id"`
	SourceName   string         `json:"source_name,omitempty"`
	Width        int            `json:"width,omitempty"`
	Height       int            `json:"height,omitempty"`
	Watermarked  bool           `json:"watermarked"`
	Spec         *WatermarkSpec `json:"spec,omitempty"`
	ExportName   string         `json:"export_name,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	LastActiveAt *time.Time     `json:"last_active_at,omitempty"`
}

type RenderRequest struct {
	Text      string `json:"text"`
	FontName  string `json:"font_name"`
	Size      string `json:"size"`
	Placement string `json:"placement"`
}

type UploadData struct {
	File        io.Reader
	Filename    string
	Size        int64
	ContentType string
}

// ExportFile - закодированный результат, готовый к отдаче или загрузке в хранилище
type ExportFile struct {
	Data        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

type PublishResult struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	TIFF = "image/tiff"
	BMP  = "image/bmp"
)

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.PNG:  PNG,
	imaging.GIF:  GIF,
	imaging.TIFF: TIFF,
	imaging.BMP:  BMP,
}

var GetImageFileExt = map[imaging.Format]string{
	imaging.JPEG: ".jpg",
	imaging.PNG:  ".png",
	imaging.GIF:  ".gif",
	imaging.TIFF: ".tiff",
	imaging.BMP:  ".bmp",
}
