package service

import (
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, model.ErrIncorrectID
	}
	return uid, nil
}

// exportFormat - явный формат из запроса; иначе формат исходника; иначе PNG
func exportFormat(requested, sourceName string) (imaging.Format, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return imageproc.ParseFormat(requested)
	}
	if f, err := imageproc.FormatFromPath(sourceName); err == nil {
		return f, nil
	}
	return imaging.PNG, nil
}

// exportFilename swaps the suggested name's extension for the one of format,
// "wm_photo.webp" exported as PNG becomes "wm_photo.png".
func exportFilename(suggested string, f imaging.Format) string {
	ext := model.GetImageFileExt[f]
	if suggested == "" {
		return "wm_image" + ext
	}

	cur := filepath.Ext(suggested)
	if cf, err := imageproc.ParseFormat(cur); err == nil && cf == f {
		return suggested
	}
	return strings.TrimSuffix(suggested, cur) + ext
}
