package transport

import (
	"errors"
	"io"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/wb-go/wbf/zlog"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrNotPublished):
		return 404
	case errors.Is(err, model.ErrNoImageLoaded),
		errors.Is(err, model.ErrNothingToExport):
		return 409
	case errors.Is(err, model.ErrFontResolution):
		return 422
	case errors.Is(err, model.ErrPublishDisabled):
		return 501
	case errors.Is(err, model.ErrInvalidParameter),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrImageLoad),
		errors.Is(err, model.ErrUnsupportedFmt):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
