package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParameter error = errors.New("invalid parameter")                          // 400
	ErrFontResolution   error = errors.New("font cannot be resolved")                    // 422
	ErrImageLoad        error = errors.New("failed to load image")                       // 400
	ErrImageSave        error = errors.New("failed to save image")                       // 400/500
	ErrNoImageLoaded    error = errors.New("no image loaded")                            // 409
	ErrNothingToExport  error = errors.New("no watermarked image to export")             // 409
	ErrUnknownFont      error = errors.New("font name is unknown to the font registry")  // 422
	ErrUnsupportedFmt   error = errors.New("unsupported image format")                   // 400
	ErrIncorrectID      error = errors.New("incorrect session UUID")                     // 400
	ErrSessionNotFound  error = errors.New("specified session UUID doesn't exist")       // 404
	ErrPublishDisabled  error = errors.New("object storage is not configured")           // 501
	ErrNotPublished     error = errors.New("export with this name was not published")    // 404
	ErrCommon500        error = errors.New("something went wrong. Try again later")      // 500
)

// ParamError reports a request field whose value is outside its allowed set.
type ParamError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ParamError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s: %s %q", ErrInvalidParameter, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s %q, expected one of [%s]",
		ErrInvalidParameter, e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// FontError names the font that could not be resolved or loaded.
type FontError struct {
	Name       string
	Err        error
	Suggestion string // ближайшее известное имя, может быть пустым
}

func (e *FontError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %q: %v (did you mean %q?)", ErrFontResolution, e.Name, e.Err, e.Suggestion)
	}
	return fmt.Sprintf("%s: %q: %v", ErrFontResolution, e.Name, e.Err)
}

func (e *FontError) Is(target error) bool {
	return target == ErrFontResolution
}

func (e *FontError) Unwrap() error {
	return e.Err
}
