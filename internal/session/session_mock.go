package session

import (
	"image"

	"github.com/UnendingLoop/TextWatermark/internal/model"
)

type mockRenderer struct {
	renderFn func(base image.Image, spec model.WatermarkSpec) (*image.NRGBA, error)
	calls    int
}

func (m *mockRenderer) Render(base image.Image, spec model.WatermarkSpec) (*image.NRGBA, error) {
	m.calls++
	return m.renderFn(base, spec)
}
