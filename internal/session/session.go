// Package session holds one loaded image and its latest watermarked rendering.
package session

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/disintegration/imaging"
)

// Renderer produces a watermarked copy of base.
type Renderer interface {
	Render(base image.Image, spec model.WatermarkSpec) (*image.NRGBA, error)
}

type Options struct {
	PreviewSide int
	JPEGQuality int
	Background  color.Color
}

func DefaultOptions() Options {
	return Options{
		PreviewSide: imageproc.DefaultPreviewSide,
		JPEGQuality: imageproc.DefaultJPEGQuality,
		Background:  model.JPEGBackground,
	}
}

// Session owns one original image and at most one watermarked image derived
// from it. A Session is not safe for concurrent use; callers serialize access.
type Session struct {
	renderer    Renderer
	opts        Options
	original    *image.NRGBA
	watermarked *image.NRGBA
	spec        *model.WatermarkSpec
	sourceName  string
}

func New(r Renderer, opts Options) *Session {
	def := DefaultOptions()
	if opts.PreviewSide <= 0 {
		opts.PreviewSide = def.PreviewSide
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = def.JPEGQuality
	}
	if opts.Background == nil {
		opts.Background = def.Background
	}
	return &Session{renderer: r, opts: opts}
}

// Load opens and decodes the file at path. On success the previous original
// and any watermarked image are replaced; on failure nothing changes.
func (s *Session) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageLoad, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", model.ErrImageLoad, path, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: %q is a directory", model.ErrImageLoad, path)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%w: %q is empty", model.ErrImageLoad, path)
	}

	return s.LoadFrom(f, filepath.Base(path))
}

// LoadFrom decodes an image from r, name is kept for the suggested export name.
func (s *Session) LoadFrom(r io.Reader, name string) error {
	img, err := imageproc.Decode(r)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", model.ErrImageLoad, name, err)
	}

	s.original = img
	s.watermarked = nil
	s.spec = nil
	s.sourceName = name
	return nil
}

// RenderWatermark renders spec over the current original. The previous
// watermarked image is kept if rendering fails.
func (s *Session) RenderWatermark(spec model.WatermarkSpec) error {
	if s.original == nil {
		return model.ErrNoImageLoaded
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	res, err := s.renderer.Render(s.original, spec)
	if err != nil {
		return err
	}

	s.watermarked = res
	s.spec = &spec
	return nil
}

// ExportWatermarked writes the watermarked image to path, format taken from
// the extension. The image is encoded into a temporary file next to path and
// renamed over it only on success, so a failed export leaves an existing
// file at path untouched.
func (s *Session) ExportWatermarked(path string) (err error) {
	if s.watermarked == nil {
		return model.ErrNothingToExport
	}

	format, err := imageproc.FormatFromPath(path)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	// CreateTemp создаёт 0600, результат должен читаться как обычный файл
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}
	if err := imageproc.Encode(tmp, s.watermarked, format, s.opts.JPEGQuality, s.opts.Background); err != nil {
		return fmt.Errorf("%w: %q: %w", model.ErrImageSave, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %w", model.ErrImageSave, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}
	return nil
}

// WriteWatermarked encodes the watermarked image to w.
func (s *Session) WriteWatermarked(w io.Writer, format imaging.Format) error {
	if s.watermarked == nil {
		return model.ErrNothingToExport
	}
	if err := imageproc.Encode(w, s.watermarked, format, s.opts.JPEGQuality, s.opts.Background); err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}
	return nil
}

// PreviewOriginal returns a display-sized copy of the original image.
func (s *Session) PreviewOriginal() (*image.NRGBA, error) {
	if s.original == nil {
		return nil, model.ErrNoImageLoaded
	}
	return imageproc.Preview(s.original, s.opts.PreviewSide)
}

// PreviewWatermarked returns a display-sized copy of the watermarked image.
func (s *Session) PreviewWatermarked() (*image.NRGBA, error) {
	if s.watermarked == nil {
		return nil, model.ErrNothingToExport
	}
	return imageproc.Preview(s.watermarked, s.opts.PreviewSide)
}

func (s *Session) Preview(kind model.PreviewKind) (*image.NRGBA, error) {
	switch kind {
	case model.PreviewOriginal:
		return s.PreviewOriginal()
	case model.PreviewWatermarked:
		return s.PreviewWatermarked()
	default:
		return nil, &model.ParamError{Field: "kind", Value: string(kind)}
	}
}

// SuggestedExportName - "wm_" + имя загруженного файла, пусто если ничего не загружено
func (s *Session) SuggestedExportName() string {
	if s.sourceName == "" {
		return ""
	}
	return "wm_" + s.sourceName
}

func (s *Session) HasOriginal() bool    { return s.original != nil }
func (s *Session) HasWatermarked() bool { return s.watermarked != nil }

// Info describes the session state; ID and timestamps are filled by the caller.
func (s *Session) Info() model.SessionInfo {
	info := model.SessionInfo{
		SourceName:  s.sourceName,
		Watermarked: s.watermarked != nil,
		ExportName:  s.SuggestedExportName(),
	}
	if s.original != nil {
		info.Width = s.original.Bounds().Dx()
		info.Height = s.original.Bounds().Dy()
	}
	if s.spec != nil {
		spec := *s.spec
		info.Spec = &spec
	}
	return info
}
