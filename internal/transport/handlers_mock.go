package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/gin-gonic/gin"
)

type mockSessionService struct {
	createFn    func(ctx context.Context) (*model.SessionInfo, error)
	infoFn      func(ctx context.Context, id string) (*model.SessionInfo, error)
	uploadFn    func(ctx context.Context, id string, d *model.UploadData) (*model.SessionInfo, error)
	renderFn    func(ctx context.Context, id string, req *model.RenderRequest) (*model.SessionInfo, error)
	previewFn   func(ctx context.Context, id string, kind string) (io.Reader, int64, error)
	exportFn    func(ctx context.Context, id string, format string) (*model.ExportFile, error)
	publishFn   func(ctx context.Context, id string, format string) (*model.PublishResult, error)
	publishedFn func(ctx context.Context, id string, name string) (io.ReadCloser, string, error)
	closeFn     func(ctx context.Context, id string) error
	fontsFn     func(ctx context.Context) []string
}

func (m *mockSessionService) Create(ctx context.Context) (*model.SessionInfo, error) {
	return m.createFn(ctx)
}

func (m *mockSessionService) Info(ctx context.Context, id string) (*model.SessionInfo, error) {
	return m.infoFn(ctx, id)
}

func (m *mockSessionService) Upload(ctx context.Context, id string, d *model.UploadData) (*model.SessionInfo, error) {
	return m.uploadFn(ctx, id, d)
}

func (m *mockSessionService) Render(ctx context.Context, id string, req *model.RenderRequest) (*model.SessionInfo, error) {
	return m.renderFn(ctx, id, req)
}

func (m *mockSessionService) Preview(ctx context.Context, id string, kind string) (io.Reader, int64, error) {
	return m.previewFn(ctx, id, kind)
}

func (m *mockSessionService) Export(ctx context.Context, id string, format string) (*model.ExportFile, error) {
	return m.exportFn(ctx, id, format)
}

func (m *mockSessionService) Publish(ctx context.Context, id string, format string) (*model.PublishResult, error) {
	return m.publishFn(ctx, id, format)
}

func (m *mockSessionService) Published(ctx context.Context, id string, name string) (io.ReadCloser, string, error) {
	return m.publishedFn(ctx, id, name)
}

func (m *mockSessionService) Close(ctx context.Context, id string) error {
	return m.closeFn(ctx, id)
}

func (m *mockSessionService) Fonts(ctx context.Context) []string {
	return m.fontsFn(ctx)
}

func init() {
	gin.SetMode(gin.TestMode)
}
