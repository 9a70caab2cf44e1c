// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/UnendingLoop/TextWatermark/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

type SessionHandler struct {
	service SessionService
}

type SessionService interface {
	Create(ctx context.Context) (*model.SessionInfo, error)
	Info(ctx context.Context, id string) (*model.SessionInfo, error)
	Upload(ctx context.Context, id string, data *model.UploadData) (*model.SessionInfo, error)
	Render(ctx context.Context, id string, req *model.RenderRequest) (*model.SessionInfo, error)
	Preview(ctx context.Context, id string, kind string) (io.Reader, int64, error)
	Export(ctx context.Context, id string, format string) (*model.ExportFile, error)       // скачать результат
	Publish(ctx context.Context, id string, format string) (*model.PublishResult, error) // положить результат в хранилище
	Published(ctx context.Context, id string, name string) (io.ReadCloser, string, error)
	Close(ctx context.Context, id string) error
	Fonts(ctx context.Context) []string
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{
		service: svc,
	}
}

func (h SessionHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h SessionHandler) ListFonts(ctx *ginext.Context) {
	names := h.service.Fonts(ctx.Request.Context())
	if names == nil {
		names = []string{}
	}
	ctx.JSON(200, map[string][]string{"fonts": names})
}

func (h SessionHandler) Create(ctx *ginext.Context) {
	res, err := h.service.Create(ctx.Request.Context())
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SessionHandler) Info(ctx *ginext.Context) {
	res, err := h.service.Info(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) Upload(ctx *ginext.Context) {
	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	data := &model.UploadData{
		File:        imageFile,
		Filename:    imageHeader.Filename,
		Size:        imageHeader.Size,
		ContentType: imageHeader.Header.Get("Content-Type"),
	}

	res, err := h.service.Upload(ctx.Request.Context(), ctx.Param("id"), data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) Render(ctx *ginext.Context) {
	var req model.RenderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse watermark parameters"})
		return
	}

	res, err := h.service.Render(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h SessionHandler) Preview(ctx *ginext.Context) {
	id := ctx.Param("id")

	data, size, err := h.service.Preview(ctx.Request.Context(), id, ctx.Param("kind"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	writeImage(ctx, data, size, model.PNG)
}

func (h SessionHandler) Export(ctx *ginext.Context) {
	id := ctx.Param("id")

	file, err := h.service.Export(ctx.Request.Context(), id, ctx.Query("format"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	writeImage(ctx, file.Data, file.Size, file.ContentType)
}

func (h SessionHandler) Publish(ctx *ginext.Context) {
	res, err := h.service.Publish(ctx.Request.Context(), ctx.Param("id"), ctx.Query("format"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h SessionHandler) Published(ctx *ginext.Context) {
	data, cType, err := h.service.Published(ctx.Request.Context(), ctx.Param("id"), ctx.Param("name"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(data)

	// размер объекта не знаем - отдаем потоком
	writeImage(ctx, data, -1, cType)
}

func (h SessionHandler) Close(ctx *ginext.Context) {
	if err := h.service.Close(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

func writeImage(ctx *ginext.Context, data io.Reader, size int64, cType string) {
	ctx.Writer.Header().Set("Content-Type", cType)
	if size >= 0 {
		ctx.Writer.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, data); err != nil {
		logger := mwlogger.LoggerFromContext(ctx.Request.Context())
		logger.Warn().Err(err).Int64("written", n).Msg("Failed to write image response")
	}
}
