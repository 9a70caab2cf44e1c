// Package service provides business-logic for the app: a registry of watermarking sessions
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/UnendingLoop/TextWatermark/internal/mwlogger"
	"github.com/UnendingLoop/TextWatermark/internal/session"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ExportStorage - контракт для работы с хранилищем опубликованных результатов
type ExportStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// FontLister - контракт для списка доступных шрифтов
type FontLister interface {
	Names() []string
}

// SessionFactory builds an empty session wired to the shared compositor.
type SessionFactory func() *session.Session

type sessionEntry struct {
	mu        sync.Mutex
	sess      *session.Session
	createdAt time.Time
	lastUsed  time.Time
	closed    bool
	published map[string]string // имя файла -> ключ в хранилище
}

type SessionService struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]*sessionEntry
	newSession SessionFactory
	fonts      FontLister
	storage    ExportStorage
	keyPrefix  string
	now        func() time.Time
}

// NewSessionService creates the registry. strg may be nil, then Publish
// reports ErrPublishDisabled.
func NewSessionService(newSession SessionFactory, fonts FontLister, strg ExportStorage, keyPrefix string) *SessionService {
	return &SessionService{
		sessions:   make(map[uuid.UUID]*sessionEntry),
		newSession: newSession,
		fonts:      fonts,
		storage:    strg,
		keyPrefix:  keyPrefix,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) Create(ctx context.Context) (*model.SessionInfo, error) {
	now := s.now()
	id := uuid.New()
	e := &sessionEntry{sess: s.newSession(), createdAt: now, lastUsed: now}

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	logger := mwlogger.LoggerFromContext(ctx)
	logger.Info().Str("session_id", id.String()).Msg("Session created")

	return e.info(id), nil
}

func (s *SessionService) Info(ctx context.Context, id string) (*model.SessionInfo, error) {
	var res *model.SessionInfo
	err := s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		res = e.info(uid)
		return nil
	})
	return res, err
}

// Upload replaces the session's source image.
func (s *SessionService) Upload(ctx context.Context, id string, data *model.UploadData) (*model.SessionInfo, error) {
	if data == nil || data.File == nil || data.Size <= 0 {
		return nil, fmt.Errorf("%w: upload is empty", model.ErrImageLoad)
	}
	name := data.Filename
	if name == "" {
		name = "image" + model.GetImageFileExt[imaging.PNG]
	}

	var res *model.SessionInfo
	err := s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		logger := mwlogger.LoggerFromContext(ctx)
		if err := e.sess.LoadFrom(data.File, name); err != nil {
			logger.Warn().Err(err).Str("filename", name).Msg("Failed to decode uploaded image")
			return err
		}
		res = e.info(uid)
		logger.Info().Str("filename", name).Int("width", res.Width).Int("height", res.Height).Msg("Image loaded")
		return nil
	})
	return res, err
}

// Render parses req and renders it over the session's image. A failed render
// keeps the previous result.
func (s *SessionService) Render(ctx context.Context, id string, req *model.RenderRequest) (*model.SessionInfo, error) {
	if req == nil {
		return nil, &model.ParamError{Field: "body", Value: ""}
	}
	spec, err := model.NewWatermarkSpec(req.Text, req.FontName, req.Size, req.Placement)
	if err != nil {
		return nil, err
	}

	var res *model.SessionInfo
	err = s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		logger := mwlogger.LoggerFromContext(ctx)
		if err := e.sess.RenderWatermark(spec); err != nil {
			if errors.Is(err, model.ErrFontResolution) {
				logger.Warn().Err(err).Str("font", spec.FontName).Msg("Font resolution failed")
			}
			return err
		}
		res = e.info(uid)
		logger.Info().
			Str("font", spec.FontName).
			Str("size", string(spec.Size)).
			Str("placement", string(spec.Placement)).
			Msg("Watermark rendered")
		return nil
	})
	return res, err
}

// Preview returns a PNG-encoded display copy of the requested image.
func (s *SessionService) Preview(ctx context.Context, id string, kind string) (io.Reader, int64, error) {
	pk, err := model.ParsePreviewKind(kind)
	if err != nil {
		return nil, 0, err
	}

	var (
		data io.Reader
		size int64
	)
	err = s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		img, err := e.sess.Preview(pk)
		if err != nil {
			return err
		}
		data, size, err = imageproc.EncodeToBuffer(img, imaging.PNG, 0, nil)
		if err != nil {
			logger := mwlogger.LoggerFromContext(ctx)
			logger.Error().Err(err).Msg("Failed to encode preview")
			return model.ErrCommon500
		}
		return nil
	})
	return data, size, err
}

// Export encodes the watermarked image. Empty format means the source
// image's format.
func (s *SessionService) Export(ctx context.Context, id string, format string) (*model.ExportFile, error) {
	var res *model.ExportFile
	err := s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		var err error
		res, err = encodeExport(ctx, e.sess, format)
		return err
	})
	return res, err
}

// Publish uploads the watermarked export to object storage.
func (s *SessionService) Publish(ctx context.Context, id string, format string) (*model.PublishResult, error) {
	if s.storage == nil {
		return nil, model.ErrPublishDisabled
	}

	var res *model.PublishResult
	err := s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		logger := mwlogger.LoggerFromContext(ctx)
		file, err := encodeExport(ctx, e.sess, format)
		if err != nil {
			return err
		}

		key := s.keyPrefix + uid.String() + "/" + file.Filename
		if err := s.storage.Put(ctx, key, file.Size, file.ContentType, file.Data); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Failed to put export in Storage")
			return model.ErrCommon500
		}

		if e.published == nil {
			e.published = make(map[string]string)
		}
		e.published[file.Filename] = key

		logger.Info().Str("key", key).Int64("size", file.Size).Msg("Export published")
		res = &model.PublishResult{Key: key, Size: file.Size, ContentType: file.ContentType}
		return nil
	})
	return res, err
}

// Published opens an export this session has published earlier. The caller
// closes the returned reader.
func (s *SessionService) Published(ctx context.Context, id string, name string) (io.ReadCloser, string, error) {
	if s.storage == nil {
		return nil, "", model.ErrPublishDisabled
	}

	var (
		data  io.ReadCloser
		ctype string
	)
	err := s.withSession(ctx, id, func(ctx context.Context, uid uuid.UUID, e *sessionEntry) error {
		key, ok := e.published[name]
		if !ok {
			return model.ErrNotPublished
		}

		var err error
		data, ctype, err = s.storage.Get(ctx, key)
		if err != nil {
			logger := mwlogger.LoggerFromContext(ctx)
			logger.Error().Err(err).Str("key", key).Msg("Failed to get export from Storage")
			return model.ErrCommon500
		}
		return nil
	})
	return data, ctype, err
}

// Close drops the session and its published exports; later calls with its id
// report ErrSessionNotFound.
func (s *SessionService) Close(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.sessions[uid]
	delete(s.sessions, uid)
	s.mu.Unlock()
	if !ok {
		return model.ErrSessionNotFound
	}

	e.mu.Lock()
	keys := e.close()
	e.mu.Unlock()

	s.dropPublished(ctx, keys)

	logger := mwlogger.LoggerFromContext(ctx)
	logger.Info().Str("session_id", uid.String()).Msg("Session closed")
	return nil
}

// ReapIdle closes sessions unused for longer than ttl, removes their
// published exports and returns how many sessions were closed. Sessions busy
// with a request are skipped.
func (s *SessionService) ReapIdle(ctx context.Context, ttl time.Duration) int {
	logger := mwlogger.LoggerFromContext(ctx)
	deadline := s.now().Add(-ttl)

	var keys []string
	reaped := 0

	s.mu.Lock()
	for uid, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(deadline) {
			keys = append(keys, e.close()...)
			delete(s.sessions, uid)
			reaped++
		}
		e.mu.Unlock()
	}
	active := len(s.sessions)
	s.mu.Unlock()

	// хранилище трогаем уже без блокировки реестра
	s.dropPublished(ctx, keys)

	if reaped > 0 {
		logger.Info().Int("reaped", reaped).Int("active", active).Msg("Idle sessions evicted")
	}
	return reaped
}

// Fonts lists font names the registry can resolve.
func (s *SessionService) Fonts(ctx context.Context) []string {
	if s.fonts == nil {
		return nil
	}
	return s.fonts.Names()
}

// Count - число активных сессий
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// withSession locks the entry for the duration of fn; one session serves one
// request at a time.
func (s *SessionService) withSession(ctx context.Context, id string, fn func(context.Context, uuid.UUID, *sessionEntry) error) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.RLock()
	e, ok := s.sessions[uid]
	s.mu.RUnlock()
	if !ok {
		return model.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return model.ErrSessionNotFound
	}
	e.lastUsed = s.now()

	return fn(mwlogger.WithSession(ctx, uid.String()), uid, e)
}

// dropPublished removes exports of closed sessions; failures are only logged.
func (s *SessionService) dropPublished(ctx context.Context, keys []string) {
	if s.storage == nil || len(keys) == 0 {
		return
	}

	logger := mwlogger.LoggerFromContext(ctx)
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to delete published export")
			continue
		}
		logger.Debug().Str("key", key).Msg("Published export deleted")
	}
}

// close marks the entry closed and hands back its published keys. Caller holds e.mu.
func (e *sessionEntry) close() []string {
	keys := make([]string, 0, len(e.published))
	for _, key := range e.published {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	e.closed = true
	e.sess = nil
	e.published = nil
	return keys
}

func (e *sessionEntry) info(id uuid.UUID) *model.SessionInfo {
	info := e.sess.Info()
	info.ID = id
	created, used := e.createdAt, e.lastUsed
	info.CreatedAt = &created
	info.LastActiveAt = &used
	return &info
}

func encodeExport(ctx context.Context, sess *session.Session, format string) (*model.ExportFile, error) {
	if !sess.HasWatermarked() {
		return nil, model.ErrNothingToExport
	}

	f, err := exportFormat(format, sess.Info().SourceName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sess.WriteWatermarked(&buf, f); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg("Failed to encode watermarked image")
		return nil, model.ErrCommon500
	}

	return &model.ExportFile{
		Data:        &buf,
		Size:        int64(buf.Len()),
		ContentType: model.GetCType[f],
		Filename:    exportFilename(sess.SuggestedExportName(), f),
	}, nil
}
