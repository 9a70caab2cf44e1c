// Package main (in api-subfolder) launches the watermarking HTTP API
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/TextWatermark/internal/config"
	"github.com/UnendingLoop/TextWatermark/internal/fonts"
	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/mwlogger"
	"github.com/UnendingLoop/TextWatermark/internal/service"
	"github.com/UnendingLoop/TextWatermark/internal/session"
	"github.com/UnendingLoop/TextWatermark/internal/storage"
	"github.com/UnendingLoop/TextWatermark/internal/transport"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	cfg, err := config.FromEnv("./.env")
	if err != nil {
		log.Fatalf("Failed to load config: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// шрифты и компоновщик общие для всех сессий
	registry := fonts.NewRegistry(cfg.FontDirs, cfg.FontAliases)
	compositor := imageproc.NewCompositor(registry, cfg.Style())
	sessOpts := session.DefaultOptions()
	sessOpts.PreviewSide = cfg.PreviewSize
	sessOpts.JPEGQuality = cfg.JPEGQuality
	newSession := func() *session.Session { return session.New(compositor, sessOpts) }

	// подключиться к хранилищу - только если оно настроено
	var strg service.ExportStorage
	if cfg.Storage.Enabled() {
		minio, err := storage.NewExportStorage(ctx, cfg.Storage, storage.DefaultConnectStrategy)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("Failed to connect export storage")
		}
		strg = minio
	} else {
		zlog.Logger.Info().Msg("MINIO_ENDPOINT is empty, publishing is disabled")
	}

	// создаем экземпляр сервиса
	var svc WatermarkAPIService = service.NewSessionService(newSession, registry, strg, cfg.Storage.KeyPrefix)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewSessionHandler(svc)
	// сетапим сервер
	engine := ginext.New(cfg.GinMode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/fonts", handlers.ListFonts)
	engine.POST("/sessions", handlers.Create)                       // новая сессия
	engine.GET("/sessions/:id", handlers.Info)                      // состояние сессии
	engine.DELETE("/sessions/:id", handlers.Close)                  // закрыть сессию и удалить опубликованное
	engine.POST("/sessions/:id/image", handlers.Upload)             // загрузка исходника
	engine.POST("/sessions/:id/watermark", handlers.Render)         // наложение текста
	engine.GET("/sessions/:id/preview/:kind", handlers.Preview)     // превью original|watermarked
	engine.GET("/sessions/:id/export", handlers.Export)             // скачать результат
	engine.POST("/sessions/:id/publish", handlers.Publish)          // выгрузить результат в хранилище
	engine.GET("/sessions/:id/published/:name", handlers.Published) // скачать опубликованное из хранилища

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mwlogger.NewMWLogger(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Server launch
	go func() {
		zlog.Logger.Info().Msgf("Server running on http://localhost%s", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				zlog.Logger.Info().Msg("Server gracefully stopping...")
			default:
				zlog.Logger.Error().Err(err).Msg("Server stopped")
				stop()
			}
		}
	}()

	// фоновая чистка брошенных сессий
	go evictionLoop(ctx, svc, cfg.SessionTTL)

	<-ctx.Done()

	shutdown(srv)
	zlog.Logger.Info().Msg("Exiting app...")
}

func evictionLoop(ctx context.Context, svc WatermarkAPIService, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Eviction loop crashed")
		}
	}()

	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReapIdle(context.Background(), ttl)
		}
	}
}

func shutdown(srv *http.Server) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to shutdown HTTP-server correctly")
		return
	}
	zlog.Logger.Info().Msg("HTTP-server stopped")
}
