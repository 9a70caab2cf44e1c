// Package config turns raw env/.env values into typed application settings
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/UnendingLoop/TextWatermark/internal/fonts"
	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/spf13/cast"
	wbfconfig "github.com/wb-go/wbf/config"
)

// Source - всё, что нужно от wbf-конфига
type Source interface {
	GetString(key string) string
}

type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	FontDirs    []string
	FontAliases map[string]string
	Alpha       uint8
	Inset       int
	PreviewSize int
	JPEGQuality int
	SessionTTL  time.Duration
	Storage     StorageConfig
}

type StorageConfig struct {
	Endpoint  string
	User      string
	Pass      string
	Secure    bool
	Bucket    string
	KeyPrefix string
}

// Enabled reports whether publishing to object storage is configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// DefaultAliases maps the classic desktop font names to the bundled Go fonts,
// so they resolve on machines without those files installed.
var DefaultAliases = map[string]string{
	"Arial":           "Go",
	"Helvetica":       "Go",
	"Verdana":         "Go",
	"Tahoma":          "Go",
	"Geneva":          "Go",
	"PT Sans":         "Go",
	"Courier New":     "Go Mono",
	"Times New Roman": "Go Medium",
	"Baskerville":     "Go Medium",
	"PT Serif":        "Go Medium",
}

// FromEnv reads env variables and, if present, the given .env file.
func FromEnv(envFile string) (*Config, error) {
	src := wbfconfig.New()
	src.EnableEnv("")
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := src.LoadEnvFiles(envFile); err != nil {
				return nil, fmt.Errorf("load env file %q: %w", envFile, err)
			}
		}
	}
	return Load(src)
}

// Load builds Config from src applying defaults; malformed values are errors.
func Load(src Source) (*Config, error) {
	cfg := &Config{
		Port:        valueOr(src, "APP_PORT", "8080"),
		GinMode:     valueOr(src, "GIN_MODE", "release"),
		LogLevel:    valueOr(src, "LOG_LEVEL", "info"),
		FontAliases: make(map[string]string, len(DefaultAliases)),
	}
	var errs []error

	cfg.FontDirs = splitList(src.GetString("FONT_DIRS"))
	if len(cfg.FontDirs) == 0 {
		cfg.FontDirs = fonts.SystemDirs()
	}

	for k, v := range DefaultAliases {
		cfg.FontAliases[k] = v
	}
	custom, err := parseAliases(src.GetString("FONT_ALIASES"))
	if err != nil {
		errs = append(errs, err)
	}
	for k, v := range custom {
		cfg.FontAliases[k] = v
	}

	alpha, err := intInRange(src, "WATERMARK_ALPHA", model.DefaultAlpha, 0, 255)
	errs = append(errs, err)
	cfg.Alpha = uint8(alpha)

	cfg.Inset, err = intInRange(src, "WATERMARK_INSET", model.DefaultInset, 0, 10000)
	errs = append(errs, err)
	cfg.PreviewSize, err = intInRange(src, "PREVIEW_SIZE", imageproc.DefaultPreviewSide, 1, 10000)
	errs = append(errs, err)
	cfg.JPEGQuality, err = intInRange(src, "JPEG_QUALITY", imageproc.DefaultJPEGQuality, 1, 100)
	errs = append(errs, err)

	cfg.SessionTTL = 30 * time.Minute
	if raw := strings.TrimSpace(src.GetString("SESSION_TTL")); raw != "" {
		ttl, err := cast.ToDurationE(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("SESSION_TTL: %w", err))
		case ttl <= 0:
			errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %v", ttl))
		default:
			cfg.SessionTTL = ttl
		}
	}

	cfg.Storage = StorageConfig{
		Endpoint:  strings.TrimSpace(src.GetString("MINIO_ENDPOINT")),
		User:      src.GetString("MINIO_USER"),
		Pass:      src.GetString("MINIO_PASS"),
		Bucket:    valueOr(src, "BUCKET_NAME", "watermarks"),
		KeyPrefix: valueOr(src, "EXPORT_KEY_PREFIX", "exports/"),
	}
	if raw := strings.TrimSpace(src.GetString("MINIO_SECURE")); raw != "" {
		secure, err := cast.ToBoolE(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("MINIO_SECURE: %w", err))
		}
		cfg.Storage.Secure = secure
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Style returns the watermark fill and inset configured for rendering.
func (c *Config) Style() model.Style {
	st := model.DefaultStyle()
	st.Fill.A = c.Alpha
	st.Inset = c.Inset
	return st
}

func valueOr(src Source, key, def string) string {
	if v := strings.TrimSpace(src.GetString(key)); v != "" {
		return v
	}
	return def
}

func intInRange(src Source, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(src.GetString(key))
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	if v < lo || v > hi {
		return def, fmt.Errorf("%s must be within [%d, %d], got %d", key, lo, hi, v)
	}
	return v, nil
}

// splitList - значения через запятую, пустые элементы отбрасываются
func splitList(raw string) []string {
	var res []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

// parseAliases reads "Name=Other,Name2=Other2".
func parseAliases(raw string) (map[string]string, error) {
	res := make(map[string]string)
	for _, pair := range splitList(raw) {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("FONT_ALIASES: malformed pair %q, expected Name=Target", pair)
		}
		res[from] = to
	}
	return res, nil
}
