// Package main (in watermark-subfolder) stamps a text watermark onto one image file
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/TextWatermark/internal/config"
	"github.com/UnendingLoop/TextWatermark/internal/fonts"
	"github.com/UnendingLoop/TextWatermark/internal/imageproc"
	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/UnendingLoop/TextWatermark/internal/session"
	"github.com/disintegration/imaging"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

type options struct {
	in        string
	out       string
	text      string
	font      string
	size      string
	placement string
	fontDirs  []string
	alpha     int
	inset     int
	preview   bool
	listFonts bool
}

func main() {
	zlog.InitConsole()

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		zlog.Logger.Error().Err(err).Msg("Watermarking failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	// дефолты из env/.env, флаги поверх
	cfg, err := config.FromEnv("./.env")
	if err != nil {
		return err
	}
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	registry := fonts.NewRegistry(append(opts.fontDirs, cfg.FontDirs...), cfg.FontAliases)
	if opts.listFonts {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		return nil
	}

	spec, err := model.NewWatermarkSpec(opts.text, opts.font, opts.size, opts.placement)
	if err != nil {
		return err
	}

	style := cfg.Style()
	style.Fill.A = uint8(opts.alpha)
	style.Inset = opts.inset

	sessOpts := session.DefaultOptions()
	sessOpts.PreviewSide = cfg.PreviewSize
	sessOpts.JPEGQuality = cfg.JPEGQuality
	sess := session.New(imageproc.NewCompositor(registry, style), sessOpts)

	if err := sess.Load(opts.in); err != nil {
		return err
	}
	if err := sess.RenderWatermark(spec); err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		// webp и файлы без расширения сохраняем как png
		out = filepath.Join(filepath.Dir(opts.in), imageproc.EncodableName(sess.SuggestedExportName()))
	}
	if err := sess.ExportWatermarked(out); err != nil {
		return err
	}
	zlog.Logger.Info().Str("in", opts.in).Str("out", out).Msg("Watermark written")

	if opts.preview {
		if err := writePreview(sess, out); err != nil {
			return err
		}
	}
	return nil
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("watermark", pflag.ContinueOnError)

	fs.StringVarP(&opts.in, "in", "i", "", "source image (png, jpg, gif, bmp, tiff, webp)")
	fs.StringVarP(&opts.out, "out", "o", "", "output file, format from extension (default wm_<name> next to the input)")
	fs.StringVarP(&opts.text, "text", "t", "", "watermark text")
	fs.StringVarP(&opts.font, "font", "f", "Arial", "font name")
	fs.StringVarP(&opts.size, "size", "s", string(model.SizeMedium), "small | medium | large")
	fs.StringVarP(&opts.placement, "placement", "p", string(model.PlacementBoth), "middle | bottom | both")
	fs.StringArrayVar(&opts.fontDirs, "font-dir", nil, "extra directory with font files, repeatable")
	fs.IntVar(&opts.alpha, "alpha", int(cfg.Alpha), "text opacity 0..255")
	fs.IntVar(&opts.inset, "inset", cfg.Inset, "bottom-right margin in pixels")
	fs.BoolVar(&opts.preview, "preview", false, "also write a preview PNG next to the output")
	fs.BoolVar(&opts.listFonts, "list-fonts", false, "print resolvable font names and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.listFonts {
		return opts, nil
	}

	if opts.in == "" {
		return nil, &model.ParamError{Field: "in", Value: ""}
	}
	if opts.alpha < 0 || opts.alpha > 255 {
		return nil, &model.ParamError{Field: "alpha", Value: fmt.Sprint(opts.alpha)}
	}
	if opts.inset < 0 {
		return nil, &model.ParamError{Field: "inset", Value: fmt.Sprint(opts.inset)}
	}
	return opts, nil
}

// writePreview кладёт "<out>.preview.png" рядом с результатом
func writePreview(sess *session.Session, out string) error {
	img, err := sess.PreviewWatermarked()
	if err != nil {
		return err
	}

	path := strings.TrimSuffix(out, filepath.Ext(out)) + ".preview.png"
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrImageSave, err)
	}
	defer f.Close()

	if err := imageproc.Encode(f, img, imaging.PNG, 0, nil); err != nil {
		return fmt.Errorf("%w: %q: %w", model.ErrImageSave, path, err)
	}
	zlog.Logger.Info().Str("preview", path).Msg("Preview written")
	return nil
}
