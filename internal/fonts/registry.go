// Package fonts resolves human font names into rasterizable font faces.
package fonts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/UnendingLoop/TextWatermark/internal/model"
	"github.com/arbovm/levenshtein"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DPI at 72 makes the requested point size equal to the pixel size.
const faceDPI = 72

var fontExts = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
	".otc": true,
}

// Registry maps font names to parsed OpenType fonts. Names are looked up in
// this order: bundled/registered fonts, font files found under the configured
// directories, then the alias table. An installed font always wins over an
// alias of the same name. There is no fallback font: an unknown name is an
// error. Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	dirs    []string
	aliases map[string]string
	raw     map[string][]byte
	display map[string]string
	parsed  map[string]*opentype.Font
	files   map[string]string
	indexed bool
}

func NewRegistry(dirs []string, aliases map[string]string) *Registry {
	r := &Registry{
		dirs:    dirs,
		aliases: make(map[string]string, len(aliases)),
		raw:     make(map[string][]byte),
		display: make(map[string]string),
		parsed:  make(map[string]*opentype.Font),
		files:   make(map[string]string),
	}
	for from, to := range aliases {
		r.aliases[normalize(from)] = to
		r.display[normalize(from)] = from
	}

	r.add("Go", goregular.TTF)
	r.add("Go Regular", goregular.TTF)
	r.add("Go Bold", gobold.TTF)
	r.add("Go Italic", goitalic.TTF)
	r.add("Go Medium", gomedium.TTF)
	r.add("Go Mono", gomono.TTF)

	return r
}

// Register adds font data under the given name, replacing any previous font
// with the same normalized name. The data is parsed eagerly.
func (r *Registry) Register(name string, data []byte) error {
	f, err := parse(data)
	if err != nil {
		return &model.FontError{Name: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalize(name)
	r.raw[key] = data
	r.display[key] = name
	r.parsed[key] = f
	return nil
}

// Resolve returns a face for name at size pixels (72 DPI).
func (r *Registry) Resolve(name string, size int) (font.Face, error) {
	if size < 1 {
		return nil, &model.ParamError{Field: "font_size", Value: fmt.Sprint(size)}
	}

	f, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     faceDPI,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, &model.FontError{Name: name, Err: fmt.Errorf("create face at %dpx: %w", size, err)}
	}
	return face, nil
}

// Names lists every resolvable font name, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexDirs()

	seen := make(map[string]bool)
	var res []string
	push := func(key string) {
		name := r.display[key]
		if seen[name] {
			return
		}
		seen[name] = true
		res = append(res, name)
	}
	for key := range r.raw {
		push(key)
	}
	for key := range r.files {
		push(key)
	}
	for key := range r.aliases {
		push(key)
	}

	sort.Strings(res)
	return res
}

func (r *Registry) lookup(name string) (*opentype.Font, error) {
	key := normalize(name)
	if key == "" {
		return nil, &model.FontError{Name: name, Err: model.ErrUnknownFont}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok, err := r.load(key)
	if !ok {
		// алиас только если такого шрифта нет ни в бандле, ни на диске
		if target, aliased := r.aliases[key]; aliased {
			f, ok, err = r.load(normalize(target))
		}
	}
	if err != nil {
		return nil, &model.FontError{Name: name, Err: err}
	}
	if !ok {
		return nil, &model.FontError{Name: name, Err: model.ErrUnknownFont, Suggestion: r.closest(key)}
	}
	return f, nil
}

// load finds key among registered fonts and indexed font files. ok is false
// when key is unknown. Caller holds r.mu.
func (r *Registry) load(key string) (*opentype.Font, bool, error) {
	if f, ok := r.parsed[key]; ok {
		return f, true, nil
	}

	if data, ok := r.raw[key]; ok {
		f, err := parse(data)
		if err != nil {
			return nil, true, err
		}
		r.parsed[key] = f
		return f, true, nil
	}

	r.indexDirs()
	path, ok := r.files[key]
	if !ok {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("read font file %s: %w", path, err)
	}
	f, err := parse(data)
	if err != nil {
		return nil, true, fmt.Errorf("parse font file %s: %w", path, err)
	}
	r.parsed[key] = f
	return f, true, nil
}

// closest returns the display name nearest to key by edit distance, or ""
// when nothing is near enough to be a plausible typo. Caller holds r.mu.
func (r *Registry) closest(key string) string {
	limit := len(key) / 3
	if limit < 2 {
		limit = 2
	}

	best, bestDist := "", limit+1
	try := func(candidate string) {
		d := levenshtein.Distance(key, candidate)
		if d < bestDist || (d == bestDist && r.display[candidate] < best) {
			best, bestDist = r.display[candidate], d
		}
	}
	for k := range r.raw {
		try(k)
	}
	for k := range r.files {
		try(k)
	}
	for k := range r.aliases {
		try(k)
	}
	return best
}

func (r *Registry) add(name string, data []byte) {
	key := normalize(name)
	r.raw[key] = data
	r.display[key] = name
}

// indexDirs walks the font directories once. Caller holds r.mu.
func (r *Registry) indexDirs() {
	if r.indexed {
		return
	}
	r.indexed = true

	// unreadable dirs are skipped, a missing font surfaces later as ErrUnknownFont
	for _, dir := range r.dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !fontExts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			for _, key := range fileKeys(stem) {
				if _, taken := r.files[key]; taken {
					continue
				}
				r.files[key] = path
				if _, ok := r.display[key]; !ok {
					r.display[key] = stem
				}
			}
			return nil
		})
	}
}

// fileKeys - "Arial-Regular" ищется и как "arial", и как "arialregular"
func fileKeys(stem string) []string {
	key := normalize(stem)
	keys := []string{key}
	if short := strings.TrimSuffix(key, "regular"); short != key && short != "" {
		keys = append(keys, short)
	}
	return keys
}

func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parse accepts single fonts and collections; collections yield their first face.
func parse(data []byte) (*opentype.Font, error) {
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	if coll.NumFonts() == 0 {
		return nil, errors.New("font collection is empty")
	}
	return coll.Font(0)
}
