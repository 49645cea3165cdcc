package annotate

import (
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFontPaths are scalable fonts commonly present on desktop systems.
// Callers usually append them after any user-configured fonts.
var DefaultFontPaths = []string{
	"arial.ttf",
	"C:/Windows/Fonts/arial.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
}

const (
	sourceEmbedded = "embedded:goregular"
	sourceBasic    = "basicfont:7x13"
)

// FontLoader resolves a label font by trying TrueType files in order, then
// the embedded Go Regular font, then a fixed-size bitmap font. It never
// fails.
//
// Parsed fonts are cached and shared. Faces are not: a truetype face keeps
// glyph caches that are unsafe for concurrent use, so every call builds a
// new one.
type FontLoader struct {
	paths []string

	mu     sync.Mutex
	parsed map[string]*truetype.Font // nil value: path failed to load
}

// NewFontLoader creates a loader that tries paths in order before the
// built-in fallbacks.
func NewFontLoader(paths []string) *FontLoader {
	return &FontLoader{
		paths:  append([]string(nil), paths...),
		parsed: make(map[string]*truetype.Font),
	}
}

var (
	embeddedOnce sync.Once
	embeddedFont *truetype.Font
)

func embedded() *truetype.Font {
	embeddedOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err == nil {
			embeddedFont = f
		}
	})
	return embeddedFont
}

// Face returns a face of the given pixel size and the name of the source
// that provided it.
func (l *FontLoader) Face(size float64) (font.Face, string) {
	for _, p := range l.paths {
		if f := l.load(p); f != nil {
			return truetype.NewFace(f, &truetype.Options{Size: size}), p
		}
	}
	if f := embedded(); f != nil {
		return truetype.NewFace(f, &truetype.Options{Size: size}), sourceEmbedded
	}
	return basicfont.Face7x13, sourceBasic
}

func (l *FontLoader) load(path string) *truetype.Font {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.parsed[path]; ok {
		return f
	}
	var f *truetype.Font
	if data, err := os.ReadFile(path); err == nil {
		if parsed, err := truetype.Parse(data); err == nil {
			f = parsed
		}
	}
	l.parsed[path] = f
	return f
}
