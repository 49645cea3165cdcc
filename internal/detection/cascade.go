package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/effect"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// CascadeParams tune the pico cascade scan.
type CascadeParams struct {
	// MinSize is the smallest face, in pixels, the scan looks for.
	MinSize int
	// MaxSize is the largest face; 0 means min(width, height).
	MaxSize int
	// ShiftFactor is the sliding window step as a fraction of window size.
	ShiftFactor float64
	// ScaleFactor is the window growth between scan passes.
	ScaleFactor float64
	// IoUThreshold merges overlapping raw hits into one face.
	IoUThreshold float64
	// Angle rotates the cascade; 0.0 is upright and 1.0 a full turn.
	Angle float64
	// ScoreHalfPoint is the cascade score that maps to confidence 0.5.
	ScoreHalfPoint float64
}

// DefaultCascadeParams returns scan settings suited to photos of people.
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		MinSize:        20,
		ShiftFactor:    0.1,
		ScaleFactor:    1.1,
		IoUThreshold:   0.2,
		ScoreHalfPoint: 10,
	}
}

func (p CascadeParams) withDefaults() CascadeParams {
	d := DefaultCascadeParams()
	if p.MinSize <= 0 {
		p.MinSize = d.MinSize
	}
	if p.ShiftFactor <= 0 {
		p.ShiftFactor = d.ShiftFactor
	}
	if p.ScaleFactor <= 1 {
		p.ScaleFactor = d.ScaleFactor
	}
	if p.IoUThreshold <= 0 {
		p.IoUThreshold = d.IoUThreshold
	}
	if p.ScoreHalfPoint <= 0 {
		p.ScoreHalfPoint = d.ScoreHalfPoint
	}
	return p
}

// CascadeModel is a face-specialized model backed by a pico cascade.
//
// The unpacked classifier is only read during a scan, so one CascadeModel
// can serve concurrent Infer calls.
type CascadeModel struct {
	name       string
	classifier *pigo.Pigo
	params     CascadeParams
}

// LoadCascade reads and unpacks a cascade file.
func LoadCascade(path string, params CascadeParams) (*CascadeModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read cascade")
	}
	return NewCascadeModel(filepath.Base(path), data, params)
}

// NewCascadeModel unpacks cascade data that is already in memory.
func NewCascadeModel(name string, data []byte, params CascadeParams) (*CascadeModel, error) {
	classifier, err := unpackCascade(data)
	if err != nil {
		return nil, err
	}
	return &CascadeModel{
		name:       "pico:" + name,
		classifier: classifier,
		params:     params.withDefaults(),
	}, nil
}

// unpackCascade guards pigo's Unpack, which indexes the packet without
// length checks and panics on truncated input.
func unpackCascade(data []byte) (classifier *pigo.Pigo, err error) {
	if len(data) < 16 {
		return nil, errors.Errorf("cascade data too short (%d bytes)", len(data))
	}
	defer func() {
		if r := recover(); r != nil {
			classifier = nil
			err = errors.Errorf("malformed cascade: %v", r)
		}
	}()
	classifier, err = pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "unpack cascade")
	}
	return classifier, nil
}

func (m *CascadeModel) Name() string         { return m.name }
func (m *CascadeModel) Kind() ModelKind      { return KindFace }
func (m *CascadeModel) ConcurrentSafe() bool { return true }
func (m *CascadeModel) Close() error         { return nil }

// Infer scans the grayscale image for faces and returns one square box per
// clustered hit.
func (m *CascadeModel) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("empty image %dx%d", cols, rows)
	}
	pixels := grayPlane(img)

	maxSize := m.params.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     m.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: m.params.ShiftFactor,
		ScaleFactor: m.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := m.classifier.RunCascade(params, m.params.Angle)
	dets = m.classifier.ClusterDetections(dets, m.params.IoUThreshold)

	preds := make([]Prediction, 0, len(dets))
	for _, d := range dets {
		half := float64(d.Scale) / 2
		cx := float64(bounds.Min.X + d.Col)
		cy := float64(bounds.Min.Y + d.Row)
		preds = append(preds, Prediction{
			Box:        Box{X1: cx - half, Y1: cy - half, X2: cx + half, Y2: cy + half},
			Class:      "face",
			Confidence: cascadeConfidence(float64(d.Q), m.params.ScoreHalfPoint),
		})
	}
	return preds, nil
}

// grayPlane returns one luma byte per pixel, row by row, for the cascade.
func grayPlane(img image.Image) []uint8 {
	gray := effect.Grayscale(img)
	pixels := make([]uint8, len(gray.Pix)/4)
	for i := range pixels {
		pixels[i] = gray.Pix[i*4]
	}
	return pixels
}

// cascadeConfidence maps an unbounded cascade score onto [0, 1).
func cascadeConfidence(q, halfPoint float64) float64 {
	if q <= 0 {
		return 0
	}
	return q / (q + halfPoint)
}
