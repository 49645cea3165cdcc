package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-count-mcp/internal/imaging"
)

// Options configure a Detector. Zero values select the defaults.
type Options struct {
	// Heuristic converts person boxes to face boxes for generic models.
	Heuristic HeuristicParams

	// DefaultConfidence is used when Detect is called with threshold <= 0.
	DefaultConfidence float64

	// Logger receives debug output. Nil discards it.
	Logger logrus.FieldLogger
}

// Detector finds faces in images using one owned Model.
//
// A Detector is safe for concurrent use. Calls into a model that is not
// concurrency-safe are serialized; everything else runs in parallel.
type Detector struct {
	model             Model
	heuristic         HeuristicParams
	defaultConfidence float64
	log               logrus.FieldLogger

	// mu guards model.Infer when the model is not concurrency-safe.
	mu sync.Mutex
}

// New opens a model from cfg and wraps it in a Detector.
func New(ctx context.Context, cfg ModelConfig, opts Options) (*Detector, error) {
	model, err := OpenModel(ctx, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	return NewDetector(model, opts)
}

// NewDetector wraps an already loaded model. The Detector takes ownership
// and closes the model in Close.
func NewDetector(model Model, opts Options) (*Detector, error) {
	if model == nil {
		return nil, &ModelUnavailableError{Err: fmt.Errorf("nil model")}
	}

	heuristic := opts.Heuristic
	if heuristic == (HeuristicParams{}) {
		heuristic = DefaultHeuristic()
	}
	if err := heuristic.Validate(); err != nil {
		return nil, err
	}

	conf := opts.DefaultConfidence
	if conf == 0 {
		conf = DefaultConfidence
	}
	if conf < 0 || conf > 1 {
		return nil, fmt.Errorf("default confidence %v must be in (0, 1]", conf)
	}

	log := opts.Logger
	if log == nil {
		log = discardLogger()
	}

	return &Detector{
		model:             model,
		heuristic:         heuristic,
		defaultConfidence: conf,
		log:               log,
	}, nil
}

// Kind reports whether faces come from a face model or the person heuristic.
func (d *Detector) Kind() ModelKind { return d.model.Kind() }

// ModelName identifies the backing model.
func (d *Detector) ModelName() string { return d.model.Name() }

// Heuristic returns the face heuristic in use.
func (d *Detector) Heuristic() HeuristicParams { return d.heuristic }

// DefaultConfidence returns the threshold used when callers pass 0.
func (d *Detector) DefaultConfidence() float64 { return d.defaultConfidence }

// Close releases the model.
func (d *Detector) Close() error { return d.model.Close() }

// Detect decodes the image at path once and returns its face detections.
//
// Errors are *ImageReadError when the file cannot be decoded and
// *InferenceError when the model fails. An image without faces yields an
// empty, non-nil slice.
func (d *Detector) Detect(ctx context.Context, path string, threshold float64) ([]Detection, error) {
	img, err := imaging.Decode(path)
	if err != nil {
		return nil, err
	}
	dets, err := d.DetectImage(ctx, img, threshold)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"path":  path,
		"faces": len(dets),
		"model": d.model.Name(),
	}).Debug("detection finished")
	return dets, nil
}

// DetectImage runs detection on an already decoded image.
//
// Predictions below threshold are dropped; for a generic model so are all
// non-person predictions. Survivors are clamped to the image, boxes left
// with no area are dropped, and the rest are numbered from 1 in model
// output order.
func (d *Detector) DetectImage(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	if math.IsNaN(threshold) {
		return nil, fmt.Errorf("confidence threshold must be a number")
	}
	if threshold <= 0 {
		threshold = d.defaultConfidence
	}
	if threshold > 1 {
		return nil, fmt.Errorf("confidence threshold %v must be in (0, 1]", threshold)
	}

	preds, err := d.infer(ctx, img)
	if err != nil {
		return nil, &InferenceError{Model: d.model.Name(), Err: err}
	}

	bounds := img.Bounds()
	generic := d.model.Kind() == KindGeneric

	dets := make([]Detection, 0, len(preds))
	for _, p := range preds {
		if p.Confidence < threshold {
			continue
		}
		box := p.Box
		if generic {
			if !p.IsPerson() {
				continue
			}
			box = FaceRegion(box, d.heuristic)
		}
		bbox := ClampBox(box, bounds)
		if bbox.Empty() {
			continue
		}
		dets = append(dets, Detection{
			BBox:       bbox,
			Confidence: p.Confidence,
			Number:     len(dets) + 1,
		})
	}
	return dets, nil
}

func (d *Detector) infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	if !d.model.ConcurrentSafe() {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	return d.model.Infer(ctx, img)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
