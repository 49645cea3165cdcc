package detection

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ModelKind tells callers which kind of model backs a Detector.
type ModelKind string

const (
	// KindFace is a model trained to find faces; its boxes are used as-is.
	KindFace ModelKind = "face"

	// KindGeneric is a generic object model; person boxes are converted to
	// face regions with the face heuristic.
	KindGeneric ModelKind = "generic"
)

// PersonClass is the class name generic models use for people.
const PersonClass = "person"

// personClassID is the COCO class index of "person".
const personClassID = 0

// Prediction is one raw model output in image pixel coordinates.
type Prediction struct {
	Box        Box     `json:"box"`
	Class      string  `json:"class,omitempty"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// IsPerson reports whether p is a person, by class name or, when the name
// is missing, by COCO class id.
func (p Prediction) IsPerson() bool {
	if p.Class != "" {
		return p.Class == PersonClass
	}
	return p.ClassID == personClassID
}

// Model is a loaded detection model.
//
// Infer returns predictions in the model's own order; the Detector numbers
// them in that order. Implementations that cannot run Infer from several
// goroutines at once must report ConcurrentSafe() == false, and the
// Detector will serialize calls.
type Model interface {
	Name() string
	Kind() ModelKind
	ConcurrentSafe() bool
	Infer(ctx context.Context, img image.Image) ([]Prediction, error)
	Close() error
}

// BuiltinCascadeName names the face cascade compiled into the binary.
const BuiltinCascadeName = "facefinder"

//go:embed cascade/facefinder
var builtinCascade []byte

// ModelConfig lists the model artifacts to try, in order of preference.
type ModelConfig struct {
	// CascadePath is a pico face cascade file. When it exists it is used and
	// the Detector reports KindFace.
	CascadePath string

	// Cascade tunes the cascade scan. Zero values use DefaultCascadeParams.
	Cascade CascadeParams

	// RemoteURL is the base URL of a YOLO inference server, used when no
	// cascade file is available. The Detector then reports KindGeneric.
	RemoteURL string

	// Timeout bounds each request to the inference server.
	Timeout time.Duration
}

// OpenModel selects and loads a model from cfg.
//
// A present cascade file wins. A missing cascade falls back to the remote
// generic model, which is logged so the substitution is visible. When
// neither is configured the built-in facefinder cascade is used. A
// configured source that cannot be loaded is a *ModelUnavailableError
// naming every source that was tried.
func OpenModel(ctx context.Context, cfg ModelConfig, log logrus.FieldLogger) (Model, error) {
	if log == nil {
		log = discardLogger()
	}

	var tried []error

	if cfg.CascadePath != "" {
		_, err := os.Stat(cfg.CascadePath)
		if err == nil {
			m, err := LoadCascade(cfg.CascadePath, cfg.Cascade)
			if err != nil {
				return nil, &ModelUnavailableError{Model: cfg.CascadePath, Err: err}
			}
			log.WithField("cascade", cfg.CascadePath).Info("face cascade loaded")
			return m, nil
		}
		tried = append(tried, fmt.Errorf("cascade %s: %w", cfg.CascadePath, err))
	}

	if cfg.RemoteURL != "" {
		m, err := NewRemoteModel(ctx, cfg.RemoteURL, cfg.Timeout)
		if err != nil {
			return nil, &ModelUnavailableError{Model: cfg.RemoteURL, Err: err}
		}
		log.WithFields(logrus.Fields{
			"url":  cfg.RemoteURL,
			"kind": m.Kind(),
		}).Warn("no face cascade, using generic person model with face heuristic")
		return m, nil
	}

	if len(tried) > 0 {
		return nil, &ModelUnavailableError{Err: fmt.Errorf("no remote model url configured and %w", errors.Join(tried...))}
	}

	m, err := NewCascadeModel(BuiltinCascadeName, builtinCascade, cfg.Cascade)
	if err != nil {
		return nil, &ModelUnavailableError{Model: BuiltinCascadeName, Err: err}
	}
	log.WithField("cascade", BuiltinCascadeName).Info("built-in face cascade loaded")
	return m, nil
}
