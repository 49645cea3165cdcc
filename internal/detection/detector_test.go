package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeModel returns canned predictions and records how it was called.
type fakeModel struct {
	kind       ModelKind
	preds      []Prediction
	err        error
	concurrent bool

	calls    int32
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	closed   bool
}

func (m *fakeModel) Name() string         { return "fake" }
func (m *fakeModel) Kind() ModelKind      { return m.kind }
func (m *fakeModel) ConcurrentSafe() bool { return m.concurrent }
func (m *fakeModel) Close() error         { m.closed = true; return nil }

func (m *fakeModel) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.preds, nil
}

func person(x1, y1, x2, y2, conf float64) Prediction {
	return Prediction{Box: Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Class: PersonClass, Confidence: conf}
}

func blankImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{40, 40, 40, 255})
		}
	}
	return img
}

// writeTestImage writes a PNG to a temp file and returns its path.
func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "detect-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, blankImage(width, height)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return f.Name()
}

func newTestDetector(t *testing.T, m Model) *Detector {
	t.Helper()
	d, err := NewDetector(m, Options{})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	return d
}

func TestDetect_EndToEndScenario(t *testing.T) {
	path := writeTestImage(t, 1000, 800)
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{person(100, 50, 300, 450, 0.9)}}
	d := newTestDetector(t, m)

	dets, err := d.Detect(context.Background(), path, 0.3)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}

	want := Detection{BBox: BoundingBox{X1: 130, Y1: 50, X2: 270, Y2: 190}, Confidence: 0.9, Number: 1}
	if dets[0] != want {
		t.Errorf("got %+v, want %+v", dets[0], want)
	}
}

func TestDetect_BelowThresholdExcluded(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{person(100, 50, 300, 450, 0.25)}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(200, 200), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("got %d detections, want 0", len(dets))
	}
	if dets == nil {
		t.Error("empty result should be a non-nil slice")
	}
}

func TestDetect_ThresholdIsInclusive(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{person(0, 0, 100, 100, 0.3)}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(200, 200), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 1 {
		t.Errorf("got %d detections, want 1", len(dets))
	}
}

func TestDetect_DefaultThreshold(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{
		person(0, 0, 100, 100, 0.29),
		person(0, 0, 100, 100, 0.31),
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(200, 200), 0)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 1 || dets[0].Confidence != 0.31 {
		t.Errorf("default threshold: got %+v, want only the 0.31 detection", dets)
	}
}

func TestDetect_InvalidThreshold(t *testing.T) {
	d := newTestDetector(t, &fakeModel{kind: KindGeneric})
	for _, threshold := range []float64{1.5, math.NaN(), math.Inf(1)} {
		if _, err := d.DetectImage(context.Background(), blankImage(10, 10), threshold); err == nil {
			t.Errorf("threshold %v should fail", threshold)
		}
	}
}

func TestDetect_DropsEmptyBoxes(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{
		person(1200, 50, 1300, 450, 0.9), // right of the image
		person(100, 50, 100.9, 450, 0.9), // narrower than a pixel
		person(300, 450, 100, 50, 0.9),   // inverted
		person(100, 50, 300, 450, 0.8),
		person(500, 100, 700, 500, 0.7),
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(1000, 800), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2: %+v", len(dets), dets)
	}
	for i, det := range dets {
		if det.Number != i+1 {
			t.Errorf("detection %d: Number = %d, want %d", i, det.Number, i+1)
		}
		b := det.BBox
		if !(0 <= b.X1 && b.X1 < b.X2 && b.X2 <= 1000 && 0 <= b.Y1 && b.Y1 < b.Y2 && b.Y2 <= 800) {
			t.Errorf("detection %d: bbox %+v outside 0 <= x1 < x2 <= 1000, 0 <= y1 < y2 <= 800", i, b)
		}
	}
	if dets[0].BBox != (BoundingBox{130, 50, 270, 190}) {
		t.Errorf("first face: got %+v", dets[0].BBox)
	}
}

func TestDetect_FaceModelDropsInvertedBoxes(t *testing.T) {
	m := &fakeModel{kind: KindFace, preds: []Prediction{
		{Box: Box{X1: 60, Y1: 30, X2: 20, Y2: 70}, Class: "face", Confidence: 0.9},
		{Box: Box{X1: 20, Y1: 70, X2: 60, Y2: 30}, Class: "face", Confidence: 0.9},
		{Box: Box{X1: 20, Y1: 30, X2: 60, Y2: 70}, Class: "face", Confidence: 0.9},
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(100, 100), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 1 || dets[0].Number != 1 || dets[0].BBox != (BoundingBox{20, 30, 60, 70}) {
		t.Errorf("got %+v, want only the upright box numbered 1", dets)
	}
}

func TestDetect_NumbersFollowModelOrder(t *testing.T) {
	// Deliberately unsorted by position and confidence.
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{
		person(500, 300, 600, 500, 0.5),
		{Box: Box{X1: 0, Y1: 0, X2: 50, Y2: 50}, Class: "dog", ClassID: 16, Confidence: 0.99},
		person(10, 10, 110, 210, 0.95),
		person(300, 100, 400, 300, 0.2),
		person(250, 20, 350, 220, 0.7),
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(800, 600), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}

	wantConf := []float64{0.5, 0.95, 0.7}
	if len(dets) != len(wantConf) {
		t.Fatalf("got %d detections, want %d", len(dets), len(wantConf))
	}
	for i, det := range dets {
		if det.Number != i+1 {
			t.Errorf("detection %d: Number = %d, want %d", i, det.Number, i+1)
		}
		if det.Confidence != wantConf[i] {
			t.Errorf("detection %d: Confidence = %v, want %v", i, det.Confidence, wantConf[i])
		}
	}
}

func TestDetect_PersonByClassID(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{
		{Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 200}, ClassID: 0, Confidence: 0.8},
		{Box: Box{X1: 0, Y1: 0, X2: 100, Y2: 200}, ClassID: 2, Confidence: 0.8},
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(300, 300), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 1 {
		t.Errorf("got %d detections, want 1 (class id 0 only)", len(dets))
	}
}

func TestDetect_FaceModelUsesBoxesAsIs(t *testing.T) {
	m := &fakeModel{kind: KindFace, preds: []Prediction{
		{Box: Box{X1: 20, Y1: 30, X2: 60, Y2: 70}, Class: "face", Confidence: 0.8},
		{Box: Box{X1: -10, Y1: 90, X2: 30, Y2: 130}, Class: "face", Confidence: 0.6},
	}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(100, 120), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}

	want := []BoundingBox{
		{X1: 20, Y1: 30, X2: 60, Y2: 70},
		{X1: 0, Y1: 90, X2: 30, Y2: 120},
	}
	for i := range want {
		if dets[i].BBox != want[i] {
			t.Errorf("detection %d: got %+v, want %+v", i, dets[i].BBox, want[i])
		}
	}
}

func TestDetect_ClampsToImage(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, preds: []Prediction{person(-50, -20, 90, 500, 0.9)}}
	d := newTestDetector(t, m)

	dets, err := d.DetectImage(context.Background(), blankImage(100, 100), 0.3)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	b := dets[0].BBox
	if b.X1 < 0 || b.Y1 < 0 || b.X2 > 100 || b.Y2 > 100 {
		t.Errorf("bbox %+v not clamped to 100x100", b)
	}
	if b.Y2 != 100 {
		t.Errorf("Y2 = %d, want 100 (face height 182 clamped)", b.Y2)
	}
}

func TestDetect_ImageReadError(t *testing.T) {
	m := &fakeModel{kind: KindGeneric}
	d := newTestDetector(t, m)

	_, err := d.Detect(context.Background(), "/nonexistent/photo.jpg", 0.3)
	var readErr *ImageReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("got %v, want *ImageReadError", err)
	}
	if readErr.Path != "/nonexistent/photo.jpg" {
		t.Errorf("Path = %q", readErr.Path)
	}
	if m.calls != 0 {
		t.Error("model should not run when decoding fails")
	}
}

func TestDetect_CorruptFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "corrupt-*.png")
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not an image")
	f.Close()

	d := newTestDetector(t, &fakeModel{kind: KindGeneric})
	_, err = d.Detect(context.Background(), f.Name(), 0.3)
	var readErr *ImageReadError
	if !errors.As(err, &readErr) {
		t.Errorf("got %v, want *ImageReadError", err)
	}
}

func TestDetect_InferenceError(t *testing.T) {
	path := writeTestImage(t, 50, 50)
	cause := errors.New("runtime exploded")
	d := newTestDetector(t, &fakeModel{kind: KindGeneric, err: cause})

	dets, err := d.Detect(context.Background(), path, 0.3)
	if dets != nil {
		t.Errorf("got partial detections %v", dets)
	}
	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("got %v, want *InferenceError", err)
	}
	if infErr.Path != path || infErr.Model != "fake" {
		t.Errorf("InferenceError context = %+v", infErr)
	}
	if !errors.Is(err, cause) {
		t.Error("InferenceError should wrap the model error")
	}
}

func TestDetect_SerializesUnsafeModel(t *testing.T) {
	m := &fakeModel{kind: KindGeneric, delay: 5 * time.Millisecond}
	d := newTestDetector(t, m)
	img := blankImage(10, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DetectImage(context.Background(), img, 0.3)
		}()
	}
	wg.Wait()

	if m.maxSeen != 1 {
		t.Errorf("unsafe model saw %d concurrent calls, want 1", m.maxSeen)
	}
}

func TestNewDetector_Validation(t *testing.T) {
	if _, err := NewDetector(nil, Options{}); err == nil {
		t.Error("nil model should fail")
	}

	bad := Options{Heuristic: HeuristicParams{FaceHeightRatio: 0.35, FaceWidthRatio: 0, FaceAspectCap: 1.2}}
	if _, err := NewDetector(&fakeModel{}, bad); err == nil {
		t.Error("zero width ratio should fail")
	}

	if _, err := NewDetector(&fakeModel{}, Options{DefaultConfidence: 2}); err == nil {
		t.Error("default confidence above 1 should fail")
	}
}

func TestDetector_Accessors(t *testing.T) {
	m := &fakeModel{kind: KindFace}
	d := newTestDetector(t, m)

	if d.Kind() != KindFace {
		t.Errorf("Kind = %s, want face", d.Kind())
	}
	if d.ModelName() != "fake" {
		t.Errorf("ModelName = %s", d.ModelName())
	}
	if d.Heuristic() != DefaultHeuristic() {
		t.Errorf("Heuristic = %+v", d.Heuristic())
	}
	if d.DefaultConfidence() != DefaultConfidence {
		t.Errorf("DefaultConfidence = %v", d.DefaultConfidence())
	}
	if err := d.Close(); err != nil || !m.closed {
		t.Error("Close should close the model")
	}
}
