package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ironsheep/face-count-mcp/internal/imaging"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultRemoteTimeout = 30 * time.Second
	uploadJPEGQuality    = 92
	maxErrorBody         = 512
)

// RemoteModel is a generic object model served by a YOLO inference server.
//
// The server accepts POST /detect with a multipart "file" field and answers
// with {"detections": [{"x1","y1","x2","y2","class","class_id","confidence"}]}
// in the pixel space of the uploaded image. GET /health must answer 200.
type RemoteModel struct {
	baseURL string
	client  *http.Client
}

type remoteDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Class      string  `json:"class"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

// NewRemoteModel connects to the inference server at baseURL and checks its
// health endpoint.
func NewRemoteModel(ctx context.Context, baseURL string, timeout time.Duration) (*RemoteModel, error) {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	m := &RemoteModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	if err := m.CheckHealth(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RemoteModel) Name() string         { return "remote:" + m.baseURL }
func (m *RemoteModel) Kind() ModelKind      { return KindGeneric }
func (m *RemoteModel) ConcurrentSafe() bool { return true }

func (m *RemoteModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// CheckHealth verifies the inference server answers on /health.
func (m *RemoteModel) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "create health request")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Infer uploads img as JPEG and returns the server's detections unfiltered.
func (m *RemoteModel) Infer(ctx context.Context, img image.Image) ([]Prediction, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if err := imaging.EncodeJPEG(part, img, uploadJPEGQuality); err != nil {
		return nil, errors.Wrap(err, "encode upload")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/detect", body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("inference server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result remoteResponse
	if err := jsonAPI.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	// Uploaded JPEGs start at (0,0); shift back into the source image's space.
	origin := img.Bounds().Min
	preds := make([]Prediction, 0, len(result.Detections))
	for _, d := range result.Detections {
		preds = append(preds, Prediction{
			Box: Box{
				X1: d.X1 + float64(origin.X),
				Y1: d.Y1 + float64(origin.Y),
				X2: d.X2 + float64(origin.X),
				Y2: d.Y2 + float64(origin.Y),
			},
			Class:      d.Class,
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
		})
	}
	return preds, nil
}
