package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-count-mcp/internal/detection"
	"github.com/ironsheep/face-count-mcp/internal/imaging"
	"github.com/ironsheep/face-count-mcp/internal/logging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "faces_detect", "faces_annotate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errNoDetector is returned by face tools when the server was built without
// a detector.
var errNoDetector = errors.New("no face detection model is loaded")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// whose data carries the error text and the call's trace id.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := jsonAPI.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name == "" {
		return s.errorResponse(req.ID, CodeInvalidParams, "Invalid params", "missing tool name")
	}

	traceID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{
		logging.TraceIDKey: traceID,
		"tool":             params.Name,
	})
	start := time.Now()

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.WithError(err).Warn("tool call failed")
		return s.errorResponse(req.ID, CodeToolFailed, "Tool execution failed", map[string]interface{}{
			"error":            err.Error(),
			logging.TraceIDKey: traceID,
		})
	}
	log.WithField("elapsed", time.Since(start).String()).Debug("tool call finished")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Face Operations
	case "faces_detect":
		return s.handleFacesDetect(ctx, args)
	case "faces_annotate":
		return s.handleFacesAnnotate(ctx, args)
	case "faces_crop":
		return s.handleFacesCrop(ctx, args)
	case "detector_info":
		return s.handleDetectorInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := jsonAPI.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments. Missing arguments decode as an
// empty object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := jsonAPI.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (a imageLoadArgs) validate() error {
	if a.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Face Operation Handlers ===

type facesDetectArgs struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// FacesResult is the payload of faces_detect.
type FacesResult struct {
	Path        string                `json:"path"`
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Count       int                   `json:"count"`
	Threshold   float64               `json:"threshold"`
	Model       string                `json:"model"`
	ModelKind   detection.ModelKind   `json:"model_kind"`
	Detections  []detection.Detection `json:"detections"`
	ElapsedMsec int64                 `json:"elapsed_ms"`
}

// detectFaces loads path through the cache and runs the detector on it.
func (s *Server) detectFaces(ctx context.Context, path string, confidence float64) (image.Image, *FacesResult, error) {
	if s.detector == nil {
		return nil, nil, errNoDetector
	}
	if path == "" {
		return nil, nil, errors.New("path is required")
	}

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	threshold := confidence
	if threshold <= 0 {
		threshold = s.detector.DefaultConfidence()
	}

	start := time.Now()
	dets, err := s.detector.DetectImage(ctx, img, threshold)
	if err != nil {
		var ie *detection.InferenceError
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, nil, err
	}

	bounds := img.Bounds()
	return img, &FacesResult{
		Path:        path,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Count:       len(dets),
		Threshold:   threshold,
		Model:       s.detector.ModelName(),
		ModelKind:   s.detector.Kind(),
		Detections:  dets,
		ElapsedMsec: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Server) handleFacesDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a facesDetectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, result, err := s.detectFaces(ctx, a.Path, a.Confidence)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type facesAnnotateArgs struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
	OutputPath string  `json:"output_path"`
}

// AnnotateResult is the payload of faces_annotate.
type AnnotateResult struct {
	*FacesResult
	OutputPath string                `json:"output_path,omitempty"`
	Image      *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleFacesAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a facesAnnotateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, result, err := s.detectFaces(ctx, a.Path, a.Confidence)
	if err != nil {
		return nil, err
	}

	annotated := s.annotator.Render(img, result.Detections)
	if a.OutputPath != "" {
		if err := imaging.Save(annotated, a.OutputPath); err != nil {
			return nil, err
		}
	}

	encoded, err := imaging.EncodePNG(annotated)
	if err != nil {
		return nil, err
	}
	return &AnnotateResult{
		FacesResult: result,
		OutputPath:  a.OutputPath,
		Image:       encoded,
	}, nil
}

type facesCropArgs struct {
	Path       string  `json:"path"`
	Number     int     `json:"number"`
	Confidence float64 `json:"confidence"`
	Scale      float64 `json:"scale"`
}

// CropResult is the payload of faces_crop.
type CropResult struct {
	Detection detection.Detection   `json:"detection"`
	Image     *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleFacesCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a facesCropArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Number < 1 {
		return nil, fmt.Errorf("number must be >= 1, got %d", a.Number)
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	img, result, err := s.detectFaces(ctx, a.Path, a.Confidence)
	if err != nil {
		return nil, err
	}
	if a.Number > result.Count {
		return nil, fmt.Errorf("face %d not found: %d faces detected", a.Number, result.Count)
	}

	det := result.Detections[a.Number-1]
	crop, err := imaging.CropRegion(img, det.BBox.Rect(), a.Scale)
	if err != nil {
		return nil, fmt.Errorf("face %d: %w", a.Number, err)
	}
	return &CropResult{Detection: det, Image: crop}, nil
}

// DetectorInfo is the payload of detector_info.
type DetectorInfo struct {
	Model             string                    `json:"model"`
	ModelKind         detection.ModelKind       `json:"model_kind"`
	DefaultConfidence float64                   `json:"default_confidence"`
	Heuristic         detection.HeuristicParams `json:"heuristic"`
	LabelFont         string                    `json:"label_font"`
	CachedImages      int                       `json:"cached_images"`
}

func (s *Server) handleDetectorInfo() (interface{}, error) {
	if s.detector == nil {
		return nil, errNoDetector
	}
	return &DetectorInfo{
		Model:             s.detector.ModelName(),
		ModelKind:         s.detector.Kind(),
		DefaultConfidence: s.detector.DefaultConfidence(),
		Heuristic:         s.detector.Heuristic(),
		LabelFont:         s.annotator.FontSource(20),
		CachedImages:      s.cache.Len(),
	}, nil
}
