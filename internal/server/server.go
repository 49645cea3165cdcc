package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-count-mcp/internal/annotate"
	"github.com/ironsheep/face-count-mcp/internal/detection"
	"github.com/ironsheep/face-count-mcp/internal/imaging"
)

// ServerName is reported to clients during initialize.
const ServerName = "face-count-mcp"

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes used in responses.
const (
	CodeParseError     = -32700
	CodeInvalidParams  = -32602
	CodeMethodNotFound = -32601
	CodeToolFailed     = -32000
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Server handles MCP protocol communication
type Server struct {
	cache     *imaging.ImageCache
	detector  *detection.Detector
	annotator *annotate.Annotator
	log       logrus.FieldLogger
	version   string
}

// Config holds the collaborators a Server needs.
type Config struct {
	// Detector runs face detection. It is owned by the caller.
	Detector *detection.Detector

	// Annotator draws results. Nil uses an annotator with built-in fonts.
	Annotator *annotate.Annotator

	// Logger receives per-call logs. Nil discards them.
	Logger logrus.FieldLogger

	// Version is reported in serverInfo.
	Version string
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(cfg Config) *Server {
	ann := cfg.Annotator
	if ann == nil {
		ann = annotate.New(nil)
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		cache:     imaging.NewImageCache(),
		detector:  cfg.Detector,
		annotator: ann,
		log:       log,
		version:   version,
	}
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to
// out. It returns when in is exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := jsonAPI.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp *MCPResponse
		var req MCPRequest
		if err := jsonAPI.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			resp = s.errorResponse(nil, CodeParseError, "Parse error", err.Error())
		} else {
			resp = s.handleRequest(ctx, &req)
		}

		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return s.errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": s.version,
			},
		},
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
