package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func confidenceProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Minimum detection confidence in (0, 1]. Omit to use the server default.",
		"minimum":     0,
		"maximum":     1,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for later face operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Face Operations
		{
			Name:        "faces_detect",
			Description: "Detect faces in an image. Returns the face count and one numbered bounding box (x1, y1, x2, y2 in pixels) with confidence per face.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"confidence": confidenceProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "faces_annotate",
			Description: "Detect faces and draw a colored, numbered box around each one. Returns the detections and the annotated image as base64 PNG, optionally saving it to output_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"confidence": confidenceProperty(),
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional file to write the annotated image to. Format follows the extension.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "faces_crop",
			Description: "Detect faces and return one face region, selected by its number, as a base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"number": map[string]interface{}{
						"type":        "integer",
						"description": "Face number as reported by faces_detect (1-based)",
						"minimum":     1,
					},
					"confidence": confidenceProperty(),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "number"},
			},
		},
		{
			Name:        "detector_info",
			Description: "Describe the loaded face detection model: its name, whether it detects faces directly or people, the default confidence and the face box heuristic.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
