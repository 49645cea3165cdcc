// Package server implements the MCP (Model Context Protocol) server for face
// counting tools.
//
// This package provides a JSON-RPC 2.0 server that exposes face detection
// and annotation through the MCP protocol, so an MCP client can ask how many
// faces a photo contains, where they are, and get back a marked-up copy.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// A line that is not valid JSON is answered with a -32700 parse error and a
// null id.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Face Operations:
//   - faces_detect: Count faces and return numbered bounding boxes
//   - faces_annotate: Draw numbered, colored boxes and return the image
//   - faces_crop: Extract one numbered face as a PNG
//   - detector_info: Describe the loaded model and face box heuristic
//
// All face tools accept an optional confidence threshold. When omitted the
// detector's default applies.
//
// # Image Caching
//
// The server maintains an in-memory cache of decoded images keyed by path,
// so detecting and then annotating the same photo decodes it once. The
// cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the error text and the call's trace_id
//
// Every tool call gets a random trace id that also appears in the server
// log, so a failure seen by a client can be found in the logs.
//
// # Usage
//
//	srv := server.New(server.Config{Detector: det, Logger: log, Version: version})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
