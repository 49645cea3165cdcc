// Package imaging provides image file handling for the face counting pipeline.
//
// This package decodes image files, caches decoded images for the MCP server,
// reports file metadata, crops face regions, and serializes images for output.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The remaining functions are
// stateless and never modify the images passed to them, so they can be
// called concurrently on the same image.
//
// # Error Handling
//
// Decode failures (missing file, corrupt data, unsupported format) are
// returned as *ImageReadError, which carries the path and wraps the cause.
// Inspect it with errors.As.
package imaging
