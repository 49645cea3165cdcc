// Package detection finds faces in still images and numbers them.
//
// A Detector owns one Model, chosen once when it is built:
//
//   - CascadeModel, a pico face cascade. Its boxes are faces already and are
//     used as-is. Detector.Kind reports KindFace.
//   - RemoteModel, a generic object model behind an HTTP inference server.
//     Only "person" predictions are kept, and each person box is reduced to
//     an estimated face region with FaceRegion. Detector.Kind reports
//     KindGeneric.
//
// OpenModel prefers a configured cascade file and falls back to the remote
// model when that file is absent. With neither configured it uses the
// facefinder cascade embedded from the pigo project (MIT, see
// cascade/LICENSE). Callers that want to know which one is active ask
// Detector.Kind; the Detect contract is the same for both.
//
// # Face Heuristic
//
// For a person box of width W and height H:
//
//	faceHeight = 0.35 * H
//	faceWidth  = min(0.7 * W, 1.2 * faceHeight)
//
// The face is centered horizontally on the person and anchored at its top
// edge. The three ratios live in HeuristicParams and can be overridden.
//
// # Numbering
//
// Detections are numbered 1..N in the order the model emitted them, after
// filtering. Boxes that cover no pixels once clamped to the image are
// filtered too, so every number has a visible box. The order is not spatial
// and not sorted by confidence.
//
// # Errors
//
//   - *ImageReadError: the file could not be opened or decoded.
//   - *ModelUnavailableError: no model could be constructed.
//   - *InferenceError: the model failed on this image. No partial result.
//
// Nothing is retried.
package detection
