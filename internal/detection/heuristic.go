package detection

import (
	"fmt"
	"math"
)

// HeuristicParams control how a face region is cut out of a person box.
//
// The defaults are tuning choices, not measurements: no calibration data
// backs them. They are kept exactly so results stay comparable between
// versions.
type HeuristicParams struct {
	// FaceHeightRatio is the share of the person box height taken by the
	// head, measured from the top of the box.
	FaceHeightRatio float64 `json:"face_height_ratio"`

	// FaceWidthRatio caps the face width relative to the person box width.
	FaceWidthRatio float64 `json:"face_width_ratio"`

	// FaceAspectCap caps the face width relative to the estimated face
	// height, which keeps short wide person boxes from producing wide faces.
	FaceAspectCap float64 `json:"face_aspect_cap"`
}

// DefaultHeuristic returns the standard face heuristic (0.35, 0.7, 1.2).
func DefaultHeuristic() HeuristicParams {
	return HeuristicParams{
		FaceHeightRatio: 0.35,
		FaceWidthRatio:  0.7,
		FaceAspectCap:   1.2,
	}
}

// Validate reports whether all ratios are usable.
func (p HeuristicParams) Validate() error {
	if p.FaceHeightRatio <= 0 || p.FaceHeightRatio > 1 {
		return fmt.Errorf("face height ratio %v must be in (0, 1]", p.FaceHeightRatio)
	}
	if p.FaceWidthRatio <= 0 || p.FaceWidthRatio > 1 {
		return fmt.Errorf("face width ratio %v must be in (0, 1]", p.FaceWidthRatio)
	}
	if p.FaceAspectCap <= 0 {
		return fmt.Errorf("face aspect cap %v must be positive", p.FaceAspectCap)
	}
	return nil
}

// FaceRegion estimates the face inside a person bounding box.
//
// The face spans the top FaceHeightRatio of the person, is centered
// horizontally, and is min(FaceWidthRatio*personWidth, FaceAspectCap*faceHeight)
// wide. The result is not clamped to the image.
func FaceRegion(person Box, p HeuristicParams) Box {
	faceHeight := p.FaceHeightRatio * person.Height()
	faceWidth := math.Min(p.FaceWidthRatio*person.Width(), p.FaceAspectCap*faceHeight)
	centerX := (person.X1 + person.X2) / 2

	return Box{
		X1: centerX - faceWidth/2,
		Y1: person.Y1,
		X2: centerX + faceWidth/2,
		Y2: person.Y1 + faceHeight,
	}
}
