package annotate

import (
	"image"
	"image/draw"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/ironsheep/face-count-mcp/internal/detection"
)

// LabelPadding is the space, in pixels, between a numeral and the edge of
// its label background.
const LabelPadding = 5

// StrokeWidth returns the box outline width for an image:
// max(2, min(width, height)/200).
func StrokeWidth(width, height int) int {
	return max(2, min(width, height)/200)
}

// FontSize returns the label font size in pixels for an image:
// max(20, min(width, height)/30).
func FontSize(width, height int) int {
	return max(20, min(width, height)/30)
}

// LabelRect places a label of the given text size for a box whose top-left
// corner is (x1, y1). The label sits just above the box; if that would
// cross the top edge of the image (top < minY) it moves inside the box,
// starting at y1.
func LabelRect(x1, y1, textWidth, textHeight, minY int) image.Rectangle {
	w := textWidth + 2*LabelPadding
	h := textHeight + 2*LabelPadding
	top := y1 - h
	if top < minY {
		top = y1
	}
	return image.Rect(x1, top, x1+w, top+h)
}

// Annotator draws numbered face boxes onto copies of images.
//
// Render never modifies its input and has no state besides the font cache,
// so one Annotator may be shared by many goroutines.
type Annotator struct {
	fonts *FontLoader
}

// New creates an Annotator. A nil loader uses only the built-in fonts.
func New(fonts *FontLoader) *Annotator {
	if fonts == nil {
		fonts = NewFontLoader(nil)
	}
	return &Annotator{fonts: fonts}
}

// FontSource reports which font source a render at this size would use.
func (a *Annotator) FontSource(size int) string {
	_, src := a.fonts.Face(float64(size))
	return src
}

// Render returns a copy of img with each detection outlined and numbered.
//
// Detections are drawn in ascending Number order so higher numbers end up
// on top where boxes overlap. Boxes are clamped to the image again before
// drawing. With no detections the result is a pixel-identical copy of img
// that keeps its color model where possible; otherwise it is an *image.RGBA.
// The result always starts at the origin.
func (a *Annotator) Render(img image.Image, dets []detection.Detection) draw.Image {
	if len(dets) == 0 {
		return cloneImage(img)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	ordered := append([]detection.Detection(nil), dets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})

	stroke := StrokeWidth(width, height)
	face, _ := a.fonts.Face(float64(FontSize(width, height)))
	defer closeFace(face)

	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(face)

	for _, det := range ordered {
		// Clamp in source coordinates, then shift to the copy's origin.
		b := clampRect(det.BBox.Rect(), bounds).Sub(bounds.Min)
		c := ColorFor(det.Number)
		label := strconv.Itoa(det.Number)

		dc.SetColor(c)
		drawOutline(dc, b, stroke)

		ink, _ := font.BoundString(face, label)
		textW := ink.Max.X.Ceil() - ink.Min.X.Floor()
		textH := ink.Max.Y.Ceil() - ink.Min.Y.Floor()
		lr := LabelRect(b.Min.X, b.Min.Y, textW, textH, 0)

		dc.DrawRectangle(float64(lr.Min.X), float64(lr.Min.Y), float64(lr.Dx()), float64(lr.Dy()))
		dc.Fill()

		// Place the ink box's top-left corner at the padded origin.
		dotX := lr.Min.X + LabelPadding - ink.Min.X.Floor()
		dotY := lr.Min.Y + LabelPadding - ink.Min.Y.Floor()
		dc.SetColor(LabelTextColor)
		dc.DrawString(label, float64(dotX), float64(dotY))
	}

	return dst
}

// cloneImage copies img to an origin-zero image. RGBA stays premultiplied;
// everything else becomes NRGBA, which holds translucent pixels exactly.
func cloneImage(img image.Image) draw.Image {
	if src, ok := img.(*image.RGBA); ok {
		dst := image.NewRGBA(image.Rect(0, 0, src.Rect.Dx(), src.Rect.Dy()))
		draw.Draw(dst, dst.Bounds(), src, src.Rect.Min, draw.Src)
		return dst
	}
	return imaging.Clone(img)
}

// drawOutline fills a border of the given width inside r.
func drawOutline(dc *gg.Context, r image.Rectangle, stroke int) {
	if r.Empty() {
		return
	}
	sx := min(stroke, r.Dx())
	sy := min(stroke, r.Dy())
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())

	// top, bottom, left, right
	dc.DrawRectangle(x, y, w, float64(sy))
	dc.DrawRectangle(x, float64(r.Max.Y-sy), w, float64(sy))
	dc.DrawRectangle(x, y, float64(sx), h)
	dc.DrawRectangle(float64(r.Max.X-sx), y, float64(sx), h)
	dc.Fill()
}

func clampRect(r, bounds image.Rectangle) image.Rectangle {
	clamp := func(v, lo, hi int) int { return max(lo, min(hi, v)) }
	return image.Rectangle{
		Min: image.Pt(clamp(r.Min.X, bounds.Min.X, bounds.Max.X), clamp(r.Min.Y, bounds.Min.Y, bounds.Max.Y)),
		Max: image.Pt(clamp(r.Max.X, bounds.Min.X, bounds.Max.X), clamp(r.Max.Y, bounds.Min.Y, bounds.Max.Y)),
	}
}

func closeFace(f font.Face) {
	if f != nil {
		f.Close()
	}
}
