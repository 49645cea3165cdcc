package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

// EncodedImage is an image serialized for transport in a JSON result.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as PNG and wraps it in base64.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// EncodeJPEG writes img to w as a JPEG of the given quality (1-100).
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// Save writes img to path. The output format is chosen from the file
// extension (png, jpg/jpeg, gif, tif/tiff, bmp).
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image %q: %w", path, err)
	}
	return nil
}
