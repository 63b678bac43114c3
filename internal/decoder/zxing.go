// Package decoder extracts the embedded payload string from QR images.
// It sits behind the engine's PayloadDecoder boundary: the forensic
// metrics never depend on whether decoding succeeds.
package decoder

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXing decodes QR payloads with the gozxing reader.
type ZXing struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewZXing creates a decoder that tries harder on damaged or low-quality
// codes, which is the common case for tampering submissions.
func NewZXing() *ZXing {
	return &ZXing{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the payload text, or an error when no QR content can be
// read from the image.
func (d *ZXing) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize for decoding: %w", err)
	}
	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("decode qr payload: %w", err)
	}
	return result.GetText(), nil
}
