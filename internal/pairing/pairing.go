// Package pairing renders pairing artifacts as QR codes for the browser page
// and the terminal.
package pairing

import (
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const pngSize = 256

// DataURL encodes artifact as a PNG QR code wrapped in a data URL suitable
// for an <img> src attribute.
func DataURL(artifact string) (string, error) {
	if artifact == "" {
		return "", errors.New("empty pairing artifact")
	}
	png, err := qrcode.Encode(artifact, qrcode.Medium, pngSize)
	if err != nil {
		return "", errors.Wrap(err, "encode qr png")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Terminal renders artifact as half-block art for printing to a terminal.
func Terminal(artifact string) (string, error) {
	if artifact == "" {
		return "", errors.New("empty pairing artifact")
	}
	q, err := qrcode.New(artifact, qrcode.Low)
	if err != nil {
		return "", errors.Wrap(err, "encode qr")
	}
	return q.ToSmallString(false), nil
}
