package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	MaxUploadBytes = 5 << 20
	MaxImageWidth  = 1600
)

var (
	ErrNotImage = errors.New("file is not a supported image")
	ErrTooLarge = errors.New("image exceeds 5 MB")
)

// PreparedImage is an upload re-encoded and ready for the store.
type PreparedImage struct {
	Data        []byte
	ContentType string
	Filename    string
	Width       int
	Height      int
}

// PrepareImage decodes an uploaded image, applies EXIF orientation, shrinks it to
// maxWidth and re-encodes it. PNGs stay PNG to keep transparency; everything else becomes JPEG.
func PrepareImage(r io.Reader, filename string, maxWidth int) (*PreparedImage, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	format := imaging.JPEG
	contentType := "image/jpeg"
	ext := ".jpg"
	if _, kind, _ := image.DecodeConfig(bytes.NewReader(raw)); kind == "png" {
		format = imaging.PNG
		contentType = "image/png"
		ext = ".png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}

	return &PreparedImage{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Filename:    base + ext,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}, nil
}
