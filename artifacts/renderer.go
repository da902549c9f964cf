// Package artifacts renders the scannable QR image for a payment code and
// manages its lifetime on disk.
package artifacts

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrSize = 300
	// The logo covers a quarter of the QR width; error-correction level H
	// keeps the code readable underneath.
	logoRatio = 4

	fetchTimeout = 10 * time.Second
)

type Renderer struct {
	dir        string
	logger     *slog.Logger
	httpClient *http.Client
}

func NewRenderer(dir string) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	logger := slog.Default()
	logger = logger.With("component", "artifacts")

	return &Renderer{
		dir:        dir,
		logger:     logger,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}, nil
}

func (r *Renderer) Dir() string {
	return r.dir
}

// Render writes the QR PNG for a payment code, compositing the optional logo
// centered and circle-masked over it, and returns the stored filename.
func (r *Renderer) Render(code string, ownerID string, logo []byte) (string, error) {
	qr, err := qrcode.New(code, qrcode.Highest)
	if err != nil {
		return "", err
	}

	img := imaging.Clone(qr.Image(qrSize))

	if len(logo) > 0 {
		img, err = r.overlayLogo(img, logo)
		if err != nil {
			return "", err
		}
	}

	filename := fmt.Sprintf("pix_%d_%s.png", time.Now().UnixMilli(), ownerID)
	if err := imaging.Save(img, filepath.Join(r.dir, filename)); err != nil {
		return "", err
	}

	return filename, nil
}

func (r *Renderer) overlayLogo(qr *image.NRGBA, logo []byte) (*image.NRGBA, error) {
	decoded, err := imaging.Decode(bytes.NewReader(logo))
	if err != nil {
		return nil, err
	}

	size := qrSize / logoRatio
	resized := imaging.Resize(decoded, size, size, imaging.Lanczos)
	masked := circleCrop(resized)

	offset := (qrSize - size) / 2
	return imaging.Overlay(qr, masked, image.Pt(offset, offset), 1.0), nil
}

// FetchLogo pulls a logo image referenced by URL at issue time.
func (r *Renderer) FetchLogo(url string) ([]byte, error) {
	response, err := r.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("logo fetch returned status %d", response.StatusCode)
	}

	return io.ReadAll(response.Body)
}

// Remove deletes a rendered artifact. Best effort: a missing file is fine,
// anything else is logged and swallowed.
func (r *Renderer) Remove(filename string) {
	if filename == "" {
		return
	}

	err := os.Remove(filepath.Join(r.dir, filename))
	if err != nil && !os.IsNotExist(err) {
		r.logger.Error("failed to remove artifact",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
	}
}

// circleCrop clears every pixel outside the inscribed circle.
func circleCrop(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	out := imaging.Clone(img)

	cx := float64(bounds.Dx()) / 2
	cy := float64(bounds.Dy()) / 2
	radius := cx
	if cy < radius {
		radius = cy
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy > radius*radius {
				offset := out.PixOffset(x, y)
				out.Pix[offset+3] = 0
			}
		}
	}

	return out
}
