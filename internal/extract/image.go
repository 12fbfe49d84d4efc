package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	contrastFactor     = 2.0
	binarizeThreshold  = 128
	medianFilterRadius = 1
)

// OCREngine recognizes text in a prepared image.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// ImageExtractor runs OCR over a cleaned-up version of the image.
type ImageExtractor struct {
	engine OCREngine
}

func NewImageExtractor(engine OCREngine) *ImageExtractor {
	return &ImageExtractor{engine: engine}
}

func (e *ImageExtractor) Extract(ctx context.Context, path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	text, err := e.engine.Recognize(ctx, Preprocess(img))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrNoTextInImage
	}
	return text, nil
}

// Preprocess converts to grayscale, doubles contrast around the mean
// luminance, binarizes at 128 and applies a 3x3 median filter.
func Preprocess(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)

	mean := meanLuminance(gray)
	contrasted := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		v := clampByte(math.Round(float64(mean) + contrastFactor*(float64(c.R)-float64(mean))))
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})

	binary := imaging.AdjustFunc(contrasted, func(c color.NRGBA) color.NRGBA {
		var v uint8
		if c.R > binarizeThreshold {
			v = 255
		}
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})

	return medianFilter(binary, medianFilterRadius)
}

func meanLuminance(img *image.NRGBA) uint8 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum int64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			sum += int64(row[x])
		}
	}
	return clampByte(math.Round(float64(sum) / float64(n)))
}

// medianFilter reads the red channel of a grayscale NRGBA image. Pixels
// outside the image repeat the nearest edge pixel.
func medianFilter(src *image.NRGBA, radius int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	size := 2*radius + 1
	window := make([]uint8, 0, size*size)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -radius; dy <= radius; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampInt(x+dx, 0, w-1)
					window = append(window, src.Pix[sy*src.Stride+sx*4])
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			dst.Pix[y*dst.Stride+x] = window[len(window)/2]
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TesseractEngine shells out to the tesseract binary, feeding a PNG on stdin.
type TesseractEngine struct {
	path    string
	psm     int
	oem     int
	timeout time.Duration
}

func NewTesseractEngine(cfg Config) *TesseractEngine {
	path := cfg.TesseractPath
	if path == "" {
		path = "tesseract"
	}
	return &TesseractEngine{
		path:    path,
		psm:     cfg.PSM,
		oem:     cfg.OEM,
		timeout: cfg.Timeout,
	}
}

func (t *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image for ocr: %w", err)
	}

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, t.path, "stdin", "stdout",
		"--oem", strconv.Itoa(t.oem),
		"--psm", strconv.Itoa(t.psm),
	)
	cmd.Stdin = &buf
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("tesseract binary %q not found: %w", t.path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if runCtx.Err() != nil {
			return "", fmt.Errorf("tesseract timed out after %s", t.timeout)
		}
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
