package extract

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docqa/internal/domain"
)

type MockOCREngine struct {
	mock.Mock
}

func (m *MockOCREngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	args := m.Called(ctx, img)
	return args.String(0), args.Error(1)
}

func uniformImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocess_ProducesBinaryImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint8(x * 32)
			src.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	out := Preprocess(src)
	require.Equal(t, 8, out.Bounds().Dx())
	require.Equal(t, 8, out.Bounds().Dy())
	for _, p := range out.Pix {
		assert.True(t, p == 0 || p == 255, "pixel %d is not binary", p)
	}
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(7, 0).Y)
}

func TestPreprocess_MedianRemovesSpeckles(t *testing.T) {
	src := uniformImage(5, 5, color.White)
	src.Set(2, 2, color.Black)

	out := Preprocess(src)
	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y)
}

func TestPreprocess_EmptyImage(t *testing.T) {
	out := Preprocess(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.Equal(t, 0, out.Bounds().Dx())
}

func TestImageExtractor_TrimsRecognizedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, imaging.Save(uniformImage(4, 4, color.White), path))

	engine := new(MockOCREngine)
	engine.On("Recognize", mock.Anything, mock.AnythingOfType("*image.Gray")).Return("  invoice 42\n\n", nil)

	text, err := NewImageExtractor(engine).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "invoice 42", text)
	engine.AssertExpectations(t)
}

func TestImageExtractor_NoText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.jpg")
	require.NoError(t, imaging.Save(uniformImage(4, 4, color.White), path))

	engine := new(MockOCREngine)
	engine.On("Recognize", mock.Anything, mock.Anything).Return(" \n ", nil)

	_, err := NewImageExtractor(engine).Extract(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrNoTextInImage)
}

func TestImageExtractor_UndecodableFile(t *testing.T) {
	path := writeFile(t, "photo.png", []byte("not an image"))

	_, err := NewImageExtractor(new(MockOCREngine)).Extract(context.Background(), path)
	assert.Error(t, err)
}

func TestTesseractEngine_MissingBinary(t *testing.T) {
	engine := NewTesseractEngine(Config{
		TesseractPath: "/nonexistent/tesseract",
		PSM:           6,
		OEM:           3,
		Timeout:       time.Second,
	})

	_, err := engine.Recognize(context.Background(), uniformImage(2, 2, color.White))
	assert.Error(t, err)
}
