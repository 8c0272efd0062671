package thumbnail

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestMake_ScalesLandscape(t *testing.T) {
	data := encodePNG(t, 400, 200)

	thumb, err := Make(data, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("expected JPEG output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestMake_ScalesPortrait(t *testing.T) {
	thumb, err := Make(encodePNG(t, 60, 300), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("expected JPEG output: %v", err)
	}
	if cfg.Width != 6 || cfg.Height != 30 {
		t.Errorf("expected 6x30, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestMake_SmallImageUnchanged(t *testing.T) {
	data := encodePNG(t, 50, 40)

	thumb, err := Make(data, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(thumb, data) {
		t.Error("expected small image to be returned unchanged")
	}
}

func TestMake_Undecodable(t *testing.T) {
	_, err := Make([]byte("<html>photo unavailable</html>"), 100)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable, got %v", err)
	}
}

func TestClampSize(t *testing.T) {
	tests := []struct {
		in, expected int
	}{
		{0, DefaultSize},
		{1, MinSize},
		{300, 300},
		{5000, MaxSize},
		{-5, MinSize},
	}
	for _, tc := range tests {
		if got := ClampSize(tc.in); got != tc.expected {
			t.Errorf("ClampSize(%d): expected %d, got %d", tc.in, tc.expected, got)
		}
	}
}

func TestFit_NeverZero(t *testing.T) {
	w, h := fit(10000, 1, 100)
	if w != 100 || h != 1 {
		t.Errorf("expected 100x1, got %dx%d", w, h)
	}
}
