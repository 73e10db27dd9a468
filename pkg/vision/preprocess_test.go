package vision

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func TestBinarizeThreshold(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{120, 120, 120, 255})
	dark := binarize(img, 150)
	r, _, _, _ := dark.At(0, 0).RGBA()
	if r != 0 {
		t.Fatalf("pixel at/below threshold must go black, got %d", r>>8)
	}
	light := binarize(img, 100)
	r2, _, _, _ := light.At(0, 0).RGBA()
	if r2>>8 != 255 {
		t.Fatalf("pixel above threshold must go white, got %d", r2>>8)
	}
}

func TestPrepareFrameUpscalesSmallCaptures(t *testing.T) {
	img := imaging.New(360, 640, color.NRGBA{255, 255, 255, 255})
	out := prepareFrame(img)
	if out.Bounds().Dy() != 1280 {
		t.Fatalf("expected 1280px height after upscale, got %d", out.Bounds().Dy())
	}
	big := imaging.New(720, 1280, color.NRGBA{255, 255, 255, 255})
	out2 := prepareFrame(big)
	if out2.Bounds().Dy() != 1280 {
		t.Fatalf("full-size frame must keep its height, got %d", out2.Bounds().Dy())
	}
}

func TestNormalizeLine(t *testing.T) {
	if got := normalizeLine("  ₹85 \n"); got != "₹85" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeLine("2\tKm"); got != "2 Km" {
		t.Fatalf("got %q", got)
	}
}
