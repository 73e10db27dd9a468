package vision

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"gigmeter/pkg/analysis"
)

// ReadFrame runs Tesseract over a captured screen frame and returns the
// recognized text lines with their pixel bounding boxes, plus the pixel
// dimensions of the image the boxes refer to. The analysis core normalizes
// box centers against these dimensions, so returning the preprocessed
// (possibly upscaled) frame's dimensions keeps zones consistent.
func ReadFrame(path string) ([]analysis.DetectedText, int, int, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open frame: %w", err)
	}
	prep := prepareFrame(img)
	w := prep.Bounds().Dx()
	h := prep.Bounds().Dy()

	tmpFile, err := os.CreateTemp("", "frame-*.png")
	tmp := path
	if err == nil {
		tmp = tmpFile.Name()
		_ = tmpFile.Close()
		if err := imaging.Save(prep, tmp); err != nil {
			tmp = path
			w = img.Bounds().Dx()
			h = img.Bounds().Dy()
		}
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT)
	client.SetImage(tmp)
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if tmp != path {
		_ = os.Remove(tmp)
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("ocr error: %w", err)
	}

	var lines []analysis.DetectedText
	for _, b := range boxes {
		text := normalizeLine(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		lines = append(lines, analysis.DetectedText{Text: text, Box: b.Box, Confidence: conf})
	}
	log.Printf("FRAME OCR %s lines=%d dims=%dx%d", path, len(lines), w, h)
	return lines, w, h, nil
}

// normalizeLine collapses whitespace inside one recognized line.
func normalizeLine(t string) string {
	return strings.Join(strings.Fields(t), " ")
}
