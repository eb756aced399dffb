// backend/src/ocr/tesseract.go
package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/username/merchantguard/backend/src/models"
)

// EngineTesseract is the engine name reported for tesseract output.
const EngineTesseract = "tesseract"

// tsvWordLevel is the tesseract TSV level for single words.
const tsvWordLevel = 5

// TesseractExtractor runs the tesseract CLI once per image. The process is killed
// when the context is cancelled.
type TesseractExtractor struct {
	path string
	lang string
	psm  int
}

// NewTesseractExtractor resolves the binary up front so a missing install is
// reported at startup.
func NewTesseractExtractor(path, lang string, psm int) (*TesseractExtractor, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("tesseract binary %q not found: %w", path, err)
	}
	if lang == "" {
		lang = "eng"
	}
	return &TesseractExtractor{path: resolved, lang: lang, psm: psm}, nil
}

func (e *TesseractExtractor) Name() string { return EngineTesseract }

// Extract feeds the image on stdin and parses word boxes from TSV on stdout.
func (e *TesseractExtractor) Extract(ctx context.Context, image []byte) ([]models.OCRToken, error) {
	args := []string{"stdin", "stdout", "-l", e.lang}
	if e.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(e.psm))
	}
	args = append(args, "tsv")

	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = bytes.NewReader(image)
	cmd.WaitDelay = 50 * time.Millisecond
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseTSV(&stdout)
}

// ParseTSV reads tesseract TSV output and keeps recognized words.
// Confidence is rescaled from 0-100 to 0-1; rows with negative confidence are
// layout rows and are skipped.
func ParseTSV(r io.Reader) ([]models.OCRToken, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var tokens []models.OCRToken
	header := true
	for scanner.Scan() {
		line := scanner.Text()
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}

		level, err := strconv.Atoi(fields[0])
		if err != nil || level != tsvWordLevel {
			continue
		}
		text := strings.TrimSpace(strings.Join(fields[11:], "\t"))
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		var box [4]float64
		valid := true
		for i := range box {
			v, err := strconv.ParseFloat(fields[6+i], 64)
			if err != nil {
				valid = false
				break
			}
			box[i] = v
		}
		if !valid {
			continue
		}
		left, top, width, height := box[0], box[1], box[2], box[3]

		tokens = append(tokens, models.OCRToken{
			Text:       text,
			Box:        models.BoundingBox{Left: left, Top: top, Right: left + width, Bottom: top + height},
			Confidence: clampConfidence(conf / 100),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tesseract output: %w", err)
	}
	return tokens, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
