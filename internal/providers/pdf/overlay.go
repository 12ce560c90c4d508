package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/finovo/leaseflow/internal/compiler"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// OverlayRasterizer stamps positioned text onto the template's uploaded
// source PDF, one watermark pass per text.
type OverlayRasterizer struct {
	assets storage.Provider
	log    *zap.Logger
}

func NewOverlayRasterizer(assets storage.Provider, log *zap.Logger) *OverlayRasterizer {
	return &OverlayRasterizer{
		assets: assets,
		log:    log.Named("pdf.overlay"),
	}
}

func (r *OverlayRasterizer) Rasterize(ctx context.Context, doc *compiler.RenderableDocument) ([]byte, error) {
	source, err := r.assets.Fetch(ctx, doc.SourceDocumentURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch source: %v", ErrRasterize, err)
	}

	tempDir, err := os.MkdirTemp("", "leaseflow-overlay-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	current := filepath.Join(tempDir, "doc-0.pdf")
	if err := os.WriteFile(current, source, 0o600); err != nil {
		return nil, err
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	pass := 0
	for _, page := range doc.Pages {
		selected := []string{strconv.Itoa(page.Index + 1)}
		for _, text := range page.Texts {
			if text.Value == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			pass++
			next := filepath.Join(tempDir, fmt.Sprintf("doc-%d.pdf", pass))
			if err := api.AddTextWatermarksFile(current, next, selected, true, text.Value, stampDescription(text), cfg); err != nil {
				return nil, fmt.Errorf("%w: stamp %s on page %d: %v", ErrRasterize, text.FieldID, page.Index, err)
			}
			current = next
		}
	}

	output, err := os.ReadFile(current)
	if err != nil {
		return nil, err
	}
	r.log.Debug("overlay rendered",
		zap.Int("pages", len(doc.Pages)),
		zap.Int("stamps", pass),
		zap.Int("size", len(output)),
	)
	return output, nil
}

// stampDescription builds the pdfcpu watermark description for one text.
// Template coordinates are PDF points from the top-left corner, which maps
// to pos:tl with a negative vertical offset.
func stampDescription(text compiler.PositionedText) string {
	points := text.FontSize
	if points <= 0 {
		points = 10
	}
	return fmt.Sprintf(
		"font:%s, points:%.1f, scale:1 abs, pos:tl, off:%.1f %.1f, rot:0, fillc:#000000, op:1",
		fontName(text),
		points,
		text.X,
		-text.Y,
	)
}

func fontName(text compiler.PositionedText) string {
	switch {
	case text.Bold && text.Italic:
		return "Helvetica-BoldOblique"
	case text.Bold:
		return "Helvetica-Bold"
	case text.Italic:
		return "Helvetica-Oblique"
	default:
		return "Helvetica"
	}
}
