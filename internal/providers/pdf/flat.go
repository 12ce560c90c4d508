package pdf

import (
	"context"
	"fmt"
	"sort"

	"github.com/finovo/leaseflow/internal/compiler"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"
)

// FlatRasterizer lays the compiled texts out on blank pages. It backs
// templates that have no uploaded source document.
type FlatRasterizer struct {
	log *zap.Logger
}

func NewFlatRasterizer(log *zap.Logger) *FlatRasterizer {
	return &FlatRasterizer{log: log.Named("pdf.flat")}
}

func (r *FlatRasterizer) Rasterize(ctx context.Context, doc *compiler.RenderableDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithLeftMargin(0).
		WithTopMargin(0).
		WithRightMargin(0).
		Build()

	m := maroto.New(cfg)

	for _, compiled := range doc.Pages {
		p := page.New()

		texts := make([]compiler.PositionedText, len(compiled.Texts))
		copy(texts, compiled.Texts)
		sort.Slice(texts, func(a, b int) bool { return texts[a].Y < texts[b].Y })

		cursor := 0.0
		for _, t := range texts {
			gap := t.Y - cursor
			if gap < 0 {
				gap = 0
			}
			rowHeight := rowHeightFor(t)
			p.Add(textRow(t, gap, rowHeight))
			cursor += gap + rowHeight
		}

		m.AddPages(p)
	}

	rendered, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}

	output := rendered.GetBytes()
	r.log.Debug("flat layout rendered",
		zap.Int("pages", len(doc.Pages)),
		zap.Int("size", len(output)),
	)
	return output, nil
}

func textRow(t compiler.PositionedText, topGap, height float64) core.Row {
	return row.New(topGap + height).Add(
		text.NewCol(12, t.Value, props.Text{
			Top:   topGap,
			Left:  t.X,
			Size:  t.FontSize,
			Style: styleFor(t),
		}),
	)
}

func rowHeightFor(t compiler.PositionedText) float64 {
	if t.FontSize > 0 {
		return t.FontSize / 2
	}
	return 5
}

func styleFor(t compiler.PositionedText) fontstyle.Type {
	switch {
	case t.Bold && t.Italic:
		return fontstyle.BoldItalic
	case t.Bold:
		return fontstyle.Bold
	case t.Italic:
		return fontstyle.Italic
	default:
		return fontstyle.Normal
	}
}
