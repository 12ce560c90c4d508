// Package compiler turns a template plus a bound dataset into a
// renderer-agnostic document description.
package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/finovo/leaseflow/internal/binding"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
)

var (
	// ErrCompile reports a template whose placed fields reference pages the
	// source document does not have.
	ErrCompile = errors.New("compile_failed")
)

// PositionedText is one formatted value placed on a page. Coordinates and
// sizes are in template units; the rasterizer maps them to device space.
type PositionedText struct {
	FieldID   string
	Value     string
	X         float64
	Y         float64
	FontSize  float64
	Bold      bool
	Italic    bool
	Underline bool
	MaxWidth  float64
}

// RenderablePage is one page of the compiled document.
type RenderablePage struct {
	Index         int
	BackgroundURL string
	Texts         []PositionedText
}

// RenderableDocument is the compiler output handed to a rasterizer. It is a
// pure value: compiling the same template, dataset and locale always yields
// a byte-identical document.
type RenderableDocument struct {
	TemplateID        string
	SourceDocumentURL string
	PageCount         int
	Pages             []RenderablePage
}

// Compile formats every bound field per its data type and locale and places
// it on its page. A field referencing a page outside the source document is
// a template defect and fails the whole compile.
func Compile(tmpl *templatedomain.DocumentTemplate, dataset binding.BoundDataset, loc Locale) (*RenderableDocument, error) {
	pageSpecs := tmpl.Pages.Data()
	pageCount := tmpl.PageCount
	if pageCount == 0 {
		pageCount = len(pageSpecs)
	}

	doc := &RenderableDocument{
		TemplateID:        tmpl.ID.String(),
		SourceDocumentURL: tmpl.SourceDocumentURL,
		PageCount:         pageCount,
		Pages:             make([]RenderablePage, pageCount),
	}
	for i := range doc.Pages {
		doc.Pages[i].Index = i
		if i < len(pageSpecs) {
			doc.Pages[i].BackgroundURL = pageSpecs[i].BackgroundURL
		}
	}

	for id, bound := range dataset {
		spec := bound.Spec
		if spec.Page == nil {
			continue
		}
		page := *spec.Page
		if page < 0 || page >= pageCount {
			return nil, fmt.Errorf("%w: field %s references page %d of %d", ErrCompile, id, page, pageCount)
		}

		doc.Pages[page].Texts = append(doc.Pages[page].Texts, PositionedText{
			FieldID:   id,
			Value:     formatValue(spec.DataType, bound.Value, loc),
			X:         spec.Position.X,
			Y:         spec.Position.Y,
			FontSize:  spec.Style.FontSize,
			Bold:      spec.Style.FontWeight == "bold",
			Italic:    spec.Style.FontStyle == "italic",
			Underline: spec.Style.TextDecoration == "underline",
			MaxWidth:  spec.Style.MaxWidth,
		})
	}

	// Map iteration order is random; fix it so output is reproducible.
	for i := range doc.Pages {
		texts := doc.Pages[i].Texts
		sort.Slice(texts, func(a, b int) bool {
			if texts[a].Y != texts[b].Y {
				return texts[a].Y < texts[b].Y
			}
			if texts[a].X != texts[b].X {
				return texts[a].X < texts[b].X
			}
			return texts[a].FieldID < texts[b].FieldID
		})
	}

	return doc, nil
}

func formatValue(dataType templatedomain.DataType, value any, loc Locale) string {
	// An explicitly-missing value stays empty regardless of data type.
	if s, ok := value.(string); ok && s == "" {
		return ""
	}

	switch dataType {
	case templatedomain.DataTypeCurrency:
		return FormatCurrency(value, loc)
	case templatedomain.DataTypeNumber:
		return FormatNumber(value, loc)
	case templatedomain.DataTypeDate:
		return FormatDate(value, loc, DateMedium)
	case templatedomain.DataTypeBoolean:
		return FormatBool(value, loc)
	default:
		return stringify(value)
	}
}
