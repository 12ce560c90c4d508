// Package pdf renders compiled documents to PDF bytes.
package pdf

import (
	"context"
	"errors"

	"github.com/finovo/leaseflow/internal/compiler"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"go.uber.org/zap"
)

// Rasterizer turns a compiled document into final PDF bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc *compiler.RenderableDocument) ([]byte, error)
}

var ErrRasterize = errors.New("rasterize_failed")

// Router picks a rasterizer per document: templates built on an uploaded
// source document get the text overlay, everything else gets a flat layout.
type Router struct {
	overlay *OverlayRasterizer
	flat    *FlatRasterizer
}

func Provide(assets storage.Provider, log *zap.Logger) Rasterizer {
	return &Router{
		overlay: NewOverlayRasterizer(assets, log),
		flat:    NewFlatRasterizer(log),
	}
}

func (r *Router) Rasterize(ctx context.Context, doc *compiler.RenderableDocument) ([]byte, error) {
	if doc.SourceDocumentURL != "" {
		return r.overlay.Rasterize(ctx, doc)
	}
	return r.flat.Rasterize(ctx, doc)
}
