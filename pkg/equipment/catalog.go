package equipment

import (
	"context"
	"fmt"
	"sync"
)

// Catalog resolves reference rows by type name. Lookups take the first
// matching row and return ErrSpecNotFound when nothing matches.
type Catalog interface {
	Lighting(ctx context.Context, lightingType string) (LightingSpec, error)
	LightingControl(ctx context.Context, controlType string) (LightingControlSpec, error)
	Transformer(ctx context.Context, transformerType string) (TransformerSpec, error)
}

// MemoryCatalog is an in-memory Catalog seeded once at startup.
type MemoryCatalog struct {
	mu   sync.RWMutex
	rows Rows
}

// NewMemoryCatalog constructs a catalog over a copy of rows.
func NewMemoryCatalog(rows Rows) *MemoryCatalog {
	return &MemoryCatalog{rows: rows.clone()}
}

// Rows returns a copy of every row in lookup order.
func (c *MemoryCatalog) Rows() Rows {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows.clone()
}

// Lighting returns the first lighting row for lightingType.
func (c *MemoryCatalog) Lighting(ctx context.Context, lightingType string) (LightingSpec, error) {
	if err := ctx.Err(); err != nil {
		return LightingSpec{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.rows.Lighting {
		if s.LightingType == lightingType {
			return s, nil
		}
	}
	return LightingSpec{}, notFound(KindLighting, lightingType)
}

// LightingControl returns the first control row for controlType.
func (c *MemoryCatalog) LightingControl(ctx context.Context, controlType string) (LightingControlSpec, error) {
	if err := ctx.Err(); err != nil {
		return LightingControlSpec{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.rows.LightingControls {
		if s.ControlType == controlType {
			return s, nil
		}
	}
	return LightingControlSpec{}, notFound(KindLightingControl, controlType)
}

// Transformer returns the first transformer row for transformerType.
func (c *MemoryCatalog) Transformer(ctx context.Context, transformerType string) (TransformerSpec, error) {
	if err := ctx.Err(); err != nil {
		return TransformerSpec{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.rows.Transformers {
		if s.TransformerType == transformerType {
			return s, nil
		}
	}
	return TransformerSpec{}, notFound(KindTransformer, transformerType)
}

func notFound(kind Kind, typeName string) error {
	return fmt.Errorf("%s %q: %w", kind, typeName, ErrSpecNotFound)
}

func (r Rows) clone() Rows {
	out := Rows{
		Lighting:         make([]LightingSpec, len(r.Lighting)),
		LightingControls: make([]LightingControlSpec, len(r.LightingControls)),
		Transformers:     make([]TransformerSpec, len(r.Transformers)),
	}
	copy(out.Lighting, r.Lighting)
	copy(out.LightingControls, r.LightingControls)
	copy(out.Transformers, r.Transformers)
	return out
}
