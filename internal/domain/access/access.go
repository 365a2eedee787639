// Package access models the gallery permission levels.
package access

import (
	"context"
	"fmt"
)

// Level is a caller's gallery permission.
type Level int

// Permission levels, in increasing order.
const (
	// None may not browse at all.
	None Level = 0
	// Presets may browse the configured preset directories only.
	Presets Level = 1
	// Manual may browse any directory.
	Manual Level = 2
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool { return l >= None && l <= Manual }

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Presets:
		return "presets"
	case Manual:
		return "manual"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

type ctxKey struct{}

// WithLevel stores the caller's level in the context.
func WithLevel(ctx context.Context, l Level) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the caller's level, None when unset.
func FromContext(ctx context.Context) Level {
	if l, ok := ctx.Value(ctxKey{}).(Level); ok {
		return l
	}
	return None
}
