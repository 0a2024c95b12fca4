package dispatch

import (
	"github.com/unbound-ml/unbound/internal/array"
)

// applyPolicy decides the fate of an operation result. Storage-shaped
// outputs are wrapped exactly when at least one operand was wrapped; the
// rule is monotonic, a wrapped result is never downgraded. Scalars,
// counts, factorization handles and every other non-storage value pass
// through untouched.
//
// Wrapping reads shape and element type from the output storage itself,
// so a rank-reducing operation re-wraps at the reduced rank rather than
// inheriting the input's.
func applyPolicy(v any, anyWrapped bool) any {
	if w, ok := v.(array.Wrapped); ok {
		// Already wrapped: keep it, regardless of the operands.
		return w
	}
	if !anyWrapped {
		return v
	}

	switch out := v.(type) {
	case array.Storage:
		return wrapAuto(out)
	case []array.Storage:
		wrapped := make([]any, len(out))
		for i, s := range out {
			wrapped[i] = wrapAuto(s)
		}
		return wrapped
	default:
		return v
	}
}

// wrapAuto wraps a storage at the instantiation matching its runtime
// element type.
func wrapAuto(s array.Storage) any {
	switch s.DType() {
	case array.Float32:
		return array.Wrap[float32](s)
	case array.Float64:
		return array.Wrap[float64](s)
	case array.Int32:
		return array.Wrap[int32](s)
	case array.Int64:
		return array.Wrap[int64](s)
	case array.Uint8:
		return array.Wrap[uint8](s)
	case array.Bool:
		return array.Wrap[bool](s)
	default:
		return s
	}
}
