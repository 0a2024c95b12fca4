package array

import (
	"sync/atomic"

	"github.com/unbound-ml/unbound/errors"
)

// Engine executes named operations on behalf of wrapper methods. The
// dispatch layer installs one at process start; this package only holds the
// seam so the core stays free of dispatch imports.
type Engine interface {
	Call(op string, args ...any) (any, error)
}

// ErrNoEngine is returned by operation methods before an engine is
// installed.
var ErrNoEngine = errors.New("array: no operation engine installed")

type engineRef struct {
	e Engine
}

var currentEngine atomic.Pointer[engineRef]

// SetEngine installs the operation engine used by all wrapper methods.
// Passing nil uninstalls it, which only tests have a reason to do.
func SetEngine(e Engine) {
	if e == nil {
		currentEngine.Store(nil)
		return
	}
	currentEngine.Store(&engineRef{e: e})
}

// InstalledEngine returns the current engine, or nil.
func InstalledEngine() Engine {
	ref := currentEngine.Load()
	if ref == nil {
		return nil
	}
	return ref.e
}

func call(op string, args ...any) (any, error) {
	ref := currentEngine.Load()
	if ref == nil {
		return nil, errors.Wrapf(ErrNoEngine, "operation %q", op)
	}
	return ref.e.Call(op, args...)
}
