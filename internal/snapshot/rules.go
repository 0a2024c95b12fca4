package snapshot

import (
	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/internal/backend/dense"
	"github.com/unbound-ml/unbound/internal/dispatch"
)

// Operation identifiers served by this package.
const (
	OpSave = "snapshot.save"
	OpLoad = "snapshot.load"
)

// Name used for the array when a single storage is saved through the
// forwarder rather than through Writer.WriteArrays.
const defaultArrayName = "data"

func ruleSave(args []any) (any, error) {
	s := args[0].(*dense.Storage)
	path := args[1].(string)

	if err := Save(path, map[string]*dense.Storage{defaultArrayName: s}, nil); err != nil {
		return nil, err
	}
	// Hand the saved operand back so the caller keeps its handle.
	return args[0], nil
}

func ruleLoad(args []any) (any, error) {
	path := args[0].(string)

	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	names := r.ArrayNames()
	if len(names) != 1 {
		return nil, errors.Newf("snapshot holds %d arrays, expected one; open it with snapshot.Open to pick by name", len(names))
	}
	return r.LoadArray(names[0])
}

// RegisterRules installs the save and load rules.
func RegisterRules(r *dispatch.Registry) error {
	ds := dispatch.Exact((*dense.Storage)(nil))
	path := dispatch.Exact("")

	rules := []dispatch.Rule{
		{Op: OpSave, Patterns: []dispatch.Pattern{ds, path}, Fn: ruleSave},
		{Op: OpLoad, Patterns: []dispatch.Pattern{path}, Fn: ruleLoad},
	}

	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return err
		}
	}
	return nil
}
