package engine

import (
	"time"

	"github.com/pymemo-dev/pymemo/pkg/codeunit"
	"github.com/pymemo-dev/pymemo/pkg/fmi"
	"github.com/pymemo-dev/pymemo/pkg/value"
)

// resolverAdapter implements depcheck.Resolver over the engine's own
// state plus the host-supplied GlobalLookup.
type resolverAdapter struct {
	lookup GlobalLookup
	host   value.HostServices
	fmis   *fmi.Table
}

func (r resolverAdapter) GlobalValue(name []string) (value.Value, bool) {
	if r.lookup == nil {
		return nil, false
	}
	return r.lookup(name)
}

func (r resolverAdapter) FileModTime(path string) (time.Time, bool) {
	return r.host.FileModTime(path)
}

func (r resolverAdapter) CodeOf(canonical string) (codeunit.CodeDependency, bool) {
	info, ok := r.fmis.Get(canonical)
	if !ok {
		return codeunit.CodeDependency{}, false
	}
	return info.Code(), true
}
