package exec

import (
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
)

// vmPool recycles goja Runtimes. goja has no V8-style snapshot mechanism
// (spec.md §9 "Snapshotting"), so start-up cost is amortized instead by
// pooling constructed runtimes and scrubbing the globals one session
// installed before the runtime is reused, rather than discarding it.
type vmPool struct {
	pool  sync.Pool
	built atomic.Int64
}

func newVMPool() *vmPool {
	p := &vmPool{}
	p.pool.New = func() any {
		p.built.Add(1)
		return goja.New()
	}
	return p
}

// get returns a runtime from the pool, and whether it had to be freshly
// constructed rather than reused. The freshness check races benignly under
// concurrent Gets (it may attribute a hit to the wrong caller), which is
// acceptable for a best-effort telemetry signal.
func (p *vmPool) get() (rt *goja.Runtime, wasNew bool) {
	before := p.built.Load()
	v := p.pool.Get()
	return v.(*goja.Runtime), p.built.Load() > before
}

// release removes every global a session installed and clears any pending
// interrupt flag, then returns the runtime to the pool. Nothing about the
// finished execution is visible to whichever request reuses this runtime
// next (spec.md §4.4: "no state leaks to the next request").
func (p *vmPool) release(rt *goja.Runtime, installedGlobals []string) {
	rt.ClearInterrupt()
	g := rt.GlobalObject()
	for _, name := range installedGlobals {
		g.Delete(name)
	}
	p.pool.Put(rt)
}
