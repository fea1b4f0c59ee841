package ocr

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Factory constructs an engine; it may be slow and may fail
type Factory func() (Engine, error)

type lazyState struct {
	engine Engine
	err    error
}

// LazyEngine constructs its engine on first use and keeps it for the process
// lifetime. Construction runs at most once even under concurrent first use.
// A construction failure is recorded and returned on every later call.
type LazyEngine struct {
	factory       Factory
	mu            sync.Mutex
	state         atomic.Pointer[lazyState]
	constructions atomic.Int32
}

// NewLazyEngine wraps factory
func NewLazyEngine(factory Factory) *LazyEngine {
	return &LazyEngine{factory: factory}
}

// Get returns the engine, constructing it if this is the first call
func (l *LazyEngine) Get() (Engine, error) {
	if s := l.state.Load(); s != nil {
		return s.engine, s.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if s := l.state.Load(); s != nil {
		return s.engine, s.err
	}

	s := l.construct()
	l.state.Store(s)
	return s.engine, s.err
}

func (l *LazyEngine) construct() (s *lazyState) {
	l.constructions.Add(1)

	defer func() {
		if r := recover(); r != nil {
			s = &lazyState{err: fmt.Errorf("ocr engine construction panicked: %v", r)}
		}
	}()

	engine, err := l.factory()
	if err != nil {
		return &lazyState{err: fmt.Errorf("ocr engine construction failed: %w", err)}
	}
	if engine == nil {
		return &lazyState{err: fmt.Errorf("ocr engine construction returned no engine")}
	}
	return &lazyState{engine: engine}
}

// Initialized reports whether construction has been attempted
func (l *LazyEngine) Initialized() bool {
	return l.state.Load() != nil
}

// Constructions returns how many times the factory has run
func (l *LazyEngine) Constructions() int {
	return int(l.constructions.Load())
}
