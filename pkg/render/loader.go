package render

import "sync"

// Loader implements the Preset Library Loader (C8): load(id) is idempotent
// — it returns immediately when already loaded, joins the in-flight call
// when already loading, and on failure allows a subsequent retry (§4.8).
type Loader struct {
	mu    sync.Mutex
	state map[Kind]*loadState
}

type loadState struct {
	done    chan struct{}
	err     error
	loaded  bool
}

// NewLoader returns an empty Loader.
func NewLoader() *Loader {
	return &Loader{state: make(map[Kind]*loadState)}
}

// Load loads the library backing kind via loadFn, exactly once across any
// number of concurrent or sequential callers, unless a prior attempt
// failed (in which case the next call retries).
func (l *Loader) Load(kind Kind, loadFn func() error) error {
	l.mu.Lock()
	st, ok := l.state[kind]
	if ok && st.loaded {
		l.mu.Unlock()
		return nil
	}
	if ok && !st.loaded && st.err == nil {
		// In flight: wait without holding the lock.
		l.mu.Unlock()
		<-st.done
		return st.err
	}
	// Not loaded, or a previous attempt failed: start a fresh attempt.
	st = &loadState{done: make(chan struct{})}
	l.state[kind] = st
	l.mu.Unlock()

	err := loadFn()

	l.mu.Lock()
	st.err = err
	st.loaded = err == nil
	l.mu.Unlock()
	close(st.done)

	return err
}

// Loaded reports whether kind's library has successfully loaded.
func (l *Loader) Loaded(kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.state[kind]
	return ok && st.loaded
}
