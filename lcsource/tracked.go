package lcsource

import (
	"io"
	"sync"
)

// Tracked wraps a Source and records how often it was opened and how often
// a stream it handed out was actually closed. Repeated Close calls on one
// stream count once.
type Tracked struct {
	src Source

	mu     sync.Mutex
	opens  int
	closes int
}

// Track wraps src.
func Track(src Source) *Tracked {
	return &Tracked{src: src}
}

// Open opens the wrapped source.
func (t *Tracked) Open() (io.ReadCloser, error) {
	rc, err := Open(t.src)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.opens++
	t.mu.Unlock()
	s := newStream(rc, rc)
	s.onClose = func() {
		t.mu.Lock()
		t.closes++
		t.mu.Unlock()
	}
	return s, nil
}

// Opened reports the number of successful opens.
func (t *Tracked) Opened() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

// Closed reports the number of streams closed.
func (t *Tracked) Closed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}
