package transport

import (
	"io"
	"sync"
)

// Mem is an in-memory transport. Bytes fed to it are readable; bytes written
// to it are recorded and, for a pair, delivered to the peer.
type Mem struct {
	mu     sync.Mutex
	cond   *sync.Cond
	in     []byte
	out    []byte
	closed bool

	peer       *Mem
	writeLimit int
	writeErr   error
}

func NewMem() *Mem {
	m := &Mem{writeLimit: -1}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// NewMemPair returns two cross-wired endpoints: writes on one are read on the other.
func NewMemPair() (*Mem, *Mem) {
	a, b := NewMem(), NewMem()
	a.peer, b.peer = b, a
	return a, b
}

func (m *Mem) Name() string { return "mem" }

// Feed makes p readable.
func (m *Mem) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.in = append(m.in, p...)
	m.cond.Broadcast()
}

// Written returns a copy of everything written so far.
func (m *Mem) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.out))
	copy(out, m.out)
	return out
}

func (m *Mem) ResetWritten() {
	m.mu.Lock()
	m.out = nil
	m.mu.Unlock()
}

// LimitWrites caps each later Write at n accepted bytes. Negative removes the cap.
func (m *Mem) LimitWrites(n int) {
	m.mu.Lock()
	m.writeLimit = n
	m.mu.Unlock()
}

// FailWrites makes later writes return err. Nil clears it.
func (m *Mem) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *Mem) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return 0, err
	}
	n := len(p)
	if m.writeLimit >= 0 && n > m.writeLimit {
		n = m.writeLimit
	}
	m.out = append(m.out, p[:n]...)
	peer := m.peer
	m.mu.Unlock()

	if peer != nil {
		peer.Feed(p[:n])
	}
	return n, nil
}

func (m *Mem) ReadExact(n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.in) < n && !m.closed {
		m.cond.Wait()
	}
	if len(m.in) < n {
		if len(m.in) == 0 {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, m.in)
	m.in = m.in[n:]
	return out, nil
}

func (m *Mem) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.in)
}

// Close wakes blocked readers. Buffered input stays readable.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}
