package transport

import (
	"errors"
	"io"
	"sync"
)

const pumpChunk = 4096

// Stream adapts an io.ReadWriteCloser to Conn. A background pump drains the
// reader into a buffer so Available reports what has already arrived.
type Stream struct {
	name string
	rwc  io.ReadWriteCloser

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	err    error
	closed bool
	done   chan struct{}
}

func NewStream(name string, rwc io.ReadWriteCloser) *Stream {
	s := &Stream{
		name: name,
		rwc:  rwc,
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *Stream) Name() string { return s.name }

// Done is closed once the pump stops.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) pump() {
	defer close(s.done)
	chunk := make([]byte, pumpChunk)
	for {
		n, err := s.rwc.Read(chunk)
		s.mu.Lock()
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if s.closed {
				err = ErrClosed
			}
			s.err = err
		}
		s.cond.Broadcast()
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return s.rwc.Write(p)
}

func (s *Stream) ReadExact(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) < n && s.err == nil {
		s.cond.Wait()
	}
	if len(s.buf) < n {
		err := s.err
		if errors.Is(err, io.EOF) && len(s.buf) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s.buf)
	s.buf = s.buf[n:]
	return out, nil
}

func (s *Stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Err returns the error that stopped the pump, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.rwc.Close()
}
