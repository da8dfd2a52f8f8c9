package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMemFeedAndReadExact(t *testing.T) {
	m := NewMem()
	m.Feed([]byte{1, 2, 3, 4})
	if m.Available() != 4 {
		t.Fatalf("unexpected available: %d", m.Available())
	}
	got, err := m.ReadExact(3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected bytes % X", got)
	}
	if m.Available() != 1 {
		t.Fatalf("unexpected available after read: %d", m.Available())
	}
}

func TestMemReadExactBlocksUntilFed(t *testing.T) {
	m := NewMem()
	done := make(chan []byte, 1)
	go func() {
		b, _ := m.ReadExact(2)
		done <- b
	}()

	m.Feed([]byte{0xAA})
	select {
	case <-done:
		t.Fatalf("read returned before enough bytes arrived")
	case <-time.After(20 * time.Millisecond):
	}
	m.Feed([]byte{0xBB})
	select {
	case b := <-done:
		if !bytes.Equal(b, []byte{0xAA, 0xBB}) {
			t.Fatalf("unexpected bytes % X", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("read did not complete")
	}
}

func TestMemCloseWakesReaders(t *testing.T) {
	m := NewMem()
	errCh := make(chan error, 1)
	go func() {
		_, err := m.ReadExact(1)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = m.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("close did not wake reader")
	}
	if _, err := m.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemWriteLimitsAndFailures(t *testing.T) {
	m := NewMem()
	m.LimitWrites(2)
	n, err := m.Write([]byte{1, 2, 3})
	if err != nil || n != 2 {
		t.Fatalf("unexpected write result n=%d err=%v", n, err)
	}
	boom := errors.New("boom")
	m.FailWrites(boom)
	if _, err := m.Write([]byte{4}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if !bytes.Equal(m.Written(), []byte{1, 2}) {
		t.Fatalf("unexpected written % X", m.Written())
	}
	m.ResetWritten()
	if len(m.Written()) != 0 {
		t.Fatalf("expected reset")
	}
}

func TestMemPairDeliversToPeer(t *testing.T) {
	a, b := NewMemPair()
	if _, err := a.Write([]byte{0xE0, 0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.Available() != 2 || a.Available() != 0 {
		t.Fatalf("unexpected availability a=%d b=%d", a.Available(), b.Available())
	}
	got, err := b.ReadExact(2)
	if err != nil || !bytes.Equal(got, []byte{0xE0, 0x01}) {
		t.Fatalf("peer read % X err=%v", got, err)
	}
}
