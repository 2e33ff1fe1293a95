package fanout

import (
	"errors"
	"sync"
	"testing"
)

// fakeDeregistrar records deindex calls without touching a real Registry.
type fakeDeregistrar struct {
	mu        sync.Mutex
	deindexed []string
}

func (f *fakeDeregistrar) deindex(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deindexed = append(f.deindexed, id)
}

func (f *fakeDeregistrar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deindexed)
}

func newTestConnection(transport TransportKind, sendRaw func([]byte) error, reg deregistrar) *Connection {
	var closeCalls int
	closeRaw := func(code int, reason string) error {
		closeCalls++
		return nil
	}
	return newConnection("conn-1", "user-1", "chan-1", transport, sendRaw, closeRaw, reg)
}

func TestConnectionSendSuccess(t *testing.T) {
	var written [][]byte
	conn := newTestConnection(TransportWS, func(frame []byte) error {
		written = append(written, frame)
		return nil
	}, &fakeDeregistrar{})

	if err := conn.Send(Message{Type: "greeting", Data: "hi"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(written))
	}
	if !conn.IsAlive() {
		t.Error("expected connection to remain alive after a successful send")
	}
}

func TestConnectionSendFailureMarksDeadAndDeindexes(t *testing.T) {
	reg := &fakeDeregistrar{}
	conn := newTestConnection(TransportWS, func(frame []byte) error {
		return errors.New("broken pipe")
	}, reg)

	err := conn.Send(Message{Type: "x"})
	if err == nil {
		t.Fatal("expected Send to return an error when sendRaw fails")
	}
	if conn.IsAlive() {
		t.Error("expected connection to be marked dead after a failed send")
	}
	if reg.count() != 1 {
		t.Errorf("expected exactly one deindex call, got %d", reg.count())
	}
}

func TestConnectionSendAfterCloseFails(t *testing.T) {
	reg := &fakeDeregistrar{}
	conn := newTestConnection(TransportSSE, func(frame []byte) error {
		return nil
	}, reg)

	conn.Close(1000, "done")
	if err := conn.Send(Message{Type: "late"}); err == nil {
		t.Error("expected Send on a closed connection to fail")
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	reg := &fakeDeregistrar{}
	var closeCalls int
	var mu sync.Mutex
	closeRaw := func(code int, reason string) error {
		mu.Lock()
		closeCalls++
		mu.Unlock()
		return nil
	}
	conn := newConnection("conn-2", "", "", TransportWS, func([]byte) error { return nil }, closeRaw, reg)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close(0, "")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if closeCalls != 1 {
		t.Errorf("expected closeRaw to be invoked exactly once across concurrent Close calls, got %d", closeCalls)
	}
	if reg.count() != 1 {
		t.Errorf("expected exactly one deindex call, got %d", reg.count())
	}
}
