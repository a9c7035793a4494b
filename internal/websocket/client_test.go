package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowResponder blocks every turn until released or cancelled.
type slowResponder struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	seen    []string
	ctxErr  error
}

func newSlowResponder() *slowResponder {
	return &slowResponder{started: make(chan string, 16), release: make(chan struct{})}
}

func (s *slowResponder) handle(ctx context.Context, _ string, message string) error {
	s.started <- message
	select {
	case <-s.release:
	case <-ctx.Done():
		s.mu.Lock()
		s.ctxErr = ctx.Err()
		s.mu.Unlock()
		return ctx.Err()
	}
	s.mu.Lock()
	s.seen = append(s.seen, message)
	s.mu.Unlock()
	return nil
}

func waitStarted(t *testing.T, s *slowResponder, want string) {
	t.Helper()
	select {
	case got := <-s.started:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("turn %q never started", want)
	}
}

func TestSlowTurnDoesNotBlockReading(t *testing.T) {
	hub := startHub(t, nil)
	client := register(t, hub, "42")
	responder := newSlowResponder()
	client.onMessage = responder.handle

	worker := newTurnWorker(client.answer)
	defer worker.stop()

	client.enqueue(worker, []byte(`{"message":"Combien pour une assurance auto ?"}`))
	waitStarted(t, responder, "Combien pour une assurance auto ?")

	// the read loop is free while the first turn is still running
	returned := make(chan struct{})
	go func() {
		client.enqueue(worker, []byte("Et pour la santé ?"))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked behind a running turn")
	}

	close(responder.release)
	waitStarted(t, responder, "Et pour la santé ?")
	require.Eventually(t, func() bool {
		responder.mu.Lock()
		defer responder.mu.Unlock()
		return len(responder.seen) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Combien pour une assurance auto ?", "Et pour la santé ?"}, responder.seen)
	assert.Len(t, client.Send, 0)
}

func TestFullInboxAnswersBusy(t *testing.T) {
	hub := startHub(t, nil)
	client := register(t, hub, "42")
	responder := newSlowResponder()
	client.onMessage = responder.handle

	worker := newTurnWorker(client.answer)
	defer func() {
		close(responder.release)
		worker.stop()
	}()

	client.enqueue(worker, []byte("premier"))
	waitStarted(t, responder, "premier")
	for i := 0; i < inboxSize; i++ {
		client.enqueue(worker, []byte("en attente"))
	}
	client.enqueue(worker, []byte("de trop"))

	env := receive(t, client)
	assert.Equal(t, FrameError, env.Type)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ErrBusy, data["error"])
}

func TestClosedConnectionCancelsRunningTurn(t *testing.T) {
	hub := startHub(t, nil)
	client := register(t, hub, "42")
	responder := newSlowResponder()
	client.onMessage = responder.handle

	worker := newTurnWorker(client.answer)
	client.enqueue(worker, []byte("Bonjour"))
	waitStarted(t, responder, "Bonjour")

	worker.stop()

	select {
	case <-worker.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after stop")
	}
	responder.mu.Lock()
	assert.True(t, errors.Is(responder.ctxErr, context.Canceled))
	responder.mu.Unlock()
	// a cancelled turn is not reported back as an error frame
	assert.Len(t, client.Send, 0)
}

func TestParseInbound(t *testing.T) {
	tests := map[string]string{
		`{"message":"  Bonjour  "}`: "Bonjour",
		"texte brut":                "texte brut",
		`{"message":""}`:            "",
		"   ":                       "",
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseInbound([]byte(raw)), raw)
	}
}
