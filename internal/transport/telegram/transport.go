package telegram

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// OnUpdate is invoked for each ingested update once the transport is running.
type OnUpdate func(update tgbotapi.Update) error

// OnError is an optional hook notified when OnUpdate returns an error.
type OnError func(err error)

// IngestResult is returned by Ingest.
type IngestResult struct {
	Accepted bool
	Reason   string
}

// Transport is a new -> started -> stopped lifecycle object that is
// transport-mechanism agnostic: the HTTP webhook server in server.go calls
// Ingest for each authenticated request it accepts.
type Transport struct {
	mu       sync.RWMutex
	running  bool
	onUpdate OnUpdate
	onError  OnError

	// drain tracks outstanding Ingest calls so Stop can wait for them.
	drain sync.WaitGroup
}

// New creates a Transport in the "new" lifecycle state.
func New() *Transport {
	return &Transport{}
}

// Start transitions new/stopped -> started, recording the update handler.
func (t *Transport) Start(onUpdate OnUpdate, onError OnError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.onUpdate = onUpdate
	t.onError = onError
}

// Stop transitions started -> stopped, clearing the handler. It is
// idempotent and blocks until outstanding Ingest calls have returned.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.running = false
	t.onUpdate = nil
	t.onError = nil
	t.mu.Unlock()

	t.drain.Wait()
}

// Running reports whether the transport is in the started state.
func (t *Transport) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Ingest delivers one update to the registered handler. If the handler
// returns an error, it is forwarded to the optional onError hook and
// re-raised to the caller.
func (t *Transport) Ingest(update tgbotapi.Update) (IngestResult, error) {
	t.mu.Lock()
	if !t.running || t.onUpdate == nil {
		t.mu.Unlock()
		return IngestResult{Accepted: false, Reason: "transport_not_running"}, nil
	}
	handler := t.onUpdate
	onError := t.onError
	t.drain.Add(1)
	t.mu.Unlock()
	defer t.drain.Done()

	if err := handler(update); err != nil {
		if onError != nil {
			onError(err)
		}
		return IngestResult{Accepted: false, Reason: fmt.Sprintf("handler_error:%v", err)}, err
	}
	return IngestResult{Accepted: true}, nil
}
