package telegram

import (
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestIngestBeforeStartIsRejected(t *testing.T) {
	tr := New()
	res, err := tr.Ingest(tgbotapi.Update{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted || res.Reason != "transport_not_running" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestIngestAfterStartInvokesHandler(t *testing.T) {
	tr := New()
	var got tgbotapi.Update
	tr.Start(func(u tgbotapi.Update) error {
		got = u
		return nil
	}, nil)

	update := tgbotapi.Update{UpdateID: 42}
	res, err := tr.Ingest(update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if got.UpdateID != 42 {
		t.Fatalf("handler did not receive update: %+v", got)
	}
}

func TestIngestAfterStopIsRejected(t *testing.T) {
	tr := New()
	tr.Start(func(tgbotapi.Update) error { return nil }, nil)
	tr.Stop()

	res, _ := tr.Ingest(tgbotapi.Update{})
	if res.Accepted {
		t.Fatal("expected rejection after Stop")
	}
}

func TestIngestHandlerErrorPropagatesAndCallsOnError(t *testing.T) {
	tr := New()
	wantErr := errors.New("boom")
	var gotErr error
	tr.Start(func(tgbotapi.Update) error {
		return wantErr
	}, func(err error) {
		gotErr = err
	})

	_, err := tr.Ingest(tgbotapi.Update{})
	if err == nil {
		t.Fatal("expected error to be re-raised")
	}
	if gotErr != wantErr {
		t.Fatalf("expected onError to receive handler error, got %v", gotErr)
	}
}

func TestStopDrainsOutstandingIngest(t *testing.T) {
	tr := New()
	release := make(chan struct{})
	var wg sync.WaitGroup
	tr.Start(func(tgbotapi.Update) error {
		<-release
		return nil
	}, nil)

	wg.Add(1)
	go func() {
		defer wg.Done()
		tr.Ingest(tgbotapi.Update{})
	}()

	// give the goroutine a chance to enter Ingest before we Stop.
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		tr.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before outstanding Ingest drained")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after Ingest drained")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tr := New()
	tr.Start(func(tgbotapi.Update) error { return nil }, nil)
	tr.Stop()
	tr.Stop() // must not panic or block
}
