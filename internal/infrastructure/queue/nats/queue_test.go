package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/dkoval/knowbase/internal/core/domain"
)

func TestDecodeIngestEventParsesJSONPayload(t *testing.T) {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(ingestEvent{DocumentID: "doc-1", PublishedAt: published})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	event := decodeIngestEvent(raw)
	if event.DocumentID != "doc-1" {
		t.Fatalf("expected doc-1, got %q", event.DocumentID)
	}
	if !event.PublishedAt.Equal(published) {
		t.Fatalf("expected published_at %v, got %v", published, event.PublishedAt)
	}
}

func TestDecodeIngestEventFallsBackToBareID(t *testing.T) {
	event := decodeIngestEvent([]byte("doc-legacy"))
	if event.DocumentID != "doc-legacy" {
		t.Fatalf("expected bare id fallback, got %q", event.DocumentID)
	}
	if !event.PublishedAt.IsZero() {
		t.Fatalf("expected zero publish time for legacy payload")
	}
}

func TestClassifyNATSErrorRetriesConnectivityFailures(t *testing.T) {
	for _, err := range []error{natsgo.ErrNoServers, natsgo.ErrTimeout, natsgo.ErrConnectionClosed, natsgo.ErrDisconnected} {
		class := classifyNATSError(err)
		if !class.Retryable || !class.RecordFailure {
			t.Fatalf("expected %v to be retryable+recorded, got %+v", err, class)
		}
	}
}

func TestClassifyNATSErrorDoesNotRetryCancellation(t *testing.T) {
	class := classifyNATSError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not trip the breaker, got %+v", class)
	}
}

func TestWrapTemporaryMarksRetryableFailures(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(natsgo.ErrNoServers)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for connectivity failure, got %v", wrapped)
	}

	permanent := errors.New("invalid subject")
	if wrapTemporaryIfNeeded(permanent) != permanent {
		t.Fatalf("permanent errors must pass through untouched")
	}
}
