package ingestHandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tracking_service/internal/ingest"
	"tracking_service/internal/models"
)

type fakeIngestor struct {
	summary models.IngestSummary
	err     error
	gotRaw  []byte
	gotSig  string
	calls   int
}

func (f *fakeIngestor) ProcessSigned(_ context.Context, raw []byte, sig string) (models.IngestSummary, error) {
	f.calls++
	f.gotRaw = raw
	f.gotSig = sig
	if f.err != nil {
		return models.IngestSummary{}, f.err
	}
	return f.summary, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngestHandler(t *testing.T) {
	tests := []struct {
		name       string
		ingestor   *fakeIngestor
		body       string
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name: "accepted batch",
			ingestor: &fakeIngestor{
				summary: models.IngestSummary{Created: 1, Updated: 0, PricePoints: 1},
			},
			body:       `{"items":[{"external_id":"123","title":"Chair","price":500,"currency":"RUB"}],"target_id":7,"fetched_at":"2024-01-01T00:00:00Z"}`,
			wantStatus: http.StatusAccepted,
			wantBody: map[string]any{
				"status":       "accepted",
				"created":      float64(1),
				"updated":      float64(0),
				"price_points": float64(1),
			},
		},
		{
			name:       "invalid signature",
			ingestor:   &fakeIngestor{err: ingest.ErrInvalidSignature},
			body:       `{"items":[]}`,
			wantStatus: http.StatusUnauthorized,
			wantBody:   map[string]any{"detail": "Invalid signature"},
		},
		{
			name:       "malformed payload",
			ingestor:   &fakeIngestor{err: ingest.ErrInvalidPayload},
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"detail": "Invalid JSON"},
		},
		{
			name:       "storage failure",
			ingestor:   &fakeIngestor{err: errors.New("tx failed")},
			body:       `{"items":[]}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"detail": "Internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(discardLogger(), tt.ingestor)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/avito", strings.NewReader(tt.body))
			req.Header.Set("X-Signature", "sig")
			rec := httptest.NewRecorder()

			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var got map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid response body: %v", err)
			}

			for key, want := range tt.wantBody {
				if got[key] != want {
					t.Errorf("body[%q] = %v, want %v", key, got[key], want)
				}
			}
		})
	}
}

func TestIngestHandler_PassesRawBodyAndSignature(t *testing.T) {
	ingestor := &fakeIngestor{}
	handler := New(discardLogger(), ingestor)

	body := `{"items":[],"source":"avito"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/avito", strings.NewReader(body))
	req.Header.Set("X-Signature", "abc123")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if ingestor.calls != 1 {
		t.Fatalf("calls = %d, want 1", ingestor.calls)
	}
	if string(ingestor.gotRaw) != body {
		t.Errorf("raw body altered: %q", ingestor.gotRaw)
	}
	if ingestor.gotSig != "abc123" {
		t.Errorf("signature = %q, want abc123", ingestor.gotSig)
	}
}
