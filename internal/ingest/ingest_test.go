package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"tracking_service/internal/lib/signature"
	"tracking_service/internal/models"

	"github.com/shopspring/decimal"
)

type fakeStorage struct {
	batches []models.NormalizedBatch
	summary models.IngestSummary
	err     error
}

func (f *fakeStorage) IngestBatch(_ context.Context, batch models.NormalizedBatch) (models.IngestSummary, error) {
	if f.err != nil {
		return models.IngestSummary{}, f.err
	}
	f.batches = append(f.batches, batch)
	return f.summary, nil
}

const testSecret = "test-secret"

func newTestService(st *fakeStorage) *Service {
	svc := New(testSecret, st)
	svc.now = func() time.Time {
		return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestProcessSigned_SignatureEnforcement(t *testing.T) {
	st := &fakeStorage{}
	svc := newTestService(st)

	body := []byte(`{"items":[{"external_id":"123","title":"Chair"}]}`)
	sig := signature.Sign(body, testSecret)

	t.Run("valid signature accepted", func(t *testing.T) {
		if _, err := svc.ProcessSigned(context.Background(), body, sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("tampered body rejected before parsing", func(t *testing.T) {
		before := len(st.batches)

		tampered := []byte(`{"items":[{"external_id":"999","title":"Chair"}]}`)
		_, err := svc.ProcessSigned(context.Background(), tampered, sig)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}

		if len(st.batches) != before {
			t.Error("rejected batch must not reach storage")
		}
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		_, err := svc.ProcessSigned(context.Background(), body, "")
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
	})
}

func TestProcess_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "broken json", raw: `{"items": [`},
		{name: "not an object", raw: `[1, 2, 3]`},
		{name: "null", raw: `null`},
		{name: "empty body", raw: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeStorage{}
			svc := newTestService(st)

			_, err := svc.Process(context.Background(), []byte(tt.raw))
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("err = %v, want ErrInvalidPayload", err)
			}
			if len(st.batches) != 0 {
				t.Error("malformed batch must not reach storage")
			}
		})
	}
}

func TestProcess_NormalizationAndPassthrough(t *testing.T) {
	st := &fakeStorage{summary: models.IngestSummary{Created: 1, Updated: 2, PricePoints: 3}}
	svc := newTestService(st)

	raw := []byte(`{
		"items": [
			{"external_id": "123", "title": "Chair", "price": 500, "currency": "RUB"},
			{"title": "no id, skipped"},
			{"external_id": "124"}
		],
		"target_id": 7,
		"fetched_at": "2024-01-01T00:00:00Z"
	}`)

	summary, err := svc.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary != st.summary {
		t.Errorf("summary = %+v, want %+v", summary, st.summary)
	}

	if len(st.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(st.batches))
	}

	batch := st.batches[0]
	if batch.Source != models.SourceAvito {
		t.Errorf("source = %q, want avito", batch.Source)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("items = %d, want 2 (one skipped)", len(batch.Items))
	}
	if batch.TargetID == nil || *batch.TargetID != 7 {
		t.Error("target_id lost")
	}

	wantCollected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !batch.CollectedAt.Equal(wantCollected) {
		t.Errorf("collected_at = %v, want %v", batch.CollectedAt, wantCollected)
	}

	first := batch.Items[0]
	if first.Price == nil || !first.Price.Equal(decimal.NewFromInt(500)) {
		t.Errorf("price = %v, want 500", first.Price)
	}

	second := batch.Items[1]
	if second.Price != nil {
		t.Error("item without price must carry no price")
	}
}

func TestProcess_StorageErrorPropagates(t *testing.T) {
	wantErr := errors.New("tx failed")
	st := &fakeStorage{err: wantErr}
	svc := newTestService(st)

	_, err := svc.Process(context.Background(), []byte(`{"items":[{"external_id":"1"}]}`))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
