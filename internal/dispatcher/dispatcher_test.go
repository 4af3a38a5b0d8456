package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"tracking_service/internal/models"
)

type fakePostgres struct {
	targets []models.ParseTarget
	err     error
	limit   int
}

func (f *fakePostgres) ClaimDueTargets(_ context.Context, limit int) ([]models.ParseTarget, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.targets, nil
}

type fakeRabbit struct {
	published []any
	err       error
}

func (f *fakeRabbit) PublishJSON(_ context.Context, msg any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchDue(t *testing.T) {
	pg := &fakePostgres{
		targets: []models.ParseTarget{
			{ID: 1, Source: models.SourceAvito, Mode: models.ModeListing, URL: "https://www.avito.ru/a"},
			{ID: 2, Source: models.SourceAvito, Mode: models.ModeListing, URL: "https://www.avito.ru/b", City: "spb"},
		},
	}
	rabbit := &fakeRabbit{}

	d := New(discardLogger(), pg, rabbit, time.Minute, 50)
	d.dispatchDue(context.Background())

	if pg.limit != 50 {
		t.Errorf("claim limit = %d, want 50", pg.limit)
	}
	if len(rabbit.published) != 2 {
		t.Fatalf("published = %d, want 2", len(rabbit.published))
	}

	task := rabbit.published[1].(models.ParseTask)
	if task.TargetID != 2 || task.City != "spb" {
		t.Errorf("unexpected task: %+v", task)
	}
}

func TestDispatchDue_ClaimErrorPublishesNothing(t *testing.T) {
	pg := &fakePostgres{err: errors.New("db down")}
	rabbit := &fakeRabbit{}

	d := New(discardLogger(), pg, rabbit, time.Minute, 50)
	d.dispatchDue(context.Background())

	if len(rabbit.published) != 0 {
		t.Error("claim failure must not publish tasks")
	}
}

func TestDispatchDue_PublishErrorDoesNotStopBatch(t *testing.T) {
	pg := &fakePostgres{
		targets: []models.ParseTarget{{ID: 1}, {ID: 2}},
	}
	rabbit := &fakeRabbit{err: errors.New("broker down")}

	d := New(discardLogger(), pg, rabbit, time.Minute, 10)

	// паника/остановка недопустимы; цели вернутся в очередь через poll_interval
	d.dispatchDue(context.Background())
}
