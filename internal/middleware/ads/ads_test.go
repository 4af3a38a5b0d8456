package ads

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tracking_service/internal/models"
	"tracking_service/internal/storage"
)

type cacheKey struct {
	adID    int64
	ownerID int64
}

type fakeRedis struct {
	ads     map[cacheKey]models.AdWithHistory
	saved   []cacheKey
	err     error
	saveErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{ads: map[cacheKey]models.AdWithHistory{}}
}

func (f *fakeRedis) SaveAd(_ context.Context, ownerID int64, ad models.AdWithHistory) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	key := cacheKey{adID: ad.Ad.ID, ownerID: ownerID}
	f.ads[key] = ad
	f.saved = append(f.saved, key)
	return nil
}

func (f *fakeRedis) Ad(_ context.Context, adID, ownerID int64) (models.AdWithHistory, error) {
	if f.err != nil {
		return models.AdWithHistory{}, f.err
	}
	ad, ok := f.ads[cacheKey{adID: adID, ownerID: ownerID}]
	if !ok {
		return models.AdWithHistory{}, storage.ErrAdNotFound
	}
	return ad, nil
}

type fakePostgres struct {
	ownerID  int64 // владелец цели, через которую найдено объявление
	ad       models.Ad
	points   []models.PricePoint
	err      error
	calls    int
	gotOwner int64
}

func (f *fakePostgres) AdByID(_ context.Context, adID, ownerID int64) (models.Ad, error) {
	f.calls++
	f.gotOwner = ownerID
	if f.err != nil {
		return models.Ad{}, f.err
	}
	if ownerID != f.ownerID {
		return models.Ad{}, storage.ErrAdNotFound
	}
	return f.ad, nil
}

func (f *fakePostgres) PricePoints(_ context.Context, adID int64, limit int64) ([]models.PricePoint, error) {
	return f.points, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdByID_CacheHit(t *testing.T) {
	cached := models.AdWithHistory{Ad: models.Ad{ID: 1, Title: "Chair"}}
	redis := newFakeRedis()
	redis.ads[cacheKey{adID: 1, ownerID: 5}] = cached
	pg := &fakePostgres{ownerID: 5}

	op := New(discardLogger(), pg, redis)

	got, err := op.AdByID(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ad.Title != "Chair" {
		t.Errorf("title = %q", got.Ad.Title)
	}
	if pg.calls != 0 {
		t.Error("cache hit must not touch postgres")
	}
}

func TestAdByID_CacheMissFillsCache(t *testing.T) {
	redis := newFakeRedis()
	pg := &fakePostgres{
		ownerID: 5,
		ad:      models.Ad{ID: 2, Title: "Table"},
		points:  []models.PricePoint{{Ad_id: 2}},
	}

	op := New(discardLogger(), pg, redis)

	got, err := op.AdByID(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ad.Title != "Table" {
		t.Errorf("title = %q", got.Ad.Title)
	}
	if len(got.Prices) != 1 {
		t.Errorf("prices = %d, want 1", len(got.Prices))
	}
	if len(redis.saved) != 1 {
		t.Fatal("cache miss must fill the cache")
	}
	if redis.saved[0] != (cacheKey{adID: 2, ownerID: 5}) {
		t.Errorf("cache key = %+v, must include the owner", redis.saved[0])
	}
	if pg.gotOwner != 5 {
		t.Errorf("postgres got owner %d, want 5", pg.gotOwner)
	}
}

func TestAdByID_ForeignOwnerNotFound(t *testing.T) {
	// объявление принадлежит целям пользователя 5; пользователь 6 получает 404
	redis := newFakeRedis()
	pg := &fakePostgres{ownerID: 5, ad: models.Ad{ID: 3, Title: "Sofa"}}

	op := New(discardLogger(), pg, redis)

	_, err := op.AdByID(context.Background(), 3, 6)
	if !errors.Is(err, storage.ErrAdNotFound) {
		t.Fatalf("err = %v, want ErrAdNotFound", err)
	}
	if len(redis.saved) != 0 {
		t.Error("foreign ad must not be cached")
	}
}

func TestAdByID_CacheIsolatedPerOwner(t *testing.T) {
	// горячий кэш одного пользователя не должен отдаваться другому
	redis := newFakeRedis()
	pg := &fakePostgres{ownerID: 5, ad: models.Ad{ID: 4, Title: "Lamp"}}

	op := New(discardLogger(), pg, redis)

	if _, err := op.AdByID(context.Background(), 4, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := op.AdByID(context.Background(), 4, 6)
	if !errors.Is(err, storage.ErrAdNotFound) {
		t.Fatalf("err = %v, want ErrAdNotFound for the foreign owner", err)
	}
}

func TestAdByID_NotFoundPropagates(t *testing.T) {
	redis := newFakeRedis()
	pg := &fakePostgres{ownerID: 5, err: storage.ErrAdNotFound}

	op := New(discardLogger(), pg, redis)

	_, err := op.AdByID(context.Background(), 3, 5)
	if !errors.Is(err, storage.ErrAdNotFound) {
		t.Fatalf("err = %v, want ErrAdNotFound", err)
	}
}

func TestAdByID_CacheWriteFailureIsNonFatal(t *testing.T) {
	redis := newFakeRedis()
	redis.saveErr = errors.New("redis down")
	pg := &fakePostgres{ownerID: 5, ad: models.Ad{ID: 7, Title: "Desk"}}

	op := New(discardLogger(), pg, redis)

	got, err := op.AdByID(context.Background(), 7, 5)
	if err != nil {
		t.Fatalf("cache write failure must not fail the read: %v", err)
	}
	if got.Ad.Title != "Desk" {
		t.Errorf("title = %q", got.Ad.Title)
	}
}

func TestAdByID_RedisFailurePropagates(t *testing.T) {
	redis := newFakeRedis()
	redis.err = errors.New("redis down")
	pg := &fakePostgres{ownerID: 5}

	op := New(discardLogger(), pg, redis)

	if _, err := op.AdByID(context.Background(), 4, 5); err == nil {
		t.Fatal("expected error")
	}
}
