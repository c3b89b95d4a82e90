package preset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

type fakeRepo struct {
	presets map[string]*domain.Preset
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{presets: make(map[string]*domain.Preset)}
}

func (f *fakeRepo) CreatePreset(ctx context.Context, p *domain.Preset) error {
	clone := *p
	f.presets[p.ID] = &clone
	return nil
}

func (f *fakeRepo) UpdatePreset(ctx context.Context, p *domain.Preset) error {
	if _, ok := f.presets[p.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *p
	f.presets[p.ID] = &clone
	return nil
}

func (f *fakeRepo) GetPresetByID(ctx context.Context, id string) (*domain.Preset, error) {
	p, ok := f.presets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeRepo) DeletePreset(ctx context.Context, id string) error {
	if _, ok := f.presets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.presets, id)
	return nil
}

func (f *fakeRepo) SearchPresets(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakeRepo) ListRecentPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakeRepo) ListQuickPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakeRepo) ListCustomPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakeRepo) ListSystemPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakeRepo) FindSystemPreset(ctx context.Context, name string, env domain.Environment, kind domain.APIKind) (*domain.Preset, error) {
	return nil, repository.ErrNotFound
}

func newTestService(repo *fakeRepo) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(repo, logger)
}

func TestUpsertRequiresName(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Upsert(context.Background(), &domain.Preset{Name: "   "})
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestUpsertAssignsIdentityOnCreate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	stored, err := svc.Upsert(context.Background(), &domain.Preset{Name: "New", APIKind: domain.APIKindRest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("create must assign an id")
	}
	if stored.CreatedAt.IsZero() || !stored.CreatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("create must set both timestamps equal: %v / %v", stored.CreatedAt, stored.UpdatedAt)
	}
}

func TestUpsertPreservesCreationTime(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.presets["p1"] = &domain.Preset{ID: "p1", Name: "Old", CreatedAt: created, UpdatedAt: created}

	stored, err := svc.Upsert(context.Background(), &domain.Preset{ID: "p1", Name: "Renamed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.CreatedAt.Equal(created) {
		t.Fatalf("creation time must be preserved, got %v", stored.CreatedAt)
	}
	if !stored.UpdatedAt.After(created) {
		t.Fatalf("update time must advance, got %v", stored.UpdatedAt)
	}
	if repo.presets["p1"].Name != "Renamed" {
		t.Fatalf("update not stored: %+v", repo.presets["p1"])
	}
}

func TestUpsertCreatesWhenIDUnknown(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	stored, err := svc.Upsert(context.Background(), &domain.Preset{ID: "ghost", Name: "Imported"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ID != "ghost" {
		t.Fatalf("caller-supplied id should be kept, got %q", stored.ID)
	}
	if _, ok := repo.presets["ghost"]; !ok {
		t.Fatal("preset should be created under the supplied id")
	}
}
