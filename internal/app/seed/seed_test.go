package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

type fakePresetRepo struct {
	presets []*domain.Preset
	creates int
	updates int
}

func (f *fakePresetRepo) CreatePreset(ctx context.Context, p *domain.Preset) error {
	clone := *p
	f.presets = append(f.presets, &clone)
	f.creates++
	return nil
}

func (f *fakePresetRepo) UpdatePreset(ctx context.Context, p *domain.Preset) error {
	for i, stored := range f.presets {
		if stored.ID == p.ID {
			clone := *p
			f.presets[i] = &clone
			f.updates++
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePresetRepo) GetPresetByID(ctx context.Context, id string) (*domain.Preset, error) {
	for _, stored := range f.presets {
		if stored.ID == id {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePresetRepo) DeletePreset(ctx context.Context, id string) error { return nil }

func (f *fakePresetRepo) SearchPresets(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakePresetRepo) ListRecentPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakePresetRepo) ListQuickPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakePresetRepo) ListCustomPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakePresetRepo) ListSystemPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	return nil, nil
}

func (f *fakePresetRepo) FindSystemPreset(ctx context.Context, name string, env domain.Environment, kind domain.APIKind) (*domain.Preset, error) {
	for _, stored := range f.presets {
		if stored.IsSystem && stored.Name == name && stored.Environment == env && stored.APIKind == kind {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestEnsureCreatesSystemPresets(t *testing.T) {
	repo := &fakePresetRepo{}
	if err := Ensure(context.Background(), repo, discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 3 {
		t.Fatalf("expected 3 system presets, got %d", repo.creates)
	}
	for _, p := range repo.presets {
		if !p.IsSystem {
			t.Fatalf("seeded preset %q must be marked system", p.Name)
		}
		if p.ID == "" {
			t.Fatalf("seeded preset %q must get an id", p.Name)
		}
	}
}

func TestEnsureUpsertsWithoutDuplicates(t *testing.T) {
	repo := &fakePresetRepo{}
	if err := Ensure(context.Background(), repo, discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstIDs := make(map[string]string)
	firstCreated := make(map[string]time.Time)
	for _, p := range repo.presets {
		firstIDs[p.Name] = p.ID
		firstCreated[p.Name] = p.CreatedAt
	}

	if err := Ensure(context.Background(), repo, discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 3 {
		t.Fatalf("second run must not create, got %d creates", repo.creates)
	}
	if repo.updates != 3 {
		t.Fatalf("second run should refresh all presets, got %d updates", repo.updates)
	}
	if len(repo.presets) != 3 {
		t.Fatalf("expected 3 presets after re-seed, got %d", len(repo.presets))
	}
	for _, p := range repo.presets {
		if firstIDs[p.Name] != p.ID {
			t.Fatalf("preset %q identity must be preserved across seeds", p.Name)
		}
		if !firstCreated[p.Name].Equal(p.CreatedAt) {
			t.Fatalf("preset %q creation time must be preserved", p.Name)
		}
	}
}
