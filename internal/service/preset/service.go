package preset

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

// ErrNameRequired rejects presets saved without a name.
var ErrNameRequired = errors.New("preset name is required")

// Service manages the stored request template library.
type Service struct {
	presets repository.PresetRepository
	logger  *slog.Logger
}

// New constructs a Service.
func New(presets repository.PresetRepository, logger *slog.Logger) Service {
	return Service{presets: presets, logger: logger}
}

// Get fetches one preset.
func (s Service) Get(ctx context.Context, id string) (*domain.Preset, error) {
	return s.presets.GetPresetByID(ctx, id)
}

// Search filters presets by name/tag substring and api kind.
func (s Service) Search(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error) {
	return s.presets.SearchPresets(ctx, term, kind)
}

// Recent returns the most recently updated presets.
func (s Service) Recent(ctx context.Context, limit int) ([]domain.Preset, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.presets.ListRecentPresets(ctx, limit)
}

// Quick returns the quick preset shortcuts.
func (s Service) Quick(ctx context.Context, limit int) ([]domain.Preset, error) {
	if limit <= 0 {
		limit = 6
	}
	return s.presets.ListQuickPresets(ctx, limit)
}

// Custom returns user-owned presets, newest first.
func (s Service) Custom(ctx context.Context, limit int) ([]domain.Preset, error) {
	if limit <= 0 {
		limit = 6
	}
	return s.presets.ListCustomPresets(ctx, limit)
}

// System returns the seeded presets.
func (s Service) System(ctx context.Context, limit int) ([]domain.Preset, error) {
	if limit <= 0 {
		limit = 6
	}
	return s.presets.ListSystemPresets(ctx, limit)
}

// Upsert creates or rewrites a preset. Identity and creation time are
// preserved on update.
func (s Service) Upsert(ctx context.Context, preset *domain.Preset) (*domain.Preset, error) {
	if strings.TrimSpace(preset.Name) == "" {
		return nil, ErrNameRequired
	}
	now := time.Now().UTC()
	if preset.ID == "" {
		preset.ID = uuid.NewString()
		preset.CreatedAt = now
		preset.UpdatedAt = now
		if err := s.presets.CreatePreset(ctx, preset); err != nil {
			return nil, err
		}
		s.logger.Info("preset created", "preset_id", preset.ID, "name", preset.Name)
		return preset, nil
	}

	existing, err := s.presets.GetPresetByID(ctx, preset.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		preset.CreatedAt = now
		preset.UpdatedAt = now
		if err := s.presets.CreatePreset(ctx, preset); err != nil {
			return nil, err
		}
		return preset, nil
	}

	preset.CreatedAt = existing.CreatedAt
	preset.UpdatedAt = now
	if err := s.presets.UpdatePreset(ctx, preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// Delete removes a preset. Run history keeps its rows; the store clears the
// preset reference instead of cascading.
func (s Service) Delete(ctx context.Context, id string) error {
	return s.presets.DeletePreset(ctx, id)
}

// NewID returns a fresh preset identifier.
func NewID() string {
	return uuid.NewString()
}
