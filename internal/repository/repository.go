package repository

import (
	"context"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
)

// PresetRepository persists request templates.
type PresetRepository interface {
	CreatePreset(ctx context.Context, preset *domain.Preset) error
	UpdatePreset(ctx context.Context, preset *domain.Preset) error
	GetPresetByID(ctx context.Context, id string) (*domain.Preset, error)
	DeletePreset(ctx context.Context, id string) error
	SearchPresets(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error)
	ListRecentPresets(ctx context.Context, limit int) ([]domain.Preset, error)
	ListQuickPresets(ctx context.Context, limit int) ([]domain.Preset, error)
	ListCustomPresets(ctx context.Context, limit int) ([]domain.Preset, error)
	ListSystemPresets(ctx context.Context, limit int) ([]domain.Preset, error)
	FindSystemPreset(ctx context.Context, name string, env domain.Environment, kind domain.APIKind) (*domain.Preset, error)
}

// RunRepository stores the append-only execution audit trail.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.ScenarioRun) error
	GetRunByID(ctx context.Context, id string) (*domain.ScenarioRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]domain.ScenarioRun, error)
	ListRecentErrors(ctx context.Context, limit int) ([]domain.ScenarioRun, error)
}
