package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.PresetRepository = (*Repository)(nil)
	_ repository.RunRepository    = (*Repository)(nil)
)

const presetColumns = `id, name, api_kind, environment, rest_method, path_or_endpoint,
	soap_action, headers, body_template, variables, notes, tags, is_quick, is_system,
	created_at, updated_at`

// CreatePreset inserts a preset.
func (r *Repository) CreatePreset(ctx context.Context, preset *domain.Preset) error {
	const query = `INSERT INTO presets (id, name, api_kind, environment, rest_method,
		path_or_endpoint, soap_action, headers, body_template, variables, notes, tags,
		is_quick, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query, preset.ID, preset.Name, preset.APIKind,
		preset.Environment, preset.RestMethod, preset.PathOrEndpoint, preset.SoapAction,
		preset.Headers, preset.BodyTemplate, preset.Variables, preset.Notes, preset.Tags,
		preset.IsQuick, preset.IsSystem, preset.CreatedAt, preset.UpdatedAt)
	return err
}

// UpdatePreset rewrites a preset, preserving its identity and creation time.
func (r *Repository) UpdatePreset(ctx context.Context, preset *domain.Preset) error {
	const query = `UPDATE presets SET name = $2, api_kind = $3, environment = $4,
		rest_method = $5, path_or_endpoint = $6, soap_action = $7, headers = $8,
		body_template = $9, variables = $10, notes = $11, tags = $12, is_quick = $13,
		is_system = $14, updated_at = $15
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, preset.ID, preset.Name, preset.APIKind,
		preset.Environment, preset.RestMethod, preset.PathOrEndpoint, preset.SoapAction,
		preset.Headers, preset.BodyTemplate, preset.Variables, preset.Notes, preset.Tags,
		preset.IsQuick, preset.IsSystem, preset.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetPresetByID fetches a preset by identifier.
func (r *Repository) GetPresetByID(ctx context.Context, id string) (*domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets WHERE id = $1`, presetColumns)
	return r.scanPreset(r.pool.QueryRow(ctx, query, id))
}

// DeletePreset removes a preset. Run history survives: the scenario_runs
// foreign key is ON DELETE SET NULL.
func (r *Repository) DeletePreset(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM presets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SearchPresets filters by name/tag substring and api kind.
func (r *Repository) SearchPresets(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets`, presetColumns)
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if strings.TrimSpace(term) != "" {
		args = append(args, "%"+strings.TrimSpace(term)+"%")
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE $%d OR tags::text ILIKE $%d)`, len(args), len(args)))
	}
	if kind != nil {
		args = append(args, *kind)
		conditions = append(conditions, fmt.Sprintf(`api_kind = $%d`, len(args)))
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectPresets(rows)
}

// ListRecentPresets returns the most recently updated presets.
func (r *Repository) ListRecentPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets ORDER BY updated_at DESC LIMIT $1`, presetColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectPresets(rows)
}

// ListQuickPresets returns quick presets ordered by name.
func (r *Repository) ListQuickPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets WHERE is_quick ORDER BY name LIMIT $1`, presetColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectPresets(rows)
}

// ListCustomPresets returns user-owned presets, newest first.
func (r *Repository) ListCustomPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets WHERE NOT is_system ORDER BY updated_at DESC LIMIT $1`, presetColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectPresets(rows)
}

// ListSystemPresets returns seeded presets ordered by name.
func (r *Repository) ListSystemPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets WHERE is_system ORDER BY name LIMIT $1`, presetColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectPresets(rows)
}

// FindSystemPreset locates a seeded preset by its upsert identity.
func (r *Repository) FindSystemPreset(ctx context.Context, name string, env domain.Environment, kind domain.APIKind) (*domain.Preset, error) {
	query := fmt.Sprintf(`SELECT %s FROM presets
		WHERE is_system AND name = $1 AND environment = $2 AND api_kind = $3`, presetColumns)
	return r.scanPreset(r.pool.QueryRow(ctx, query, name, env, kind))
}

func (r *Repository) scanPreset(row pgx.Row) (*domain.Preset, error) {
	var p domain.Preset
	if err := row.Scan(&p.ID, &p.Name, &p.APIKind, &p.Environment, &p.RestMethod,
		&p.PathOrEndpoint, &p.SoapAction, &p.Headers, &p.BodyTemplate, &p.Variables,
		&p.Notes, &p.Tags, &p.IsQuick, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) collectPresets(rows pgx.Rows) ([]domain.Preset, error) {
	presets := make([]domain.Preset, 0)
	for rows.Next() {
		p, err := r.scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, *p)
	}
	return presets, rows.Err()
}
