package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
)

const runColumns = `id, preset_id, api_kind, environment, request_redacted,
	response_redacted, http_status, soap_fault, latency_ms, correlation_id,
	ticket_number, created_at`

// CreateRun appends one audit record. Runs are never updated or deleted.
func (r *Repository) CreateRun(ctx context.Context, run *domain.ScenarioRun) error {
	const query = `INSERT INTO scenario_runs (id, preset_id, api_kind, environment,
		request_redacted, response_redacted, http_status, soap_fault, latency_ms,
		correlation_id, ticket_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query, run.ID, run.PresetID, run.APIKind, run.Environment,
		run.RequestRedacted, run.ResponseRedacted, run.HTTPStatus, run.SoapFault,
		run.LatencyMs, run.CorrelationID, run.TicketNumber, run.CreatedAt)
	return err
}

// GetRunByID fetches one audit record.
func (r *Repository) GetRunByID(ctx context.Context, id string) (*domain.ScenarioRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM scenario_runs WHERE id = $1`, runColumns)
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// ListRecentRuns returns the newest runs first.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM scenario_runs ORDER BY created_at DESC LIMIT $1`, runColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectRuns(rows)
}

// ListRecentErrors returns the newest failed runs. A run failed when the
// gateway answered >= 400, the SOAP body carried a fault, or the request
// never reached the gateway at all (no status recorded).
func (r *Repository) ListRecentErrors(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM scenario_runs
		WHERE http_status IS NULL OR http_status >= 400 OR soap_fault IS TRUE
		ORDER BY created_at DESC LIMIT $1`, runColumns)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectRuns(rows)
}

func (r *Repository) scanRun(row pgx.Row) (*domain.ScenarioRun, error) {
	var run domain.ScenarioRun
	if err := row.Scan(&run.ID, &run.PresetID, &run.APIKind, &run.Environment,
		&run.RequestRedacted, &run.ResponseRedacted, &run.HTTPStatus, &run.SoapFault,
		&run.LatencyMs, &run.CorrelationID, &run.TicketNumber, &run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *Repository) collectRuns(rows pgx.Rows) ([]domain.ScenarioRun, error) {
	runs := make([]domain.ScenarioRun, 0)
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
