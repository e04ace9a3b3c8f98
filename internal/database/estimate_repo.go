package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/paintestimator/internal/models"
)

var ErrEstimateNotFound = errors.New("estimate not found")

// Estimate is one successful submission as kept in history.
type Estimate struct {
	ID            string                  `json:"id"`
	ViewID        string                  `json:"view_id"`
	Mode          models.Mode             `json:"mode"`
	PaintableArea float64                 `json:"paintable_area"`
	PaintLiters   float64                 `json:"paint_liters"`
	TotalCost     float64                 `json:"total_cost"`
	RoomCount     int                     `json:"room_count"`
	Result        models.SubmissionResult `json:"result"`
	CreatedAt     time.Time               `json:"created_at"`
}

type EstimateRepository struct {
	db *DB
}

func NewEstimateRepository(db *DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

func NewEstimate(viewID string, res models.SubmissionResult) *Estimate {
	return &Estimate{
		ID:            uuid.New().String(),
		ViewID:        viewID,
		Mode:          res.Mode,
		PaintableArea: res.PaintableAreaSqFt.Value,
		PaintLiters:   res.PaintLiters.Value,
		TotalCost:     res.TotalCost.Value,
		RoomCount:     len(res.Rooms),
		Result:        res,
		CreatedAt:     time.Now().UTC(),
	}
}

func (r *EstimateRepository) Insert(ctx context.Context, e *Estimate) error {
	resultJSON, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO estimates (id, view_id, mode, paintable_area, paint_liters, total_cost, room_count, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ViewID, string(e.Mode), e.PaintableArea, e.PaintLiters, e.TotalCost, e.RoomCount, string(resultJSON), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	return nil
}

// Record stores a normalized result for the view that produced it.
func (r *EstimateRepository) Record(ctx context.Context, viewID string, res models.SubmissionResult) error {
	return r.Insert(ctx, NewEstimate(viewID, res))
}

func (r *EstimateRepository) GetByID(ctx context.Context, id string) (*Estimate, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, view_id, mode, paintable_area, paint_liters, total_cost, room_count, result_json, created_at
		FROM estimates WHERE id = ?`, id)

	e, err := scanEstimate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEstimateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return e, nil
}

// ListRecent returns the newest estimates first, optionally filtered by mode.
func (r *EstimateRepository) ListRecent(ctx context.Context, mode models.Mode, limit int) ([]Estimate, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, view_id, mode, paintable_area, paint_liters, total_cost, room_count, result_json, created_at
		FROM estimates`
	args := []interface{}{}
	if mode != "" {
		query += " WHERE mode = ?"
		args = append(args, string(mode))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	estimates := []Estimate{}
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		estimates = append(estimates, *e)
	}
	return estimates, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEstimate(s scanner) (*Estimate, error) {
	var e Estimate
	var mode, resultJSON string
	if err := s.Scan(&e.ID, &e.ViewID, &mode, &e.PaintableArea, &e.PaintLiters,
		&e.TotalCost, &e.RoomCount, &resultJSON, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Mode = models.Mode(mode)
	if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &e, nil
}
