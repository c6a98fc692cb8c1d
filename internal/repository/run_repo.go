package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
)

// RunRepository archives finished generation runs
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create stores a finished run's summary
func (r *RunRepository) Create(rec *domain.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var completed any
	if rec.CompletedAt != nil {
		completed = *rec.CompletedAt
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (id, session_id, topic, model, status, page_count, valid_pages, log, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SessionID, rec.Topic, rec.Model, string(rec.Status),
		rec.PageCount, rec.ValidPages, rec.Log, rec.CreatedAt, completed)

	return err
}

// Get retrieves a run record by ID
func (r *RunRepository) Get(id string) (*domain.RunRecord, error) {
	rec := &domain.RunRecord{}
	var status string
	var completed sql.NullTime

	err := r.db.QueryRow(`
		SELECT id, session_id, topic, model, status, page_count, valid_pages, log, created_at, completed_at
		FROM runs WHERE id = ?
	`, id).Scan(&rec.ID, &rec.SessionID, &rec.Topic, &rec.Model, &status,
		&rec.PageCount, &rec.ValidPages, &rec.Log, &rec.CreatedAt, &completed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Status = domain.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}

	return rec, nil
}

// List returns the most recent run records, newest first
func (r *RunRepository) List(limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, session_id, topic, model, status, page_count, valid_pages, log, created_at, completed_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.RunRecord
	for rows.Next() {
		rec := &domain.RunRecord{}
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Topic, &rec.Model, &status,
			&rec.PageCount, &rec.ValidPages, &rec.Log, &rec.CreatedAt, &completed); err != nil {
			return nil, err
		}
		rec.Status = domain.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			rec.CompletedAt = &t
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteOlderThan prunes archive rows past the retention window
func (r *RunRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
