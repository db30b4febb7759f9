package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/google/uuid"
)

// --- Check-in Operations ---

const checkinColumns = `id, scheduled_at, status, description, last_triggered_at, completed_at, created_at, updated_at`

func scanCheckin(row rowScanner) (*models.Checkin, error) {
	c := &models.Checkin{}
	var description sql.NullString
	var lastTriggeredAt, completedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.ScheduledAt, &c.Status, &description, &lastTriggeredAt, &completedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = description.String
	if lastTriggeredAt.Valid {
		c.LastTriggeredAt = &lastTriggeredAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return c, nil
}

func (s *Store) localCheckin(c *models.Checkin) (*models.Checkin, error) {
	var err error
	if c.ScheduledAt, err = s.tz.ToLocal(c.ScheduledAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = s.tz.ToLocal(c.CreatedAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = s.tz.ToLocal(c.UpdatedAt); err != nil {
		return nil, err
	}
	if c.LastTriggeredAt, err = s.tz.ToLocalPtr(c.LastTriggeredAt); err != nil {
		return nil, err
	}
	if c.CompletedAt, err = s.tz.ToLocalPtr(c.CompletedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCheckin inserts a check-in. Only ScheduledAt and Description are taken
// from in; the status is always scheduled.
func (s *Store) CreateCheckin(ctx context.Context, in models.Checkin) (*models.Checkin, error) {
	if in.ScheduledAt.IsZero() {
		return nil, models.NewValidationError("scheduled_at", "is required")
	}

	now := s.tz.Now()
	c := &models.Checkin{
		ID:          uuid.New().String(),
		ScheduledAt: in.ScheduledAt.UTC(),
		Description: strings.TrimSpace(in.Description),
		Status:      models.CheckinStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkins (id, scheduled_at, status, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ScheduledAt, c.Status, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert checkin: %w", err)
	}
	return s.localCheckin(c)
}

// GetCheckin retrieves a check-in by ID.
func (s *Store) GetCheckin(ctx context.Context, id string) (*models.Checkin, error) {
	c, err := getCheckin(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.localCheckin(c)
}

func getCheckin(ctx context.Context, q queryRower, id string) (*models.Checkin, error) {
	c, err := scanCheckin(q.QueryRowContext(ctx, `SELECT `+checkinColumns+` FROM checkins WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkin %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query checkin: %w", err)
	}
	return c, nil
}

// ListCheckins returns check-ins with the given status, earliest first.
// Records due at the same instant keep insertion order.
func (s *Store) ListCheckins(ctx context.Context, status models.CheckinStatus) ([]models.Checkin, error) {
	if !status.IsValid() {
		return nil, models.NewValidationError("status", "unknown checkin status %q", status)
	}
	return s.queryCheckins(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE status = ? ORDER BY scheduled_at ASC, rowid ASC`,
		status,
	)
}

// ListScheduledDueBefore returns scheduled check-ins due strictly before t.
func (s *Store) ListScheduledDueBefore(ctx context.Context, t time.Time) ([]models.Checkin, error) {
	return s.queryCheckins(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE status = ? AND scheduled_at < ? ORDER BY scheduled_at ASC, rowid ASC`,
		models.CheckinStatusScheduled, t.UTC(),
	)
}

func (s *Store) queryCheckins(ctx context.Context, query string, args ...interface{}) ([]models.Checkin, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var checkins []models.Checkin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		if c, err = s.localCheckin(c); err != nil {
			return nil, err
		}
		checkins = append(checkins, *c)
	}
	return checkins, rows.Err()
}

// CheckinUpdate lists the fields UpdateCheckin may change. Nil fields are left alone.
type CheckinUpdate struct {
	Status          *models.CheckinStatus
	Description     *string
	LastTriggeredAt *time.Time
	CompletedAt     *time.Time
}

// UpdateCheckin applies upd to a check-in and returns the stored result.
// An unknown status rejects the whole update.
func (s *Store) UpdateCheckin(ctx context.Context, id string, upd CheckinUpdate) (*models.Checkin, error) {
	if upd.Status != nil && !upd.Status.IsValid() {
		return nil, models.NewValidationError("status", "unknown checkin status %q", *upd.Status)
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{s.tz.Now()}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*upd.Description))
	}
	if upd.LastTriggeredAt != nil {
		sets = append(sets, "last_triggered_at = ?")
		args = append(args, utc(upd.LastTriggeredAt))
	}
	if upd.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, utc(upd.CompletedAt))
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE checkins SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update checkin: %w", err)
	}
	if err := expectAffected(result, "checkin", id); err != nil {
		return nil, err
	}

	c, err := getCheckin(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.localCheckin(c)
}

// DeleteCheckin removes a check-in.
func (s *Store) DeleteCheckin(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM checkins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkin: %w", err)
	}
	return expectAffected(result, "checkin", id)
}

// MarkOverdueScheduledAsSkipped moves every scheduled check-in due strictly
// before now to skipped and returns how many were changed.
func (s *Store) MarkOverdueScheduledAsSkipped(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE checkins SET status = ?, updated_at = ? WHERE status = ? AND scheduled_at < ?`,
		models.CheckinStatusSkipped, s.tz.Now(), models.CheckinStatusScheduled, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("skip overdue checkins: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}
