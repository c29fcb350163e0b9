package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jemaat/portal/internal/data/database"
	"github.com/jemaat/portal/internal/data/pgxutil"
	"github.com/jemaat/portal/internal/domain/model"
	apperrors "github.com/jemaat/portal/internal/errors"
	"github.com/jemaat/portal/internal/ports"
)

var accessEventColumns = []string{"id", "client_id", "user_id", "email", "role", "kind", "detail", "created_at"}

// AuditRepo stores access events in Postgres.
type AuditRepo struct {
	DB  *sql.DB
	now func() time.Time
}

var (
	_ ports.AuditSink   = (*AuditRepo)(nil)
	_ ports.AuditReader = (*AuditRepo)(nil)
)

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db, now: time.Now}
}

// Record inserts ev. A missing ID or timestamp is filled in.
func (r *AuditRepo) Record(ctx context.Context, ev model.AccessEvent) error {
	if r.DB == nil {
		return ErrNoDatabase
	}
	if !ev.Kind.Valid() {
		return apperrors.ValidationField(fmt.Sprintf("unknown access event kind %q", ev.Kind), "kind")
	}
	ev.Normalize()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO access_events (id, client_id, user_id, email, role, kind, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.ClientID, ev.UserID, ev.Email, ev.Role, string(ev.Kind), ev.Detail, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record access event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns events newest first.
func (r *AuditRepo) List(ctx context.Context, opts model.AccessEventListOptions) ([]model.AccessEvent, error) {
	if r.DB == nil {
		return nil, ErrNoDatabase
	}

	q := database.NewListQuery("access_events", accessEventColumns...).
		Order("created_at", true).
		Page(opts.EffectiveLimit(), max(opts.Offset, 0))
	if opts.Kind != nil {
		q.Where(database.Where("kind", database.Equal, string(*opts.Kind)))
	}
	if opts.ClientID != nil {
		q.Where(database.Where("client_id", database.Equal, *opts.ClientID))
	}
	if opts.Since != nil {
		q.Where(database.Where("created_at", database.GreaterThanOrEqual, opts.Since.UTC()))
	}

	query, args := q.Build()
	events, err := pgxutil.Collect[model.AccessEvent](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access events: %w", apperrors.MapDBError(err))
	}
	if events == nil {
		events = []model.AccessEvent{}
	}
	return events, nil
}

// PurgeOlderThan deletes events created before cutoff and returns how many were removed.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.DB == nil {
		return 0, ErrNoDatabase
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM access_events WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge access events: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge access events: %w", err)
	}
	return n, nil
}

// NopAuditSink discards events. Used when no database is configured.
type NopAuditSink struct{}

// Record implements ports.AuditSink.
func (NopAuditSink) Record(context.Context, model.AccessEvent) error { return nil }

// List implements ports.AuditReader and always returns no events.
func (NopAuditSink) List(context.Context, model.AccessEventListOptions) ([]model.AccessEvent, error) {
	return []model.AccessEvent{}, nil
}

// PurgeOlderThan implements ports.AuditReader.
func (NopAuditSink) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
