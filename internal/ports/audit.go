package ports

import (
	"context"
	"time"

	"github.com/jemaat/portal/internal/domain/model"
)

// AuditSink records access events. Implementations must not block the caller for long.
type AuditSink interface {
	Record(ctx context.Context, ev model.AccessEvent) error
}

// AuditReader queries and prunes recorded access events.
type AuditReader interface {
	List(ctx context.Context, opts model.AccessEventListOptions) ([]model.AccessEvent, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
