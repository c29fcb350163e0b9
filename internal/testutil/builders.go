// Package testutil provides testing utilities and helpers for the portal.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/jemaat/portal/internal/domain/model"
)

// AccessEventBuilder provides a fluent interface for building access events in tests.
type AccessEventBuilder struct {
	ev model.AccessEvent
}

// NewAccessEvent creates a builder for a successful login at TestTime.
func NewAccessEvent() *AccessEventBuilder {
	return &AccessEventBuilder{ev: model.AccessEvent{
		ID:        uuid.NewString(),
		ClientID:  uuid.NewString(),
		Kind:      model.AccessLoginSucceeded,
		CreatedAt: TestTime(),
	}}
}

// WithKind sets the event kind.
func (b *AccessEventBuilder) WithKind(k model.AccessEventKind) *AccessEventBuilder {
	b.ev.Kind = k
	return b
}

// WithClient sets the client id.
func (b *AccessEventBuilder) WithClient(id string) *AccessEventBuilder {
	b.ev.ClientID = id
	return b
}

// WithUser sets the user fields.
func (b *AccessEventBuilder) WithUser(id, email, role string) *AccessEventBuilder {
	b.ev.UserID, b.ev.Email, b.ev.Role = id, email, role
	return b
}

// WithDetail sets the detail text.
func (b *AccessEventBuilder) WithDetail(d string) *AccessEventBuilder {
	b.ev.Detail = d
	return b
}

// At sets the creation time.
func (b *AccessEventBuilder) At(t time.Time) *AccessEventBuilder {
	b.ev.CreatedAt = t
	return b
}

// Build returns the event.
func (b *AccessEventBuilder) Build() model.AccessEvent {
	return b.ev
}
