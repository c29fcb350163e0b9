package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/adapters/devauth"
	"github.com/jemaat/portal/internal/adapters/memory"
	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/ports"
)

func newTestContext(stdin string) (*commandContext, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.AppConfig{},
		Out:    out,
		In:     strings.NewReader(stdin),
	}, out
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	assert.Contains(t, out, "Usage: portal-admin <command> [flags]")
	assert.Less(t, strings.Index(out, "audit-list"), strings.Index(out, "migrate"))
	for name := range commands() {
		assert.Contains(t, out, name)
	}
}

func TestRunNormalizeRole(t *testing.T) {
	tests := []struct {
		raw     string
		role    domainauth.Role
		landing string
	}{
		{raw: "superadmin", role: domainauth.RoleSuperAdmin, landing: "/super-admin/dashboard"},
		{raw: "Admin Majelis", role: domainauth.RoleAdmin, landing: "/admin/dashboard"},
		{raw: "ADMIN", role: domainauth.RoleRegularUser, landing: "/"},
		{raw: "", role: domainauth.RoleRegularUser, landing: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cmdCtx, out := newTestContext("")
			require.NoError(t, runNormalizeRole(cmdCtx, []string{tt.raw}))
			assert.Contains(t, out.String(), "role:    "+string(tt.role))
			assert.Contains(t, out.String(), "landing: "+tt.landing)
		})
	}

	cmdCtx, _ := newTestContext("")
	require.Error(t, runNormalizeRole(cmdCtx, nil))
}

func TestRunLanding(t *testing.T) {
	cmdCtx, out := newTestContext("")
	require.NoError(t, runLanding(cmdCtx, []string{"admin"}))
	assert.Equal(t, "/admin/dashboard\n", out.String())

	require.ErrorIs(t, runLanding(cmdCtx, []string{"superadmin"}), domainauth.ErrInvalidRole)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"-timeout", "0s"})
	require.Error(t, err)
}

func TestCommandsNeedInfrastructure(t *testing.T) {
	cmdCtx, _ := newTestContext("")

	require.ErrorIs(t, runMigrations(cmdCtx, nil), errDBDisabled)
	require.ErrorIs(t, runAuditList(cmdCtx, nil), errDBDisabled)
	require.ErrorIs(t, runClearCredential(cmdCtx, []string{"c-1"}), errRedisDisabled)
}

type fakeAuditReader struct {
	events []model.AccessEvent
	last   model.AccessEventListOptions
	cutoff time.Time
	purged int64
	err    error
}

func (f *fakeAuditReader) List(_ context.Context, opts model.AccessEventListOptions) ([]model.AccessEvent, error) {
	f.last = opts
	return f.events, f.err
}

func (f *fakeAuditReader) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.purged, f.err
}

var _ ports.AuditReader = (*fakeAuditReader)(nil)

func TestAuditListOptions(t *testing.T) {
	opts, err := parseAuditListFlags([]string{"-limit", "5", "-kind", "Login_Failed", "-client-id", "c-9"})
	require.NoError(t, err)

	lo, err := opts.toListOptions()
	require.NoError(t, err)
	assert.Equal(t, 5, lo.Limit)
	require.NotNil(t, lo.Kind)
	assert.Equal(t, model.AccessLoginFailed, *lo.Kind)
	require.NotNil(t, lo.ClientID)
	assert.Equal(t, "c-9", *lo.ClientID)

	_, err = auditListOptions{Limit: 1, Kind: "bogus"}.toListOptions()
	require.Error(t, err)

	_, err = parseAuditListFlags([]string{"-limit", "0"})
	require.Error(t, err)
}

func TestListAuditEvents(t *testing.T) {
	at := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	reader := &fakeAuditReader{events: []model.AccessEvent{
		{ID: "e1", ClientID: "c-1", Email: "admin@example.com", Role: "admin", Kind: model.AccessLoginSucceeded, CreatedAt: at},
		{ID: "e2", ClientID: "c-2", Kind: model.AccessLoginFailed, Detail: "bad password", CreatedAt: at},
	}}

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listAuditEvents(context.Background(), reader, model.AccessEventListOptions{Offset: 10}, false, &out))
		s := out.String()
		assert.Contains(t, s, "2025-03-02T08:30:00Z")
		assert.Contains(t, s, "admin@example.com")
		assert.Contains(t, s, "bad password")
		assert.Contains(t, s, "2 event(s), offset 10")
	})

	t.Run("json lines", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listAuditEvents(context.Background(), reader, model.AccessEventListOptions{}, true, &out))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[1], `"kind":"login_failed"`)
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listAuditEvents(context.Background(), &fakeAuditReader{}, model.AccessEventListOptions{}, false, &out))
		assert.Equal(t, "No access events found.\n", out.String())
	})

	t.Run("error", func(t *testing.T) {
		err := listAuditEvents(context.Background(), &fakeAuditReader{err: errors.New("db down")},
			model.AccessEventListOptions{}, false, io.Discard)
		require.Error(t, err)
	})
}

func TestAuditPurge(t *testing.T) {
	_, err := parseAuditPurgeFlags(nil)
	require.Error(t, err)

	opts, err := parseAuditPurgeFlags([]string{"-older-than", "720h", "-yes"})
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, opts.OlderThan)
	assert.True(t, opts.Yes)

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := &fakeAuditReader{purged: 12}
	var out bytes.Buffer
	require.NoError(t, purgeAuditEvents(context.Background(), reader, cutoff, &out))
	assert.Equal(t, cutoff, reader.cutoff)
	assert.Equal(t, "Deleted 12 access event(s).\n", out.String())
}

func TestAuditPurge_DeclinedPrompt(t *testing.T) {
	cmdCtx, out := newTestContext("n\n")
	err := runAuditPurge(cmdCtx, []string{"-older-than", "24h"})
	require.EqualError(t, err, "aborted by user")
	assert.Contains(t, out.String(), "About to delete access events recorded before")
}

func TestConfirmAction(t *testing.T) {
	cmdCtx, _ := newTestContext("yes\n")
	require.NoError(t, confirmAction(cmdCtx, false, "go?"))

	cmdCtx, _ = newTestContext("")
	require.Error(t, confirmAction(cmdCtx, false, "go?"))
	require.NoError(t, confirmAction(cmdCtx, true, "go?"))
}

func TestClearCredential(t *testing.T) {
	store := memory.NewCredentialStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "c-1", "token-abc", time.Hour))

	var out bytes.Buffer
	require.NoError(t, clearCredential(ctx, store, "c-1", &out))
	assert.Contains(t, out.String(), "client c-1")

	_, err := store.Get(ctx, "c-1")
	require.ErrorIs(t, err, ports.ErrNoCredential)
}

func TestCheckLogin(t *testing.T) {
	users, err := devauth.DefaultUsers()
	require.NoError(t, err)
	backend, err := devauth.NewProvider(devauth.Config{Users: users})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, checkLogin(context.Background(), backend, "admin@localhost", "password", &out))
	s := out.String()
	assert.Contains(t, s, `raw role: "admin_majelis"`)
	assert.Contains(t, s, "role:     admin")
	assert.Contains(t, s, "landing:  /admin/dashboard")

	err = checkLogin(context.Background(), backend, "admin@localhost", "salah", io.Discard)
	require.Error(t, err)
	assert.True(t, domainauth.IsInvalidCredentials(err))
}

func TestReadPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")
	cmdCtx, out := newTestContext("rahasia\n")
	pw, err := readPassword(cmdCtx)
	require.NoError(t, err)
	assert.Equal(t, "rahasia", pw)
	assert.Equal(t, "Password: ", out.String())

	t.Setenv(passwordEnv, "dari-env")
	pw, err = readPassword(cmdCtx)
	require.NoError(t, err)
	assert.Equal(t, "dari-env", pw)
}
