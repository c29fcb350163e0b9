package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	authmocks "github.com/jemaat/portal/internal/mocks/auth"
)

func TestSessionRegistry_CreatesOncePerClient(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.creds.Set(context.Background(), "c1", authmocks.TokenFor("admin@example.com"), 0))
	reg := NewSessionRegistry(f.opts)

	var wg sync.WaitGroup
	got := make([]*Session, 10)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = reg.Session(context.Background(), "c1")
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, reg.Len())

	s := reg.Await(context.Background(), "c1", time.Second)
	require.True(t, s.Current().IsAuthenticated())

	_, whoAmI, _, _ := f.backend.Calls()
	assert.Equal(t, 1, whoAmI)
}

func TestSessionRegistry_AwaitTimesOutUnresolved(t *testing.T) {
	f := newSessionFixture(t)
	release := make(chan struct{})
	defer close(release)
	f.backend.WhoAmIFunc = func(context.Context, string) (domainauth.Profile, error) {
		<-release
		return domainauth.Profile{ID: "1"}, nil
	}
	require.NoError(t, f.creds.Set(context.Background(), "slow", "tok", 0))
	reg := NewSessionRegistry(f.opts)

	s := reg.Await(context.Background(), "slow", 20*time.Millisecond)
	assert.Equal(t, domainauth.StatusUnresolved, s.Current().Status)

	screen := domainauth.MustScreen("admin-dashboard", "/admin/dashboard", domainauth.RoleAdmin)
	assert.Equal(t, domainauth.DecisionLoading, domainauth.Evaluate(s.Current(), screen, "/admin/dashboard").Kind)
}

func TestSessionRegistry_AwaitHonorsContext(t *testing.T) {
	f := newSessionFixture(t)
	release := make(chan struct{})
	defer close(release)
	f.backend.WhoAmIFunc = func(context.Context, string) (domainauth.Profile, error) {
		<-release
		return domainauth.Profile{}, domainauth.ErrSessionExpired
	}
	require.NoError(t, f.creds.Set(context.Background(), "c", "tok", 0))
	reg := NewSessionRegistry(f.opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	s := reg.Await(ctx, "c", 5*time.Second)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domainauth.StatusUnresolved, s.Current().Status)
}

func TestSessionRegistry_SweepDropsIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	f := newSessionFixture(t)
	f.opts.Now = clock
	reg := NewSessionRegistry(f.opts)

	reg.Await(context.Background(), "idle", time.Second)
	advance(20 * time.Minute)
	reg.Await(context.Background(), "busy", time.Second)
	advance(15 * time.Minute)
	reg.Session(context.Background(), "busy")

	assert.Equal(t, 1, reg.Sweep(30*time.Minute))
	_, ok := reg.Lookup("idle")
	assert.False(t, ok)
	_, ok = reg.Lookup("busy")
	assert.True(t, ok)

	gauges := f.metrics.Find("sessions.active")
	require.NotEmpty(t, gauges)
	assert.InDelta(t, 1.0, gauges[len(gauges)-1].Value, 0)
}

func TestSessionRegistry_ReturningClientHydratesAgain(t *testing.T) {
	f := newSessionFixture(t)
	reg := NewSessionRegistry(f.opts)

	s := reg.Await(context.Background(), "c1", time.Second)
	_, err := s.Login(context.Background(), "super@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Sweep(-time.Hour))
	s2 := reg.Await(context.Background(), "c1", time.Second)
	assert.NotSame(t, s, s2)
	require.True(t, s2.Current().IsAuthenticated())
	assert.Equal(t, domainauth.RoleSuperAdmin, s2.Current().Identity.Role)
}

func TestSessionRegistry_RotateMovesSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	f := newSessionFixture(t)
	f.opts.Now = func() time.Time { return now }
	reg := NewSessionRegistry(f.opts)

	old := reg.Await(context.Background(), "11111111-2222-3333-4444-555555555555", time.Second)
	_, err := old.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	oldTTL := f.creds.TTL(old.ClientID())

	next, err := reg.Rotate(context.Background(), old)
	require.NoError(t, err)

	assert.NotEqual(t, old.ClientID(), next.ClientID())
	require.True(t, next.Current().IsAuthenticated())
	assert.Equal(t, "admin@example.com", next.Current().Identity.Email)
	assert.Equal(t, domainauth.StatusAnonymous, old.Current().Status)

	_, ok := f.creds.Token(old.ClientID())
	assert.False(t, ok, "old credential deleted")
	tok, ok := f.creds.Token(next.ClientID())
	require.True(t, ok)
	assert.Equal(t, next.Current().Identity.AuthToken, tok)
	assert.Equal(t, oldTTL, f.creds.TTL(next.ClientID()))

	got, ok := reg.Lookup(next.ClientID())
	require.True(t, ok)
	assert.Same(t, next, got)
	_, ok = reg.Lookup(old.ClientID())
	assert.False(t, ok)

	replayed := reg.Await(context.Background(), old.ClientID(), time.Second)
	assert.NotSame(t, old, replayed)
	assert.Equal(t, domainauth.StatusAnonymous, replayed.Current().Status)
}

func TestSessionRegistry_RotateAfterSweep(t *testing.T) {
	f := newSessionFixture(t)
	reg := NewSessionRegistry(f.opts)

	old := reg.Await(context.Background(), "c1", time.Second)
	_, err := old.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, 1, reg.Sweep(-time.Hour))

	next, err := reg.Rotate(context.Background(), old)
	require.NoError(t, err)
	assert.True(t, next.Current().IsAuthenticated())
	assert.Equal(t, 1, reg.Len())
}

func TestSessionRegistry_RotateRequiresAuthenticated(t *testing.T) {
	f := newSessionFixture(t)
	reg := NewSessionRegistry(f.opts)

	s := reg.Await(context.Background(), "anon", time.Second)
	require.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	_, err := reg.Rotate(context.Background(), s)
	require.ErrorIs(t, err, domainauth.ErrSessionExpired)
	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Lookup("anon")
	require.True(t, ok)
	assert.Same(t, s, got)
}
