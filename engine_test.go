package gatekeeper

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/gatekeeper/identity"
	"github.com/MrEthical07/gatekeeper/permission"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/MrEthical07/gatekeeper/store"
	"github.com/MrEthical07/gatekeeper/store/memory"
)

const testPassword = "correct-horse-battery"

type testEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *memory.Store
}

func fastTestConfig() Config {
	cfg := validTestConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := fastTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mem := memory.New()
	b := New().WithConfig(cfg).WithRedis(rdb).WithStore(mem)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, store: mem}
}

func (te *testEngine) register(t *testing.T, email string) identity.PublicUser {
	t.Helper()
	u, err := te.Register(context.Background(), RegisterInput{Name: "Test", Email: email, Password: testPassword})
	require.NoError(t, err)
	return u
}

func (te *testEngine) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := te.Login(context.Background(), email, testPassword)
	require.NoError(t, err)
	return res
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, err := New().WithConfig(fastTestConfig()).WithStore(memory.New()).Build()
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err = New().WithConfig(fastTestConfig()).WithRedis(rdb).Build()
	assert.Error(t, err)

	b := New().WithConfig(fastTestConfig()).WithRedis(rdb).WithStore(memory.New())
	e, err := b.Build()
	require.NoError(t, err)
	defer e.Close()
	_, err = b.Build()
	assert.Error(t, err, "a builder is single use")
}

func TestLoginThenValidate(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "Alice@Example.com")
	assert.Equal(t, "alice@example.com", u.Email)

	res := te.login(t, "alice@example.com")
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), res.ExpiresAt, time.Minute)

	id, err := te.ValidateSession(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, res.SessionID, id.SessionID)
	assert.True(t, id.Authenticated())

	snap := te.MetricsSnapshot()
	assert.EqualValues(t, 1, snap.Counters[MetricLoginSuccess])
	assert.EqualValues(t, 1, snap.Counters[MetricSessionValidated])
	assert.Len(t, snap.Histograms[MetricValidateLatency], 8)
}

func TestLoginRejectsUnknownEmailAndWrongPasswordAlike(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "bob@example.com")

	_, err := te.Login(ctx, "nobody@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = te.Login(ctx, "bob@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, IsAuthenticationError(err))
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	te := newTestEngine(t, nil)
	u := te.register(t, "carol@example.com")
	require.NoError(t, te.SetUserActive(context.Background(), u.ID, false))

	_, err := te.Login(context.Background(), "carol@example.com", testPassword)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestValidateSessionTypedFailures(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := te.ValidateSession(ctx, "")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	_, err = te.ValidateSession(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	te.register(t, "dave@example.com")
	res := te.login(t, "dave@example.com")
	tampered := res.Token[:len(res.Token)-2] + "xx"
	_, err = te.ValidateSession(ctx, tampered)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestSessionRequiresBothCacheAndUserSet(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "erin@example.com")

	// Cache side removed.
	first := te.login(t, "erin@example.com")
	te.mr.Del(session.DefaultPrefix + first.SessionID)
	_, err := te.ValidateSession(ctx, first.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)

	// Durable side removed.
	second := te.login(t, "erin@example.com")
	require.NoError(t, te.RevokeSession(ctx, u.ID, second.SessionID))
	assert.True(t, te.mr.Exists(session.DefaultPrefix+second.SessionID), "revocation leaves the cache entry")
	_, err = te.ValidateSession(ctx, second.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
}

func TestValidateSessionSlidesTTL(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "frank@example.com")
	res := te.login(t, "frank@example.com")

	te.mr.FastForward(20 * time.Hour)
	_, err := te.ValidateSession(ctx, res.Token)
	require.NoError(t, err)

	te.mr.FastForward(20 * time.Hour)
	_, err = te.ValidateSession(ctx, res.Token)
	require.NoError(t, err, "TTL is refreshed on each validated request")

	te.mr.FastForward(25 * time.Hour)
	_, err = te.ValidateSession(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
}

func TestValidateSessionCheckFailedWhenCacheDown(t *testing.T) {
	te := newTestEngine(t, nil)
	te.register(t, "gina@example.com")
	res := te.login(t, "gina@example.com")

	te.mr.Close()
	_, err := te.ValidateSession(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.NotErrorIs(t, err, ErrSessionExpiredOrRevoked)
	assert.False(t, te.Health(context.Background()).RedisAvailable)
}

func TestLogoutInvalidatesOnlyThatSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "hank@example.com")
	s1 := te.login(t, "hank@example.com")
	s2 := te.login(t, "hank@example.com")

	require.NoError(t, te.Logout(ctx, u.ID, s1.SessionID))

	_, err := te.ValidateSession(ctx, s1.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
	_, err = te.ValidateSession(ctx, s2.Token)
	assert.NoError(t, err)
}

func TestLogoutCannotEndAnotherUsersSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	a := te.register(t, "ada@example.com")
	te.register(t, "bea@example.com")
	theirs := te.login(t, "bea@example.com")

	err := te.Logout(ctx, a.ID, theirs.SessionID)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
	assert.NotErrorIs(t, err, ErrCheckFailed)

	id, err := te.ValidateSession(ctx, theirs.Token)
	require.NoError(t, err)
	assert.Equal(t, theirs.User.ID, id.UserID)
	assert.Zero(t, te.MetricsSnapshot().Counters[MetricLogout])
}

func TestLogoutAllLeavesNoValidSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "iris@example.com")

	var tokens []string
	for i := 0; i < 3; i++ {
		tokens = append(tokens, te.login(t, "iris@example.com").Token)
	}

	n, err := te.LogoutAll(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, tok := range tokens {
		_, err := te.ValidateSession(ctx, tok)
		assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
	}
	list, err := te.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRefreshReplacesSession(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "jack@example.com")
	s1 := te.login(t, "jack@example.com")

	s2, err := te.Refresh(ctx, u.ID, s1.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, s1.SessionID, s2.SessionID)

	_, err = te.ValidateSession(ctx, s1.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
	_, err = te.ValidateSession(ctx, s2.Token)
	assert.NoError(t, err)

	_, err = te.Refresh(ctx, u.ID, s1.SessionID)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)
}

func TestDeactivationEndsSessions(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "kate@example.com")
	res := te.login(t, "kate@example.com")

	require.NoError(t, te.SetUserActive(ctx, u.ID, false))
	_, err := te.ValidateSession(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionExpiredOrRevoked)

	stored, err := te.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SessionIDs)
}

func TestListSessions(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	u := te.register(t, "liam@example.com")
	s1 := te.login(t, "liam@example.com")
	s2 := te.login(t, "liam@example.com")

	list, err := te.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, s := range list {
		ids = append(ids, s.SessionID)
		assert.Equal(t, "liam@example.com", s.Email)
	}
	assert.ElementsMatch(t, []string{s1.SessionID, s2.SessionID}, ids)

	_, err = te.ListSessions(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestRegisterDuplicateAndInvalid(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	te.register(t, "mia@example.com")

	_, err := te.Register(ctx, RegisterInput{Email: "MIA@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.ErrorIs(t, err, ErrDuplicateConstraint)

	_, err = te.Register(ctx, RegisterInput{Email: "not-an-email", Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSessionCookieAttributes(t *testing.T) {
	prod := newTestEngine(t, nil)
	prod.register(t, "nina@example.com")
	res := prod.login(t, "nina@example.com")

	c := prod.SessionCookie(res)
	assert.Equal(t, DefaultCookieName, c.Name)
	assert.Equal(t, res.Token, c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	dev := newTestEngine(t, func(c *Config) { c.Environment = EnvDevelopment })
	assert.False(t, dev.ExpiredSessionCookie().Secure)
	assert.Equal(t, -1, dev.ExpiredSessionCookie().MaxAge)
}

func TestCachedStoreIsWired(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Cache.Enabled = true })
	ctx := context.Background()

	_, err := te.CreatePermission(ctx, permissionInput("posts", store.ActionRead))
	require.NoError(t, err)
	u := te.register(t, "omar@example.com")
	_, err = te.UpdateUserPermissions(ctx, u.ID, store.SetAdd, permission.ByName("posts:read"))
	require.NoError(t, err)
	id, err := te.IdentityFor(ctx, u.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := te.HasPermission(ctx, id, "posts:read")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	stats := te.CacheStats()
	assert.Positive(t, stats.Hits)
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, nil)
	u := te.register(t, "ada@example.com")

	before, err := te.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, before.PasswordHash, "t=1,")

	cfg := fastTestConfig()
	cfg.Password.Time = 2
	stronger, err := New().WithConfig(cfg).WithRedis(te.rdb).WithStore(te.store).Build()
	require.NoError(t, err)
	t.Cleanup(stronger.Close)

	_, err = stronger.Login(ctx, "ada@example.com", testPassword)
	require.NoError(t, err)

	after, err := te.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
	assert.Contains(t, after.PasswordHash, "t=2,")

	_, err = stronger.Login(ctx, "ada@example.com", testPassword)
	require.NoError(t, err)
	again, err := te.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, after.PasswordHash, again.PasswordHash)

	te.login(t, "ada@example.com")
}

func TestUnbuiltEngineRefusesEveryCall(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1"}

	for name, e := range map[string]*Engine{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			_, err := e.GetUser(ctx, "u1")
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.FindUserByEmail(ctx, "a@example.com")
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.IdentityFor(ctx, "u1")
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.UpdateUserRoles(ctx, "u1", store.SetAdd, permission.ByName("staff"))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.UpdateUserPermissions(ctx, "u1", store.SetAdd, permission.ByName("posts:read"))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			assert.ErrorIs(t, e.SetUserActive(ctx, "u1", false), ErrEngineNotReady)

			_, err = e.CreatePermission(ctx, permissionInput("posts", store.ActionRead))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.UpdatePermission(ctx, "p1", permission.UpdatePermissionInput{})
			assert.ErrorIs(t, err, ErrEngineNotReady)
			assert.ErrorIs(t, e.DeletePermission(ctx, "p1"), ErrEngineNotReady)
			_, err = e.CreateRole(ctx, permission.CreateRoleInput{Name: "staff"})
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.UpdateRole(ctx, permission.ByName("staff"), permission.UpdateRoleInput{})
			assert.ErrorIs(t, err, ErrEngineNotReady)
			assert.ErrorIs(t, e.DeleteRole(ctx, permission.ByName("staff")), ErrEngineNotReady)
			_, err = e.SetDefaultRole(ctx, permission.ByName("staff"))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.GivePermissionTo(ctx, permission.ByName("staff"))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.RevokePermissionTo(ctx, permission.ByName("staff"))
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.SyncPermissions(ctx, permission.ByName("staff"))
			assert.ErrorIs(t, err, ErrEngineNotReady)

			_, err = e.HasPermission(ctx, id, "posts:read")
			assert.ErrorIs(t, err, ErrEngineNotReady)
			_, err = e.AllPermissions(ctx, id)
			assert.ErrorIs(t, err, ErrEngineNotReady)

			assert.Equal(t, uint64(0), e.CacheStats().Hits)
			assert.Nil(t, e.Permissions())
			assert.Nil(t, e.Roles())
		})
	}
}
