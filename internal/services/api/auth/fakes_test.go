package auth

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain"
	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
	"github.com/NordCoder/KUSeek/internal/domain/outbox"
	"github.com/NordCoder/KUSeek/internal/domain/user"
	"github.com/NordCoder/KUSeek/internal/ratelimit"
	redisrepo "github.com/NordCoder/KUSeek/internal/repository/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	tokens "github.com/NordCoder/KUSeek/internal/auth"
)

type sessionKey struct {
	userID uuid.UUID
	nonce  uint32
}

type memState struct {
	users      map[uuid.UUID]user.User
	students   map[uuid.UUID]user.StudentProfile
	companies  map[uuid.UUID]user.CompanyProfile
	professors map[uuid.UUID]user.ProfessorProfile
	tos        map[uuid.UUID]user.TOSAgreement
	sessions   map[sessionKey]domainauth.Session
	outbox     []outbox.Message
}

func (s memState) clone() memState {
	return memState{
		users:      maps.Clone(s.users),
		students:   maps.Clone(s.students),
		companies:  maps.Clone(s.companies),
		professors: maps.Clone(s.professors),
		tos:        maps.Clone(s.tos),
		sessions:   maps.Clone(s.sessions),
		outbox:     slices.Clone(s.outbox),
	}
}

// memDB is an in-memory stand-in for Postgres. A failing WithTx restores
// the state it started from.
type memDB struct {
	mu    sync.Mutex
	st    memState
	fail  map[string]error
	txs   atomic.Int64
	clock func() time.Time
}

func newMemDB(clock func() time.Time) *memDB {
	return &memDB{
		st: memState{
			users:      map[uuid.UUID]user.User{},
			students:   map[uuid.UUID]user.StudentProfile{},
			companies:  map[uuid.UUID]user.CompanyProfile{},
			professors: map[uuid.UUID]user.ProfessorProfile{},
			tos:        map[uuid.UUID]user.TOSAgreement{},
			sessions:   map[sessionKey]domainauth.Session{},
		},
		fail:  map[string]error{},
		clock: clock,
	}
}

func (db *memDB) failOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fail[op] = err
}

// lock must be released by the caller.
func (db *memDB) lock(op string) error {
	db.mu.Lock()
	if err := db.fail[op]; err != nil {
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) sessionCount(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for k := range db.st.sessions {
		if k.userID == id {
			n++
		}
	}
	return n
}

func (db *memDB) userCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.st.users)
}

func (db *memDB) outboxKinds() []outbox.Kind {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []outbox.Kind
	for _, m := range db.st.outbox {
		out = append(out, m.Kind)
	}
	return out
}

type memTxKey struct{}

type memTx struct{ db *memDB }

func (t memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	t.db.txs.Add(1)
	t.db.mu.Lock()
	snap := t.db.st.clone()
	t.db.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.db.mu.Lock()
		t.db.st = snap
		t.db.mu.Unlock()
		return err
	}
	return nil
}

type memUsers struct{ db *memDB }

func (r memUsers) Create(_ context.Context, u *user.User) error {
	if err := r.db.lock("users.create"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	for _, e := range r.db.st.users {
		if e.Email == u.Email {
			return domain.ErrConflict
		}
		if e.ExternalUID != nil && u.ExternalUID != nil && *e.ExternalUID == *u.ExternalUID {
			return domain.ErrConflict
		}
	}
	now := r.db.clock()
	u.CreatedAt, u.UpdatedAt = now, now
	r.db.st.users[u.ID] = *u
	return nil
}

func (r memUsers) find(op string, match func(user.User) bool) (*user.User, error) {
	if err := r.db.lock(op); err != nil {
		return nil, err
	}
	defer r.db.mu.Unlock()
	for _, u := range r.db.st.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	return r.find("users.get", func(u user.User) bool { return u.ID == id })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return r.find("users.get", func(u user.User) bool { return u.Email == email })
}

func (r memUsers) GetByExternalUID(_ context.Context, uid string) (*user.User, error) {
	return r.find("users.get", func(u user.User) bool { return u.ExternalUID != nil && *u.ExternalUID == uid })
}

type memProfiles struct{ db *memDB }

func (r memProfiles) CreateStudent(_ context.Context, p *user.StudentProfile) error {
	if err := r.db.lock("profiles.student"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	r.db.st.students[p.UserID] = *p
	return nil
}

func (r memProfiles) CreateCompany(_ context.Context, p *user.CompanyProfile) error {
	if err := r.db.lock("profiles.company"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	r.db.st.companies[p.UserID] = *p
	return nil
}

func (r memProfiles) CreateProfessor(_ context.Context, p *user.ProfessorProfile) error {
	if err := r.db.lock("profiles.professor"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	r.db.st.professors[p.UserID] = *p
	return nil
}

func (r memProfiles) AcceptTOS(_ context.Context, t *user.TOSAgreement) error {
	if err := r.db.lock("profiles.tos"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	r.db.st.tos[t.UserID] = *t
	return nil
}

type memSessions struct{ db *memDB }

func (r memSessions) Create(_ context.Context, s *domainauth.Session) error {
	if err := r.db.lock("sessions.create"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	k := sessionKey{s.UserID, s.Nonce}
	if _, ok := r.db.st.sessions[k]; ok {
		return domain.ErrConflict
	}
	r.db.st.sessions[k] = *s
	return nil
}

func (r memSessions) Take(_ context.Context, id uuid.UUID, nonce uint32) (bool, error) {
	if err := r.db.lock("sessions.take"); err != nil {
		return false, err
	}
	defer r.db.mu.Unlock()
	k := sessionKey{id, nonce}
	if _, ok := r.db.st.sessions[k]; !ok {
		return false, nil
	}
	delete(r.db.st.sessions, k)
	return true, nil
}

func (r memSessions) DeleteAll(_ context.Context, id uuid.UUID) (int64, error) {
	if err := r.db.lock("sessions.delete_all"); err != nil {
		return 0, err
	}
	defer r.db.mu.Unlock()
	var n int64
	for k := range r.db.st.sessions {
		if k.userID == id {
			delete(r.db.st.sessions, k)
			n++
		}
	}
	return n, nil
}

type memOutbox struct{ db *memDB }

func (r memOutbox) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	if err := r.db.lock("outbox.enqueue"); err != nil {
		return err
	}
	defer r.db.mu.Unlock()
	r.db.st.outbox = append(r.db.st.outbox, outbox.Message{
		IdempotencyKey: key,
		Kind:           kind,
		Data:           data,
		Status:         outbox.StatusCreated,
	})
	return nil
}

func (r memOutbox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (r memOutbox) MarkSuccess(context.Context, []string) error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher counts Verify calls so tests can check that every login
// failure path pays for one hash verification.
type countingHasher struct {
	*tokens.Argon2Hasher
	verifies atomic.Int64
}

func (h *countingHasher) Verify(password, encoded string) (bool, error) {
	h.verifies.Add(1)
	return h.Argon2Hasher.Verify(password, encoded)
}

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 24 * time.Hour
)

type testEnv struct {
	uc       *Usecase
	db       *memDB
	clock    *testClock
	issuer   *tokens.Issuer
	hasher   *countingHasher
	mr       *miniredis.Miniredis
	api      *ratelimit.Limiter
	login    *ratelimit.Limiter
	apiStore *redisrepo.CounterStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	db := newMemDB(clock.Now)

	issuer, err := tokens.NewIssuer(tokens.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef-test"),
		AccessTTL:  testAccessTTL,
		RefreshTTL: testRefreshTTL,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := redisrepo.NewCounterStore(rdb, time.Second)

	api, err := ratelimit.New(store, ratelimit.DefaultAPIPolicy(), nil)
	require.NoError(t, err)
	login, err := ratelimit.New(store, ratelimit.DefaultLoginPolicy(), nil)
	require.NoError(t, err)

	hasher := &countingHasher{Argon2Hasher: &tokens.Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}}

	uc, err := NewUseCase(Deps{
		Users:    memUsers{db},
		Profiles: memProfiles{db},
		Sessions: memSessions{db},
		Outbox:   memOutbox{db},
		Tx:       memTx{db},
		Tokens:   issuer,
		Hasher:   hasher,
		Bans:     api,
		BanSets: map[string]BanClearer{
			ratelimit.PolicyAPI:   api,
			ratelimit.PolicyLogin: login,
		},
		Now: clock.Now,
	})
	require.NoError(t, err)

	return &testEnv{
		uc:       uc,
		db:       db,
		clock:    clock,
		issuer:   issuer,
		hasher:   hasher,
		mr:       mr,
		api:      api,
		login:    login,
		apiStore: store,
	}
}

func studentInput(email, password string) RegisterInput {
	return RegisterInput{
		Email:     email,
		Password:  password,
		Role:      user.RoleStudent,
		TOSAgreed: true,
		KUID:      "2023123456",
	}
}

// seedUser inserts an identity directly, bypassing registration rules.
func (e *testEnv) seedUser(t *testing.T, email, password string, role user.Role) uuid.UUID {
	t.Helper()
	u := &user.User{ID: uuid.New(), Email: email, Role: role}
	if password != "" {
		h, err := e.hasher.Hash(password)
		require.NoError(t, err)
		u.PasswordHash = h
	}
	require.NoError(t, memUsers{e.db}.Create(context.Background(), u))
	return u.ID
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
