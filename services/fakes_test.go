package services

import (
	"context"
	"errors"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/throttle"
)

var errBoom = errors.New("boom")

// FakeStorage wraps the memory store and lets tests inject failures per
// operation.
type FakeStorage struct {
	*memory.Store

	mu               sync.Mutex
	getUserErr       error
	createUserErr    error
	updateUserErr    error
	deleteUserErr    error
	createSessionErr error
	getSessionErr    error
	updateSessionErr error
	deleteSessionErr error

	getUserByEmailCalls int
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Store: memory.New()}
}

func (f *FakeStorage) fail(err *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *err
}

func (f *FakeStorage) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	f.mu.Lock()
	f.getUserByEmailCalls++
	f.mu.Unlock()
	if err := f.fail(&f.getUserErr); err != nil {
		return nil, err
	}
	return f.Store.GetUserByEmail(ctx, email)
}

func (f *FakeStorage) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if err := f.fail(&f.getUserErr); err != nil {
		return nil, err
	}
	return f.Store.GetUserByID(ctx, id)
}

func (f *FakeStorage) CreateUser(ctx context.Context, u *core.User) error {
	if err := f.fail(&f.createUserErr); err != nil {
		return err
	}
	return f.Store.CreateUser(ctx, u)
}

func (f *FakeStorage) UpdateUser(ctx context.Context, id string, patch core.UserPatch) (*core.User, error) {
	if err := f.fail(&f.updateUserErr); err != nil {
		return nil, err
	}
	return f.Store.UpdateUser(ctx, id, patch)
}

func (f *FakeStorage) DeleteUser(ctx context.Context, id string) error {
	if err := f.fail(&f.deleteUserErr); err != nil {
		return err
	}
	return f.Store.DeleteUser(ctx, id)
}

func (f *FakeStorage) CreateSession(ctx context.Context, s *core.Session) error {
	if err := f.fail(&f.createSessionErr); err != nil {
		return err
	}
	return f.Store.CreateSession(ctx, s)
}

func (f *FakeStorage) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	if err := f.fail(&f.getSessionErr); err != nil {
		return nil, err
	}
	return f.Store.GetSessionByHash(ctx, tokenHash)
}

func (f *FakeStorage) UpdateSession(ctx context.Context, s *core.Session) error {
	if err := f.fail(&f.updateSessionErr); err != nil {
		return err
	}
	return f.Store.UpdateSession(ctx, s)
}

func (f *FakeStorage) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	if err := f.fail(&f.deleteSessionErr); err != nil {
		return err
	}
	return f.Store.DeleteSessionByHash(ctx, tokenHash)
}

func (f *FakeStorage) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	if err := f.fail(&f.deleteSessionErr); err != nil {
		return 0, err
	}
	return f.Store.DeleteUserSessions(ctx, userID)
}

// FakeThrottleStore wraps the memory throttle store with error injection
// and call counting.
type FakeThrottleStore struct {
	*throttle.MemoryStore
	getErr error
	putErr error
	delErr error
	puts   int
}

func NewFakeThrottleStore() *FakeThrottleStore {
	return &FakeThrottleStore{MemoryStore: throttle.NewMemoryStore()}
}

func (f *FakeThrottleStore) Get(ctx context.Context, key string) (*core.ThrottleEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *FakeThrottleStore) Put(ctx context.Context, key string, e core.ThrottleEntry) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	return f.MemoryStore.Put(ctx, key, e)
}

func (f *FakeThrottleStore) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.MemoryStore.Delete(ctx, key)
}

// fakeHasher is a fast reversible stand-in for a password hasher.
type fakeHasher struct {
	hashErr   error
	verifyErr error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, hash string) (bool, error) {
	if h.verifyErr != nil {
		return false, h.verifyErr
	}
	return hash == "hashed:"+password, nil
}

// fakeUploader records saved file names and returns /uploads/<name>.
type fakeUploader struct {
	err   error
	saved []string
}

func (u *fakeUploader) Save(_ context.Context, file *multipart.FileHeader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.saved = append(u.saved, file.Filename)
	return "/uploads/" + file.Filename, nil
}

// FakeCache is a map-backed core.Cache with error injection.
type FakeCache struct {
	mu     sync.Mutex
	cache  map[string]*core.Session
	getErr error
	setErr error
	hits   int
}

func NewFakeCache() *FakeCache {
	return &FakeCache{cache: make(map[string]*core.Session)}
}

func (f *FakeCache) Get(tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.cache[tokenHash]
	if !ok {
		return nil, core.ErrCacheNotFound
	}
	f.hits++
	cp := *s
	return &cp, nil
}

func (f *FakeCache) Set(tokenHash string, session *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	cp := *session
	f.cache[tokenHash] = &cp
	return nil
}

func (f *FakeCache) Delete(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, tokenHash)
	return nil
}

func (f *FakeCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]*core.Session)
	return nil
}

func (f *FakeCache) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

type fakeClock struct{ t time.Time }

// newFakeClock starts at the real current time so stores that read the wall
// clock agree with the services about what has expired.
func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// testEnv wires the services over fakes with a shared clock.
type testEnv struct {
	storage  *FakeStorage
	throttle *FakeThrottleStore
	hasher   *fakeHasher
	uploader *fakeUploader
	clock    *fakeClock

	sessions *SessionManager
	attempts *AttemptThrottle
	auth     *AuthService
	profiles *ProfileService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		storage:  NewFakeStorage(),
		throttle: NewFakeThrottleStore(),
		hasher:   &fakeHasher{},
		uploader: &fakeUploader{},
		clock:    newFakeClock(),
	}

	env.sessions = NewSessionManager(core.DefaultSessionConfig(), env.storage, nil)
	env.sessions.now = env.clock.now
	env.attempts = NewAttemptThrottle(env.throttle, core.DefaultThrottleConfig())
	env.attempts.now = env.clock.now
	env.auth = NewAuthService(env.storage, env.sessions, env.attempts, env.hasher, env.uploader, nil)
	env.auth.now = env.clock.now
	env.profiles = NewProfileService(env.storage, env.sessions, env.uploader, nil)
	return env
}

const testPassword = "Password1!"

// register creates an account through the service and fails the test on error.
func (e *testEnv) register(t *testing.T, username, email string) *core.PublicUser {
	t.Helper()
	u, err := e.auth.Register(context.Background(), core.RegisterInput{
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return u
}

func (e *testEnv) login(email, password string) (*core.LoginResult, error) {
	return e.auth.Login(context.Background(), core.LoginInput{
		Email:     email,
		Password:  password,
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	})
}

func fileHeader(name string) *multipart.FileHeader {
	return &multipart.FileHeader{Filename: name, Size: int64(len(name))}
}
