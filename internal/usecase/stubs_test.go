package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/port"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository"
	redisrepo "github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/repository/redis"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, srv
}

// testClock is a manually advanced clock shared by the components under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)}
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

func newTestBucket(t *testing.T, client *red.Client, name string, max int, interval time.Duration, clock *testClock) *TokenBucket {
	t.Helper()

	bucket, err := NewTokenBucket(name, max, interval, redisrepo.NewTokenBucketRepository(client, ""))
	if err != nil {
		t.Fatalf("NewTokenBucket returned error: %v", err)
	}
	return bucket.WithClock(clock.Now)
}

func newTestShortCodes(t *testing.T, client *red.Client, maxCodes int, clock *testClock) *ShortCodeGenerator {
	t.Helper()

	gen, err := NewShortCodeGenerator(config.ShortCodeSettings{
		KeyPrefix:          "LoginCode:",
		ValidityMinutes:    90,
		MaxConcurrentCodes: maxCodes,
	}, redisrepo.NewShortCodeRepository(client), nil)
	if err != nil {
		t.Fatalf("NewShortCodeGenerator returned error: %v", err)
	}
	return gen.WithClock(clock.Now)
}

type stubPersonRepo struct {
	people    map[string]domain.Person
	err       error
	touched   []string
	saltsByID map[string]string
	updateErr error
}

func newStubPersonRepo(people ...domain.Person) *stubPersonRepo {
	repo := &stubPersonRepo{people: make(map[string]domain.Person), saltsByID: make(map[string]string)}
	for _, p := range people {
		repo.people[p.ID] = p
	}
	return repo
}

func (r *stubPersonRepo) GetByID(_ context.Context, id string) (*domain.Person, error) {
	if r.err != nil {
		return nil, r.err
	}
	if p, ok := r.people[id]; ok {
		copy := p
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubPersonRepo) GetByEmail(_ context.Context, email string) (*domain.Person, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, p := range r.people {
		if p.Email == email {
			copy := p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubPersonRepo) UpdateAutoLoginSalt(_ context.Context, id string, salt string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	p, ok := r.people[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.AutoLoginSalt = salt
	r.people[id] = p
	r.saltsByID[id] = salt
	return nil
}

func (r *stubPersonRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.touched = append(r.touched, id)
	return nil
}

type stubPublisher struct {
	err          error
	codeRequests []domain.LoginCodeRequestedEvent
	logins       []domain.LoginSucceededEvent
	rotations    []domain.AutoLoginSaltRotatedEvent
}

func (p *stubPublisher) PublishLoginCodeRequested(_ context.Context, event domain.LoginCodeRequestedEvent) error {
	p.codeRequests = append(p.codeRequests, event)
	return p.err
}

func (p *stubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logins = append(p.logins, event)
	return p.err
}

func (p *stubPublisher) PublishAutoLoginSaltRotated(_ context.Context, event domain.AutoLoginSaltRotatedEvent) error {
	p.rotations = append(p.rotations, event)
	return p.err
}

type stubSessionIssuer struct {
	issued []string
	err    error
}

func (s *stubSessionIssuer) Issue(personID string, method string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.issued = append(s.issued, personID+":"+method)
	return "token-" + personID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type stubVerifier struct {
	password string
	err      error
}

func (v stubVerifier) Verify(password string, encoded string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return encoded == "hash:"+v.password && password == v.password, nil
}

type failingBucketStore struct{}

var errStoreDown = errors.New("store down")

func (failingBucketStore) Take(context.Context, port.BucketSpec, string, int, time.Time) (bool, error) {
	return false, errStoreDown
}

func (failingBucketStore) Reset(context.Context, port.BucketSpec, string) error {
	return errStoreDown
}
