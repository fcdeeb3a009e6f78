package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yush1006/todo/domain"
)

type fakeSub struct {
	owner      string
	onSnapshot func([]domain.Task)
	onError    func(error)
	cancelled  bool
}

type updateCall struct {
	owner string
	id    string
	patch domain.TaskPatch
}

// fakeStore records every call and lets tests push snapshots by hand.
type fakeStore struct {
	mu           sync.Mutex
	subs         []*fakeSub
	created      []domain.NewTask
	updates      []updateCall
	deletes      []string
	batches      [][]domain.TaskUpdate
	err          error
	subscribeErr error
}

func (f *fakeStore) Subscribe(_ context.Context, owner string, onSnapshot func([]domain.Task), onError func(error)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := &fakeSub{owner: owner, onSnapshot: onSnapshot, onError: onError}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		sub.cancelled = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) Create(_ context.Context, task domain.NewTask) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, task)
	return "new-id", nil
}

func (f *fakeStore) Update(_ context.Context, owner, id string, patch domain.TaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, updateCall{owner: owner, id: id, patch: patch})
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeStore) BatchUpdate(_ context.Context, _ string, updates []domain.TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, updates)
	return nil
}

func (f *fakeStore) sub(t *testing.T, i int) *fakeSub {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		t.Fatalf("expected subscription %d, have %d", i, len(f.subs))
	}
	return f.subs[i]
}

func (f *fakeStore) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStore) isCancelled(s *fakeSub) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return s.cancelled
}

func makeToken(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"name":  sub + " name",
		"email": sub + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// switchableTokens returns whichever token was set last.
type switchableTokens struct {
	mu    sync.Mutex
	token string
	err   error
}

func (s *switchableTokens) set(token string, err error) {
	s.mu.Lock()
	s.token, s.err = token, err
	s.mu.Unlock()
}

func (s *switchableTokens) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.err
}

type harness struct {
	store  *fakeStore
	tokens *switchableTokens
	engine *Engine
	hook   *test.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	h := &harness{store: &fakeStore{}, tokens: &switchableTokens{}, hook: hook}
	h.engine = NewEngine(h.store, NewTokenSession(h.tokens), logger)
	h.engine.Start()
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) signIn(t *testing.T, uid string) {
	t.Helper()
	h.tokens.set(makeToken(t, uid), nil)
	if err := h.engine.SignIn(context.Background()); err != nil {
		t.Fatalf("sign in %s: %v", uid, err)
	}
}

func task(id, owner string, order int64, completed bool) domain.Task {
	t := domain.Task{ID: id, OwnerID: owner, Text: id, Order: order, Completed: completed, CreatedAt: time.Unix(1700000000, 0).UTC()}
	if completed {
		ts := t.CreatedAt.Add(time.Minute)
		t.CompletedAt = &ts
	}
	return t
}

func ids(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
