package client

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/domain"
)

func TestEngineSubscribesOncePerIdentity(t *testing.T) {
	h := newHarness(t)
	if h.store.subCount() != 0 {
		t.Fatalf("signed-out engine must not subscribe")
	}

	h.signIn(t, "alice")
	h.signIn(t, "alice")
	if n := h.store.subCount(); n != 1 {
		t.Fatalf("expected one subscription for a repeated identity, got %d", n)
	}
	alice := h.store.sub(t, 0)
	if alice.owner != "alice" {
		t.Fatalf("subscription filtered to %q", alice.owner)
	}
	alice.onSnapshot([]domain.Task{task("a", "alice", 0, false)})

	h.signIn(t, "bob")
	if !h.store.isCancelled(alice) {
		t.Fatal("switching identity must cancel the previous query")
	}
	if v := h.engine.View(); len(v.Tasks) != 0 || v.Loaded || v.Identity.UID != "bob" {
		t.Fatalf("switching identity must clear the list: %+v", v)
	}

	alice.onSnapshot([]domain.Task{task("late", "alice", 0, false)})
	if v := h.engine.View(); len(v.Tasks) != 0 {
		t.Fatalf("push from a cancelled query was applied: %+v", v.Tasks)
	}

	bob := h.store.sub(t, 1)
	bob.onSnapshot([]domain.Task{task("b", "bob", 0, false)})
	h.engine.BeginDrag("b")

	h.engine.SignOut()
	v := h.engine.View()
	if v.Identity != nil || len(v.Tasks) != 0 || v.Dragged != "" {
		t.Fatalf("sign out must reset state: %+v", v)
	}
	if !h.store.isCancelled(bob) {
		t.Fatal("sign out must cancel the query")
	}
	if err := h.engine.AwaitSnapshot(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestSnapshotReplacesListWholesale(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice")
	sub := h.store.sub(t, 0)

	sub.onSnapshot([]domain.Task{
		task("b", "alice", 1, true),
		task("x", "mallory", -5, false),
		task("a", "alice", 0, false),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.engine.AwaitSnapshot(ctx); err != nil {
		t.Fatalf("await snapshot: %v", err)
	}
	v := h.engine.View()
	if got := ids(v.Tasks); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected list %v", got)
	}
	if v.Tasks[0].CompletedAt != nil {
		t.Fatal("absent completedAt must stay absent")
	}
	if v.Stats != (domain.Stats{Total: 2, Completed: 1, Percentage: 50}) {
		t.Fatalf("unexpected stats %+v", v.Stats)
	}
	if entry := h.hook.LastEntry(); entry == nil || entry.Level != log.WarnLevel || entry.Data["dropped"] != 1 {
		t.Fatalf("foreign task should be logged, got %#v", entry)
	}

	sub.onSnapshot([]domain.Task{task("c", "alice", 0, false)})
	if got := ids(h.engine.View().Tasks); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("snapshot must replace the list, got %v", got)
	}

	select {
	case <-h.engine.Changes():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestViewIsACopy(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice")
	h.store.sub(t, 0).onSnapshot([]domain.Task{task("a", "alice", 0, false)})

	v := h.engine.View()
	v.Tasks[0].Text = "changed"
	if h.engine.View().Tasks[0].Text != "a" {
		t.Fatal("mutating a view leaked into engine state")
	}
}

func TestSubscriptionErrorKeepsList(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice")
	sub := h.store.sub(t, 0)
	sub.onSnapshot([]domain.Task{task("a", "alice", 0, false)})

	boom := errors.New("permission denied")
	sub.onError(boom)
	v := h.engine.View()
	if v.Notice == nil || v.Notice.Kind != NoticeSubscription || !errors.Is(v.Notice, boom) {
		t.Fatalf("expected subscription notice, got %+v", v.Notice)
	}
	if got := ids(v.Tasks); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("list must stay at last snapshot, got %v", got)
	}

	h.engine.DismissNotice()
	if h.engine.View().Notice != nil {
		t.Fatal("notice not dismissed")
	}

	h.signIn(t, "alice")
	if n := h.store.subCount(); n != 2 {
		t.Fatalf("signing in again after a failure must reopen the query, got %d subscriptions", n)
	}
	if !h.store.isCancelled(sub) {
		t.Fatal("failed query must be cancelled before reopening")
	}
	if got := ids(h.engine.View().Tasks); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("reopening must keep the last list, got %v", got)
	}
	h.store.sub(t, 1).onSnapshot([]domain.Task{task("b", "alice", 0, false)})
	if got := ids(h.engine.View().Tasks); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("reopened query not applied, got %v", got)
	}
}

func TestSubscribeFailureRaisesNotice(t *testing.T) {
	h := newHarness(t)
	h.store.subscribeErr = errors.New("offline")
	h.signIn(t, "alice")
	if n := h.engine.View().Notice; n == nil || n.Kind != NoticeSubscription {
		t.Fatalf("expected subscription notice, got %+v", n)
	}
}

func TestSignInFailureRaisesAuthNotice(t *testing.T) {
	h := newHarness(t)
	h.tokens.set("", &AuthError{Code: AuthPopupClosed})
	err := h.engine.SignIn(context.Background())
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Code != AuthPopupClosed {
		t.Fatalf("expected popup-closed error, got %v", err)
	}
	n := h.engine.View().Notice
	if n == nil || n.Kind != NoticeAuth || n.Message != MsgPopupClosed {
		t.Fatalf("unexpected notice %+v", n)
	}
	if h.store.subCount() != 0 {
		t.Fatal("failed sign-in must not subscribe")
	}
}

func TestCloseCancelsSubscription(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice")
	sub := h.store.sub(t, 0)
	h.engine.Close()
	if !h.store.isCancelled(sub) {
		t.Fatal("close must cancel the query")
	}
	sub.onSnapshot([]domain.Task{task("a", "alice", 0, false)})
	if len(h.engine.View().Tasks) != 0 {
		t.Fatal("snapshot after close was applied")
	}
	h.engine.Close()
}
