package client

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/domain"
)

// ErrNotSignedIn is returned by operations that need an identity.
var ErrNotSignedIn = errors.New("not signed in")

// View is an immutable copy of the engine state.
type View struct {
	Identity *Identity
	Tasks    []domain.Task
	Stats    domain.Stats
	Dragged  string
	Draft    string
	Notice   *Notice
	// Loaded is false until the first snapshot of the current session.
	Loaded bool
}

// Engine keeps the signed-in user's task list in sync with the store. All
// state is guarded by one mutex; snapshots are applied in delivery order.
type Engine struct {
	store   TaskStore
	session SessionProvider
	logger  *log.Logger

	mu           sync.Mutex
	identity     *Identity
	tasks        []domain.Task
	loaded       bool
	loadedCh     chan struct{}
	dragged      string
	draft        string
	notice       *Notice
	gen          uint64
	subFailed    bool
	cancelSub    func()
	unsubSession func()
	started      bool
	closed       bool

	changes chan struct{}
}

func NewEngine(store TaskStore, session SessionProvider, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{
		store:    store,
		session:  session,
		logger:   logger,
		loadedCh: make(chan struct{}),
		changes:  make(chan struct{}, 1),
	}
}

// Start follows the session provider. Calling it more than once is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	unsub := e.session.Subscribe(e.onIdentity)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsub()
		return
	}
	e.unsubSession = unsub
	e.mu.Unlock()
}

// Close cancels the subscription and stops following the session.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	cancel, unsub := e.cancelSub, e.unsubSession
	e.cancelSub, e.unsubSession = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsub != nil {
		unsub()
	}
}

// SignIn asks the session provider for an identity. Failures raise an auth
// notice.
func (e *Engine) SignIn(ctx context.Context) error {
	if err := e.session.SignIn(ctx); err != nil {
		e.raise(NoticeAuth, AuthMessage(err), err)
		return err
	}
	return nil
}

func (e *Engine) SignOut() { e.session.SignOut() }

// Changes signals after every state change. Bursts coalesce.
func (e *Engine) Changes() <-chan struct{} { return e.changes }

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	tasks := make([]domain.Task, len(e.tasks))
	copy(tasks, e.tasks)
	v := View{
		Identity: copyIdentity(e.identity),
		Tasks:    tasks,
		Stats:    domain.ComputeStats(tasks),
		Dragged:  e.dragged,
		Draft:    e.draft,
		Loaded:   e.loaded,
	}
	if e.notice != nil {
		n := *e.notice
		v.Notice = &n
	}
	return v
}

// AwaitSnapshot blocks until the current session received its first
// snapshot.
func (e *Engine) AwaitSnapshot(ctx context.Context) error {
	e.mu.Lock()
	if e.identity == nil {
		e.mu.Unlock()
		return ErrNotSignedIn
	}
	ch := e.loadedCh
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) SetDraft(text string) {
	e.mu.Lock()
	e.draft = text
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) DismissNotice() {
	e.mu.Lock()
	e.notice = nil
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) onIdentity(id *Identity) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.identity != nil && id != nil && e.identity.UID == id.UID {
		e.identity = id
		if !e.subFailed {
			e.mu.Unlock()
			return
		}
		// Same user after a failed query: reopen it and keep the last list.
		cancel := e.cancelSub
		e.cancelSub = nil
		e.subFailed = false
		e.gen++
		gen := e.gen
		e.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		e.subscribe(gen, id.UID)
		e.signal()
		return
	}
	cancel := e.cancelSub
	e.cancelSub = nil
	e.subFailed = false
	e.gen++
	gen := e.gen
	e.identity = id
	e.tasks = nil
	e.dragged = ""
	e.loaded = false
	e.loadedCh = make(chan struct{})
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if id != nil {
		e.logger.WithField("user", id.UID).Debug("subscribing to tasks")
		e.subscribe(gen, id.UID)
	}
	e.signal()
}

func (e *Engine) subscribe(gen uint64, ownerID string) {
	ctx, cancel := context.WithCancel(context.Background())
	unsub, err := e.store.Subscribe(ctx, ownerID,
		func(tasks []domain.Task) { e.applySnapshot(gen, ownerID, tasks) },
		func(err error) { e.subscriptionFailed(gen, err) },
	)
	if err != nil {
		cancel()
		e.subscriptionFailed(gen, err)
		return
	}
	stop := func() {
		cancel()
		unsub()
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		stop()
		return
	}
	e.cancelSub = stop
	e.mu.Unlock()
}

func (e *Engine) applySnapshot(gen uint64, ownerID string, tasks []domain.Task) {
	kept := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OwnerID == ownerID {
			kept = append(kept, t)
		}
	}
	domain.SortTasks(kept)

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	e.tasks = kept
	if !e.loaded {
		e.loaded = true
		close(e.loadedCh)
	}
	e.mu.Unlock()

	if dropped := len(tasks) - len(kept); dropped > 0 {
		e.logger.WithFields(log.Fields{"user": ownerID, "dropped": dropped}).Warn("dropped tasks of another owner from snapshot")
	}
	e.signal()
}

func (e *Engine) subscriptionFailed(gen uint64, err error) {
	e.mu.Lock()
	stale := e.gen != gen
	if !stale {
		e.subFailed = true
	}
	e.mu.Unlock()
	if stale {
		return
	}
	e.raise(NoticeSubscription, MsgSubscription, err)
}

func (e *Engine) raise(kind NoticeKind, msg string, err error) {
	e.mu.Lock()
	e.notice = &Notice{Kind: kind, Message: msg, Err: err}
	e.mu.Unlock()

	entry := e.logger.WithField("kind", kind.String())
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
	e.signal()
}

// current returns the owner and a copy of the current list.
func (e *Engine) current() (string, []domain.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == nil {
		return "", nil, false
	}
	tasks := make([]domain.Task, len(e.tasks))
	copy(tasks, e.tasks)
	return e.identity.UID, tasks, true
}

func (e *Engine) signal() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}
