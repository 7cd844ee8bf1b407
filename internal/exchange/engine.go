// Package exchange pairs each visitor's daily fragment with one written by
// somebody else on the same day.
//
// An Engine belongs to one visitor session. It talks to the shared Fragment
// Store and to the visitor's own Local Cache, and scopes every store query
// with the day boundary read from its Clock. Flow errors are logged and
// returned next to a View that always reflects the last good state, so a
// caller may render the View and ignore the error.
package exchange

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fragmentone/internal/clock"
	"fragmentone/internal/fragment/model"
	"fragmentone/internal/localcache"
	"fragmentone/pkg/logger"
)

var (
	ErrIdentityNotReady = errors.New("identity not ready")
	ErrSubmitInFlight   = errors.New("submission already in flight")
	ErrAlreadySubmitted = errors.New("already submitted today")
)

// Store is the contract the engine needs from the shared fragment pool.
type Store interface {
	Append(ctx context.Context, authorID, text string) (model.Fragment, error)
	FindSince(ctx context.Context, since time.Time) ([]model.Fragment, error)
	FindByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.Fragment, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// View is what the page renders.
type View struct {
	HasSubmittedToday bool   `json:"has_submitted_today"`
	PeerFragmentText  string `json:"peer_fragment_text,omitempty"`
}

// IsFallback reports whether the displayed fragment is the "no peers yet" message.
func (v View) IsFallback() bool {
	return v.PeerFragmentText == model.FallbackText
}

// Picker returns an index in [0, n).
type Picker func(n int) int

type SweepResult struct {
	Skipped bool
	Deleted int64
}

type Engine struct {
	store Store
	cache localcache.Store
	clock clock.Clock
	pick  Picker

	submitting atomic.Bool

	mu       sync.Mutex
	authorID string
	ready    bool
	view     View
	viewDay  clock.Day
	swept    SweepResult
}

type Option func(*Engine)

func WithPicker(p Picker) Option {
	return func(e *Engine) { e.pick = p }
}

func New(store Store, cache localcache.Store, c clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cache: cache,
		clock: c,
		pick:  rand.Intn,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// View returns the current render state. A view computed on an earlier
// calendar day is reported as not submitted.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentView(clock.Today(e.clock))
}

func (e *Engine) AuthorID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authorID, e.ready
}

// IdentityReady handles the one-shot identity notification. The first call
// fixes the session's author and runs reconciliation and cleanup; a failure
// in one does not stop the other. Later calls only return the current view.
func (e *Engine) IdentityReady(ctx context.Context, authorID string) (View, error) {
	e.mu.Lock()
	if e.ready {
		v := e.currentView(clock.Today(e.clock))
		e.mu.Unlock()
		if authorID != e.authorID {
			logger.Sugar.Warnf("Ignoring identity %s: session already bound to %s", authorID, e.authorID)
		}
		return v, nil
	}
	e.authorID = authorID
	e.ready = true
	e.mu.Unlock()

	view, reconcileErr := e.Reconcile(ctx)
	_, cleanupErr := e.Cleanup(ctx)
	return view, errors.Join(reconcileErr, cleanupErr)
}

// Submit appends text as today's fragment and pairs it with a peer.
// Blank text is dropped without touching the store or the cache. A call
// made while another Submit is still running is ignored. A visitor who
// already wrote today is refused before anything is appended.
func (e *Engine) Submit(ctx context.Context, text string) (View, error) {
	authorID, ok := e.AuthorID()
	if !ok {
		return e.View(), ErrIdentityNotReady
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return e.View(), nil
	}

	if !e.submitting.CompareAndSwap(false, true) {
		logger.Sugar.Infof("Ignoring submit from %s: previous submit still running", authorID)
		return e.View(), ErrSubmitInFlight
	}
	defer e.submitting.Store(false)

	now := e.clock.Now()
	start, day := clock.StartOfDay(now), clock.DayOf(now)

	submitted, err := e.submittedOn(ctx, authorID, start, day)
	if err != nil {
		logger.Sugar.Errorf("Error while checking today's submission for %s: %v", authorID, err)
		return e.View(), err
	}
	if submitted {
		return e.View(), ErrAlreadySubmitted
	}

	if _, err := e.store.Append(ctx, authorID, text); err != nil {
		logger.Sugar.Errorf("Error while creating fragment for %s: %v", authorID, err)
		return e.View(), err
	}

	peer, err := e.fetchPeer(ctx, authorID, start, day)
	if err != nil {
		logger.Sugar.Errorf("Error while fetching peer fragment for %s: %v", authorID, err)
		return e.View(), err
	}

	return e.setView(View{HasSubmittedToday: true, PeerFragmentText: peer}, day), nil
}

// submittedOn answers from the view when it was derived from the store for
// day, and asks the store otherwise.
func (e *Engine) submittedOn(ctx context.Context, authorID string, start time.Time, day clock.Day) (bool, error) {
	e.mu.Lock()
	derived, view := e.viewDay == day, e.view
	e.mu.Unlock()
	if derived {
		return view.HasSubmittedToday, nil
	}

	mine, err := e.store.FindByAuthorSince(ctx, authorID, start)
	if err != nil {
		return false, err
	}
	return len(mine) > 0, nil
}

// Reconcile rebuilds the view after a reload. "Submitted today" is always
// read from the store. The cached peer fragment is reused when it is from
// today and is not the fallback message; otherwise a new peer is drawn.
func (e *Engine) Reconcile(ctx context.Context) (View, error) {
	authorID, ok := e.AuthorID()
	if !ok {
		return e.View(), ErrIdentityNotReady
	}

	now := e.clock.Now()
	start, day := clock.StartOfDay(now), clock.DayOf(now)

	mine, err := e.store.FindByAuthorSince(ctx, authorID, start)
	if err != nil {
		logger.Sugar.Errorf("Error while checking today's submission for %s: %v", authorID, err)
		return e.View(), err
	}
	if len(mine) == 0 {
		return e.setView(View{}, day), nil
	}

	view := View{HasSubmittedToday: true}
	cached, err := localcache.LoadPeer(e.cache)
	if err != nil {
		logger.Sugar.Warnf("Treating cached peer fragment as absent: %v", err)
		cached = nil
	}

	refetch := true
	if cached != nil {
		if cached.Date == day {
			view.PeerFragmentText = cached.Text
			refetch = cached.Text == model.FallbackText
		} else if err := localcache.ClearPeer(e.cache); err != nil {
			logger.Sugar.Warnf("Failed to drop stale peer fragment from %s: %v", cached.Date, err)
		}
	}

	if refetch {
		peer, err := e.fetchPeer(ctx, authorID, start, day)
		if err != nil {
			logger.Sugar.Errorf("Error while refreshing peer fragment for %s: %v", authorID, err)
			return e.setView(view, day), err
		}
		view.PeerFragmentText = peer
	}
	return e.setView(view, day), nil
}

// Cleanup sweeps fragments from previous days at most once per day on this
// device. The marker is only written after a successful sweep.
func (e *Engine) Cleanup(ctx context.Context) (SweepResult, error) {
	if _, ok := e.AuthorID(); !ok {
		return SweepResult{}, ErrIdentityNotReady
	}

	now := e.clock.Now()
	day := clock.DayOf(now)

	marked, ok, err := localcache.LoadCleanupMarker(e.cache)
	if err != nil {
		logger.Sugar.Warnf("Treating cleanup marker as absent: %v", err)
	}
	if ok && marked == day {
		return e.recordSweep(SweepResult{Skipped: true}), nil
	}

	deleted, err := e.store.DeleteBefore(ctx, clock.StartOfDay(now))
	if err != nil {
		logger.Sugar.Errorf("Error while sweeping old fragments: %v", err)
		return SweepResult{}, err
	}
	if err := localcache.SaveCleanupMarker(e.cache, day); err != nil {
		logger.Sugar.Warnf("Failed to record cleanup marker for %s: %v", day, err)
	}
	logger.Sugar.Infof("Swept %d fragments from before %s", deleted, day)
	return e.recordSweep(SweepResult{Deleted: deleted}), nil
}

// LastSweep reports the outcome of the most recent successful Cleanup.
func (e *Engine) LastSweep() SweepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swept
}

// SelectPeer picks uniformly among fragments in snapshot not written by
// authorID, or returns the fallback message when there are none. Callers
// pass one materialized snapshot per flow.
func SelectPeer(snapshot []model.Fragment, authorID string, pick Picker) string {
	candidates := make([]model.Fragment, 0, len(snapshot))
	for _, f := range snapshot {
		if f.AuthorID != authorID {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return model.FallbackText
	}
	return candidates[pick(len(candidates))].Text
}

func (e *Engine) fetchPeer(ctx context.Context, authorID string, start time.Time, day clock.Day) (string, error) {
	snapshot, err := e.store.FindSince(ctx, start)
	if err != nil {
		return "", err
	}
	peer := SelectPeer(snapshot, authorID, e.pick)

	if err := localcache.SavePeer(e.cache, localcache.CachedPeerFragment{Text: peer, Date: day}); err != nil {
		logger.Sugar.Warnf("Failed to cache peer fragment: %v", err)
	}
	return peer, nil
}

func (e *Engine) setView(v View, day clock.Day) View {
	e.mu.Lock()
	e.view = v
	e.viewDay = day
	e.mu.Unlock()
	return v
}

func (e *Engine) recordSweep(r SweepResult) SweepResult {
	e.mu.Lock()
	e.swept = r
	e.mu.Unlock()
	return r
}

func (e *Engine) currentView(today clock.Day) View {
	if e.viewDay != today {
		return View{}
	}
	return e.view
}
