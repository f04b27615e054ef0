// Package engine runs the poll and merge cycle: it builds the incremental
// request, merges the admitted results into the store, reconciles the
// visuals and evaluates alerts for new creatures.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"livemap/internal/alert"
	"livemap/internal/cursor"
	"livemap/internal/entity"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/lifecycle"
	"livemap/internal/render"
	"livemap/internal/store"
	"livemap/internal/upstream"
)

// Poller performs one poll round-trip.
type Poller interface {
	Poll(ctx context.Context, req upstream.PollRequest) (upstream.PollResponse, error)
}

// Notice is a transient, dismissible error shown to the user.
type Notice struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Observer receives the outcome of each cycle.
type Observer interface {
	Notice(n Notice)
	Alert(a alert.Alert)
	Report(r lifecycle.Report)
}

type nopObserver struct{}

func (nopObserver) Notice(Notice)           {}
func (nopObserver) Alert(alert.Alert)       {}
func (nopObserver) Report(lifecycle.Report) {}

type Options struct {
	Surface   render.Surface
	Epsilon   float64
	Templates alert.Templates
	Observer  Observer
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Result describes one applied poll.
type Result struct {
	Err       error
	Report    lifecycle.Report
	Alerts    []alert.Alert
	Admitted  int
	Mutations int
	Dropped   int
	// Reincluded lists the species the server acknowledged as re-included.
	Reincluded []int
}

type Engine struct {
	surface   render.Surface
	store     *store.Store
	cursors   *cursor.Manager
	lifecycle *lifecycle.Controller
	alerts    *alert.Evaluator
	observer  Observer
	now       func() time.Time
	logger    *slog.Logger

	inFlight  bool
	timestamp int64
}

func New(opts Options) *Engine {
	if opts.Epsilon <= 0 {
		opts.Epsilon = cursor.DefaultEpsilon
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		surface:   opts.Surface,
		store:     store.New(opts.Surface),
		cursors:   cursor.NewManager(opts.Epsilon),
		lifecycle: lifecycle.New(opts.Surface),
		alerts:    alert.NewEvaluator(opts.Templates),
		observer:  opts.Observer,
		now:       opts.Clock,
		logger:    slog.With("component", "engine"),
	}
}

func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) Cursors() *cursor.Manager {
	return e.cursors
}

func (e *Engine) Surface() render.Surface {
	return e.surface
}

func (e *Engine) Now() time.Time {
	return e.now()
}

// InFlight reports whether a poll has begun and not been applied yet.
func (e *Engine) InFlight() bool {
	return e.inFlight
}

// ForceReset makes the next poll of each category a full fetch.
func (e *Engine) ForceReset(cats ...entity.Category) {
	for _, cat := range cats {
		e.cursors.ForceReset(cat)
	}
}

// Begin builds the next poll request and marks a poll as in flight. It
// returns false, without side effects, while another poll is in flight.
func (e *Engine) Begin(view geo.Bounds, f filter.State) (upstream.PollRequest, bool) {
	if e.inFlight {
		return upstream.PollRequest{}, false
	}
	e.inFlight = true

	req := upstream.PollRequest{
		Categories: make(map[entity.Category]upstream.CategoryQuery, len(entity.Polled)),
		Bounds:     view,
		Previous:   e.cursors.Previous(),
		Excluded:   f.ExcludedList(),
		Reincluded: f.ReincludedList(),
		LuredOnly:  f.LuredOnly,
		Zones:      f.Enabled(entity.CategoryZones) && e.store.Zones.Len() == 0,
		Timestamp:  e.timestamp,
	}
	for _, cat := range entity.Polled {
		req.Categories[cat] = upstream.CategoryQuery{
			Enabled: f.Enabled(cat),
			Cursor:  e.cursors.Cursor(cat),
			Reset:   e.cursors.ShouldReset(cat, view),
		}
	}
	return req, true
}

// Apply merges the outcome of the poll started by Begin. The in-flight
// guard is cleared whatever the outcome. On failure nothing but the guard
// changes and a notice is published.
func (e *Engine) Apply(f filter.State, req upstream.PollRequest, resp upstream.PollResponse, err error) Result {
	defer func() { e.inFlight = false }()
	logger := e.logger.With("operation", "Apply")

	now := e.now()
	if err != nil {
		logger.Warn("Poll failed, retrying on next tick", "error", err)
		e.observer.Notice(Notice{ID: uuid.NewString(), Message: err.Error(), At: now})
		return Result{Err: err}
	}

	before := e.store.Mutations()
	m := merger{engine: e, filters: f, now: now}
	m.merge(req, resp)

	e.advance(req, resp)

	report := e.lifecycle.Run(e.store, f, now)
	e.observer.Report(report)

	alerts := e.evaluate(m.admitted, f, now, false)

	result := Result{
		Report:     report,
		Alerts:     alerts,
		Admitted:   len(m.admitted),
		Mutations:  e.store.Mutations() - before,
		Dropped:    resp.Dropped,
		Reincluded: resp.Reincluded,
	}
	logger.Debug("Poll applied",
		"admitted", result.Admitted,
		"mutations", result.Mutations,
		"alerts", len(alerts),
		"dropped", result.Dropped)
	return result
}

// Sync runs Begin, the poll and Apply in one call. It returns false when a
// poll was already in flight.
func (e *Engine) Sync(ctx context.Context, p Poller, view geo.Bounds, f filter.State) (Result, bool) {
	req, ok := e.Begin(view, f)
	if !ok {
		return Result{}, false
	}
	resp, err := p.Poll(ctx, req)
	return e.Apply(f, req, resp, err), true
}

// Reconcile runs the lifecycle controller without a poll, for viewport and
// filter changes and the periodic refresh.
func (e *Engine) Reconcile(f filter.State) lifecycle.Report {
	report := e.lifecycle.Run(e.store, f, e.now())
	e.observer.Report(report)
	return report
}

func (e *Engine) advance(req upstream.PollRequest, resp upstream.PollResponse) {
	for _, cat := range entity.Polled {
		if !req.Enabled(cat) {
			continue
		}
		next, ok := resp.Cursors[cat]
		if !ok {
			next = e.cursors.Cursor(cat)
			if resp.Timestamp > 0 {
				next = cursor.Cursor(formatTimestamp(resp.Timestamp))
			}
		}
		e.cursors.Advance(cat, next, req.Bounds)
	}
	e.cursors.SetPrevious(resp.Covered)
	if resp.Timestamp > 0 {
		e.timestamp = resp.Timestamp
	}
}

// evaluate raises at most one alert per admitted creature. Matching
// creatures bounce unless the user stopped their animation; skip only
// suppresses delivery.
func (e *Engine) evaluate(admitted []admission, f filter.State, now time.Time, skip bool) []alert.Alert {
	var out []alert.Alert
	for _, adm := range admitted {
		entry, ok := adm.table.Get(adm.key)
		if !ok {
			continue
		}
		a, ok := e.alerts.Evaluate(entry.Record, f, now)
		if !ok {
			continue
		}

		if !entry.AnimationDisabled && entry.Handle != 0 {
			if entry.Shown {
				e.surface.SetAnimation(entry.Handle, render.AnimationBounce)
			} else {
				entry.SuspendedAnimation = render.AnimationBounce
			}
		}
		if skip {
			continue
		}
		e.observer.Alert(a)
		out = append(out, a)
	}
	return out
}
