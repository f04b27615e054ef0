// Package session owns the live state of one dashboard: the engine, the
// filter snapshot and the preferences. A single goroutine serialises all
// access; API calls are queued to it as commands.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"livemap/internal/alert"
	"livemap/internal/engine"
	"livemap/internal/filter"
	"livemap/internal/geo"
	"livemap/internal/lifecycle"
	"livemap/internal/prefs"
	"livemap/internal/render"
	"livemap/internal/shared/errors"
	"livemap/internal/upstream"
)

// Backend is the map backend as used by a session.
type Backend interface {
	engine.Poller
	Scout(ctx context.Context, encounterID string, expires time.Time) (upstream.ScoutResult, error)
	ChangeLocation(ctx context.Context, p geo.LatLng) error
	SetSearch(ctx context.Context, on bool) error
	SearchStatus(ctx context.Context) (upstream.SearchStatus, error)
	PointHistory(ctx context.Context, spawnPointID string) ([]upstream.SpeciesCount, error)
	AreaHistory(ctx context.Context, b geo.Bounds) ([]upstream.PointSummary, error)
}

// Publisher pushes session events to connected browsers.
type Publisher interface {
	Notice(n engine.Notice)
	Report(r lifecycle.Report)
	Status(data any)
}

type Options struct {
	Backend   Backend
	Prefs     prefs.Store
	PrefsID   string
	Surface   *render.Headless
	Publisher Publisher
	Notifiers []alert.Notifier
	Templates alert.Templates
	Location  geo.LatLng

	PollInterval   time.Duration
	StatusInterval time.Duration
	Epsilon        float64
	Clock          func() time.Time
}

const maxNotices = 20

type pollOutcome struct {
	req     upstream.PollRequest
	resp    upstream.PollResponse
	err     error
	filters filter.State
	version int
}

type Session struct {
	ID string

	backend   Backend
	prefStore prefs.Store
	prefsID   string
	surface   *render.Headless
	publisher Publisher
	notifiers []alert.Notifier
	engine    *engine.Engine

	pollInterval   time.Duration
	statusInterval time.Duration

	// Owned by the run goroutine.
	prefs      prefs.Preferences
	exclusions *filter.Exclusions
	filters    filter.State
	version    int
	location   geo.LatLng
	status     upstream.SearchStatus
	notices    []engine.Notice
	lastResult engine.Result

	cmds    chan func()
	results chan pollOutcome
	done    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ctx     context.Context
	logger  *slog.Logger
}

// New loads the preferences and builds the session. Start launches it.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Backend == nil || opts.Surface == nil || opts.Prefs == nil {
		return nil, errors.Validation("session needs a backend, a surface and a preferences store")
	}
	if opts.PrefsID == "" {
		opts.PrefsID = prefs.DefaultID
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 5 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}

	p, err := prefs.Load(ctx, opts.Prefs, opts.PrefsID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:             uuid.NewString(),
		backend:        opts.Backend,
		prefStore:      opts.Prefs,
		prefsID:        opts.PrefsID,
		surface:        opts.Surface,
		publisher:      opts.Publisher,
		notifiers:      opts.Notifiers,
		pollInterval:   opts.PollInterval,
		statusInterval: opts.StatusInterval,
		prefs:          p,
		exclusions:     filter.NewExclusions(p.Excluded),
		location:       opts.Location,
		cmds:           make(chan func()),
		results:        make(chan pollOutcome, 1),
		done:           make(chan struct{}),
	}
	s.logger = slog.With("component", "session", "session_id", s.ID)
	s.filters = s.buildFilters()
	s.engine = engine.New(engine.Options{
		Surface:   opts.Surface,
		Epsilon:   opts.Epsilon,
		Templates: opts.Templates,
		Observer:  observer{s},
		Clock:     opts.Clock,
	})
	return s, nil
}

func (s *Session) buildFilters() filter.State {
	return s.exclusions.Apply(s.prefs.Builder()).Build()
}

// Start runs the owner goroutine until ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		s.run(s.ctx)
	}()
	s.logger.Info("Session started",
		"operation", "Start",
		"poll_interval", s.pollInterval,
		"status_interval", s.statusInterval)
}

// Close stops the loops and waits for in-flight work to finish.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Session closed", "operation", "Close")
}

func (s *Session) run(ctx context.Context) {
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	status := time.NewTicker(s.statusInterval)
	defer status.Stop()

	s.startPoll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			s.startPoll(ctx)
		case out := <-s.results:
			s.finishPoll(out)
		case <-status.C:
			s.startStatus(ctx)
		case fn := <-s.cmds:
			fn()
		}
	}
}

// startPoll skips the tick while a poll is in flight.
func (s *Session) startPoll(ctx context.Context) {
	req, ok := s.engine.Begin(s.surface.Viewport(), s.filters)
	if !ok {
		s.logger.Debug("Poll in flight, skipping tick", "operation", "startPoll")
		return
	}

	f, version := s.filters, s.version
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		resp, err := s.backend.Poll(ctx, req)
		select {
		case s.results <- pollOutcome{req: req, resp: resp, err: err, filters: f, version: version}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) finishPoll(out pollOutcome) {
	res := s.engine.Apply(out.filters, out.req, out.resp, out.err)
	s.lastResult = res

	if len(res.Reincluded) > 0 {
		s.exclusions.Acknowledge(res.Reincluded)
		s.filters = s.buildFilters()
		s.version++
	}
	if out.version != s.version {
		s.engine.Reconcile(s.filters)
	}
}

func (s *Session) startStatus(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		st, err := s.backend.SearchStatus(ctx)
		if err != nil {
			s.logger.Debug("Search status unavailable", "operation", "startStatus", "error", err)
			return
		}
		s.publisher.Status(st)
		_ = s.do(ctx, func() error {
			s.status = st
			return nil
		})
	}()
}

// do runs fn on the owner goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func() { errc <- fn() }:
	case <-ctx.Done():
		return errors.WrapUnavailable("request cancelled", ctx.Err())
	case <-s.done:
		return errors.Unavailable("session closed")
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return errors.WrapUnavailable("request cancelled", ctx.Err())
	case <-s.done:
		return errors.Unavailable("session closed")
	}
}

type nopPublisher struct{}

func (nopPublisher) Notice(engine.Notice)    {}
func (nopPublisher) Report(lifecycle.Report) {}
func (nopPublisher) Status(any)              {}

// observer receives engine callbacks on the owner goroutine.
type observer struct {
	s *Session
}

func (o observer) Notice(n engine.Notice) {
	o.s.notices = append(o.s.notices, n)
	if len(o.s.notices) > maxNotices {
		o.s.notices = o.s.notices[len(o.s.notices)-maxNotices:]
	}
	o.s.publisher.Notice(n)
}

func (o observer) Alert(a alert.Alert) {
	ctx := o.s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, n := range o.s.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			o.s.logger.Warn("Alert delivery failed", "operation", "Alert", "encounter_id", a.EncounterID, "error", err)
		}
	}
}

func (o observer) Report(r lifecycle.Report) {
	o.s.publisher.Report(r)
}
