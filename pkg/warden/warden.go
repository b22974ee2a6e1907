package warden

import (
	"context"
	"sync"
	"time"

	"chatwarden/pkg/logger"
	"chatwarden/pkg/messages"
	"chatwarden/pkg/schedule"
	"chatwarden/pkg/timewindow"
)

// Host is the membership side of the managed chat. The warden holds no
// member state of its own; everything goes through these three calls.
type Host interface {
	// Members lists the IDs of currently connected members.
	Members(ctx context.Context) ([]int64, error)
	// Evict removes one member, delivering the message on a best-effort basis.
	Evict(ctx context.Context, memberID int64, message string) error
	// Broadcast sends a message to the whole chat.
	Broadcast(ctx context.Context, message string) error
}

const (
	defaultPollInterval = 30 * time.Second
	defaultWarnInterval = 60 * time.Second
	defaultGraceDelay   = 60 * time.Second
	defaultWarningLead  = 5

	// hostTimeout bounds one batch of host calls within a tick.
	hostTimeout = 30 * time.Second

	noScheduledChanges = "No scheduled changes"
)

// Options configures a Warden. Zero values pick the defaults.
type Options struct {
	// Graceful delays the eviction after a closure by GraceDelay, with a
	// final warning broadcast first.
	Graceful bool
	// WarningMinutes is the lead time for the pre-close warning.
	WarningMinutes int
	PollInterval   time.Duration
	WarnInterval   time.Duration
	GraceDelay     time.Duration
	// Now is the clock source, for tests.
	Now func() time.Time
}

// Warden owns the chat's open/closed state and keeps it synchronized
// with the weekly schedule. Two periodic loops drive it: a poll tick
// that applies transitions and a warning tick that announces upcoming
// closures. Transitions happen only inside the poll tick or the manual
// override, both funnelled through one internal lock.
type Warden struct {
	week   *schedule.Week
	host   Host
	msgs   *messages.Service
	logger *logger.Logger

	graceful     bool
	warningLead  int
	pollInterval time.Duration
	warnInterval time.Duration
	graceDelay   time.Duration
	now          func() time.Time

	// transMu serializes whole transitions, side effects included. The
	// poll tick, the manual override and the grace-period eviction all
	// take it, so none of them can interleave with another.
	transMu sync.Mutex

	// mu guards the flag fields for cheap reads.
	mu         sync.Mutex
	open       bool
	warned     bool
	running    bool
	stopChan   chan struct{}
	graceTimer *time.Timer
}

// New creates a warden. The chat starts out assumed open; the first poll
// tick after Start corrects that against the schedule.
func New(week *schedule.Week, host Host, msgs *messages.Service, opts Options) *Warden {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.WarnInterval <= 0 {
		opts.WarnInterval = defaultWarnInterval
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = defaultGraceDelay
	}
	if opts.WarningMinutes <= 0 {
		opts.WarningMinutes = defaultWarningLead
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Warden{
		week:         week,
		host:         host,
		msgs:         msgs,
		logger:       logger.New("warden"),
		graceful:     opts.Graceful,
		warningLead:  opts.WarningMinutes,
		pollInterval: opts.PollInterval,
		warnInterval: opts.WarnInterval,
		graceDelay:   opts.GraceDelay,
		now:          opts.Now,
		open:         true,
	}
}

// Start launches the poll and warning loops. Starting an already running
// warden is a logged no-op.
func (w *Warden) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("Warden is already running")
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mu.Unlock()

	w.logger.Info("Starting warden (poll %v, warn %v, graceful=%v)", w.pollInterval, w.warnInterval, w.graceful)

	go w.runLoop("poll", w.pollInterval, stop, w.checkState)
	go w.runLoop("warning", w.warnInterval, stop, w.checkWarnings)
}

// Stop cancels both loops and any pending grace-period eviction.
// Stopping a stopped warden is a no-op.
func (w *Warden) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.graceTimer != nil {
		w.graceTimer.Stop()
		w.graceTimer = nil
	}
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
	w.logger.Info("Warden stopped")
}

// runLoop runs fn immediately and then on every tick until stop closes.
// A failure inside one tick never stops subsequent ticks.
func (w *Warden) runLoop(name string, interval time.Duration, stop <-chan struct{}, fn func()) {
	w.safely(name, fn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.safely(name, fn)
		case <-stop:
			return
		}
	}
}

// safely is the tick failure boundary: log and carry on.
func (w *Warden) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Recovered from panic in %s tick: %v", name, r)
		}
	}()
	fn()
}

// IsOpen returns the authoritative cached state.
func (w *Warden) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// ShouldAllowJoin reports whether a new member may enter. It consults the
// live schedule as well as the cached state, so a join landing between a
// schedule edit and the next poll tick is still let in.
func (w *Warden) ShouldAllowJoin() bool {
	if w.IsOpen() {
		return true
	}
	now := w.now()
	return w.week.OpenOn(now.Weekday(), now)
}

// SetOpen manually overrides the state. It drives the same transition
// code path as the poll tick so evictions and flag resets are never
// skipped on manual intervention, and it waits for any in-flight
// transition to finish before running its own.
func (w *Warden) SetOpen(open bool) {
	w.transMu.Lock()
	defer w.transMu.Unlock()
	w.transition(open)
}

// UpdateSchedule forces an immediate re-evaluation after a schedule
// edit and clears the warning debounce flag.
func (w *Warden) UpdateSchedule() {
	w.mu.Lock()
	w.warned = false
	w.mu.Unlock()
	w.safely("update", w.checkState)
}

// checkState is the poll tick: reconcile cached state with the schedule.
// The schedule read and the transition it decides happen under one
// transition lock hold, so a concurrent override can never act on a
// staler schedule read than the tick it interrupts.
func (w *Warden) checkState() {
	w.transMu.Lock()
	defer w.transMu.Unlock()
	now := w.now()
	w.transition(w.week.OpenOn(now.Weekday(), now))
}

// transition drives the state machine to the desired state, running the
// side effects of the change. A no-op when already there. Callers hold
// transMu.
func (w *Warden) transition(open bool) {
	w.mu.Lock()
	if open == w.open {
		w.mu.Unlock()
		return
	}
	// The warned flag is reset first, and together with the state under
	// the same lock hold.
	w.warned = false
	w.open = open
	if open && w.graceTimer != nil {
		// Reopened during a grace period: the pending eviction is moot.
		w.graceTimer.Stop()
		w.graceTimer = nil
	}
	w.mu.Unlock()

	if open {
		w.logger.Info("Chat opened according to schedule")
		// Opening is a full reset: anyone who slipped in while closed is
		// kicked so everyone reconnects cleanly.
		w.evictAll(w.msgs.Open())
	} else {
		w.logger.Info("Chat closed according to schedule")
		if w.graceful {
			w.broadcast(w.msgs.ClosingNow())
			w.scheduleGraceEviction()
		} else {
			w.evictAll(w.msgs.Closed())
		}
	}
}

// scheduleGraceEviction arms the one-shot grace-period eviction. The
// timer is cancelled by Stop and by a reopening transition.
func (w *Warden) scheduleGraceEviction() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.graceTimer != nil {
		w.graceTimer.Stop()
	}
	w.graceTimer = time.AfterFunc(w.graceDelay, func() {
		w.safely("grace eviction", w.graceEvict)
	})
}

// graceEvict runs when the grace period elapses. The timer field doubles
// as the cancellation sentinel: Stop and a reopening transition both
// clear it, so a callback that fires after either does nothing even when
// the timer had already gone off.
func (w *Warden) graceEvict() {
	w.mu.Lock()
	if w.graceTimer == nil {
		w.mu.Unlock()
		return
	}
	w.graceTimer = nil
	w.mu.Unlock()

	w.transMu.Lock()
	defer w.transMu.Unlock()
	if w.IsOpen() {
		return
	}
	w.evictAll(w.msgs.Closed())
}

// checkWarnings is the warning tick: while open and not yet warned,
// announce the closure once when it is at most warningLead minutes away.
func (w *Warden) checkWarnings() {
	w.mu.Lock()
	if !w.open || w.warned {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	now := w.now()
	end, ok := w.NextCloseTime()
	if !ok {
		return
	}

	remaining := end.Minutes() - (now.Hour()*60 + now.Minute())
	if remaining < 0 {
		// The active window ends after midnight.
		remaining += 24 * 60
	}

	if remaining > 0 && remaining <= w.warningLead {
		w.broadcast(w.msgs.ClosingWarning(remaining))
		w.mu.Lock()
		w.warned = true
		w.mu.Unlock()
		w.logger.Info("Warned members: chat closing in %d minute(s)", remaining)
	}
}

// NextCloseTime returns the end of the currently active window today.
// The second return is false when no window is active, including the
// moment just before a poll tick flips the state; that race self-corrects
// within one poll interval.
func (w *Warden) NextCloseTime() (timewindow.Clock, bool) {
	now := w.now()
	for _, win := range w.week.SessionsFor(now.Weekday()) {
		if win.ActiveAt(now) {
			return win.End, true
		}
	}
	return timewindow.Clock{}, false
}

// NextStateChange describes the next scheduled transition for status
// displays. It is advisory only and never drives the actual transition.
func (w *Warden) NextStateChange() string {
	now := w.now()

	if w.IsOpen() {
		if end, ok := w.NextCloseTime(); ok {
			return "Closes at " + end.String()
		}
		return noScheduledChanges
	}

	nowClock := timewindow.Clock{Hour: now.Hour(), Minute: now.Minute()}
	for _, win := range w.week.SessionsFor(now.Weekday()) {
		if nowClock.Before(win.Start) {
			return "Opens at " + win.Start.String()
		}
	}

	tomorrow := w.week.SessionsFor((now.Weekday() + 1) % 7)
	if len(tomorrow) > 0 {
		return "Opens tomorrow at " + tomorrow[0].Start.String()
	}

	return noScheduledChanges
}

// evictAll kicks every connected member. A failure on one member never
// blocks evicting the rest.
func (w *Warden) evictAll(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
	defer cancel()

	members, err := w.host.Members(ctx)
	if err != nil {
		w.logger.Error("Failed to list members: %v", err)
		return
	}

	evicted := 0
	for _, id := range members {
		if err := w.host.Evict(ctx, id, message); err != nil {
			w.logger.Warn("Failed to evict member %d: %v", id, err)
			continue
		}
		evicted++
	}
	w.logger.Info("Evicted %d of %d member(s)", evicted, len(members))
}

func (w *Warden) broadcast(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), hostTimeout)
	defer cancel()

	if err := w.host.Broadcast(ctx, message); err != nil {
		w.logger.Error("Failed to broadcast message: %v", err)
	}
}
