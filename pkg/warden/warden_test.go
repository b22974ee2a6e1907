package warden

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwarden/pkg/messages"
	"chatwarden/pkg/schedule"
	"chatwarden/pkg/timewindow"
)

// fakeHost records broadcasts and evictions.
type fakeHost struct {
	mu         sync.Mutex
	members    []int64
	failEvict  map[int64]bool
	broadcasts []string
	evictions  []string // "id:message"
}

func (h *fakeHost) Members(ctx context.Context) ([]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.members...), nil
}

func (h *fakeHost) Evict(ctx context.Context, memberID int64, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failEvict[memberID] {
		return fmt.Errorf("member %d is stuck", memberID)
	}
	h.evictions = append(h.evictions, fmt.Sprintf("%d:%s", memberID, message))
	return nil
}

func (h *fakeHost) Broadcast(ctx context.Context, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, message)
	return nil
}

func (h *fakeHost) evictionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.evictions)
}

func (h *fakeHost) broadcastCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.broadcasts)
}

// mondaySchedule returns a week open Monday 18:00-20:00 only.
func mondaySchedule(t *testing.T) *schedule.Week {
	t.Helper()
	week := schedule.New()
	win, err := timewindow.Parse("18:00-20:00")
	require.NoError(t, err)
	week.SetSessions(time.Monday, []timewindow.Window{win})
	return week
}

// monday returns a fixed Monday at the given time (2024-01-01 is a Monday).
func monday(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func newTestWarden(t *testing.T, week *schedule.Week, host Host, opts Options, at *time.Time) *Warden {
	t.Helper()
	opts.Now = func() time.Time { return *at }
	return New(week, host, msgSvc(), opts)
}

func msgSvc() *messages.Service {
	return messages.New(messages.Templates{
		Open:    "open!",
		Closed:  "closed!",
		Warning: "closing in {minutes} minute(s)",
	}, nil)
}

func TestFirstPollClosesOnceWithoutFlapping(t *testing.T) {
	host := &fakeHost{members: []int64{1, 2}}
	now := monday(17, 59)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	// Starts assumed open; 17:59 is before the Monday window.
	require.True(t, w.IsOpen())
	w.checkState()
	assert.False(t, w.IsOpen())
	assert.Equal(t, 2, host.evictionCount())

	// Repeated polls before 18:00 must not transition again.
	w.checkState()
	now = monday(17, 59)
	w.checkState()
	assert.Equal(t, 2, host.evictionCount(), "no flapping")

	// At 18:00 the chat opens; opening is a full reset kick.
	now = monday(18, 0)
	w.checkState()
	assert.True(t, w.IsOpen())
	assert.Equal(t, 4, host.evictionCount())
	assert.Contains(t, host.evictions[2], "open!")
}

func TestWarningFiresOnceWithExactMinuteCount(t *testing.T) {
	host := &fakeHost{members: []int64{1}}
	now := monday(19, 56)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	w.checkWarnings()
	require.Equal(t, 1, host.broadcastCount())
	assert.Equal(t, "closing in 4 minute(s)", host.broadcasts[0])

	// Checked repeatedly until closing time: still only one warning.
	for m := 57; m < 60; m++ {
		now = monday(19, m)
		w.checkWarnings()
	}
	assert.Equal(t, 1, host.broadcastCount())

	// A closed->open cycle resets the debounce flag.
	w.SetOpen(false)
	w.SetOpen(true)
	now = monday(19, 58)
	w.checkWarnings()
	assert.Equal(t, 2, host.broadcastCount())
	assert.Equal(t, "closing in 2 minute(s)", host.broadcasts[1])
}

func TestNoWarningOutsideLeadTime(t *testing.T) {
	host := &fakeHost{members: []int64{1}}
	now := monday(19, 0)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	w.checkWarnings()
	assert.Zero(t, host.broadcastCount(), "60 minutes out is too early")

	// Exactly at the end: zero minutes remaining, no warning.
	now = monday(20, 0)
	w.checkWarnings()
	assert.Zero(t, host.broadcastCount())
}

func TestNoWarningWhileClosed(t *testing.T) {
	host := &fakeHost{}
	now := monday(17, 59)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)
	w.checkState() // closes

	now = monday(19, 56)
	w.checkWarnings()
	assert.Zero(t, host.broadcastCount())
}

func TestGracefulClosureDelaysEviction(t *testing.T) {
	host := &fakeHost{members: []int64{1, 2, 3}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		Graceful:   true,
		GraceDelay: 20 * time.Millisecond,
	}, &now)

	w.checkState()
	assert.False(t, w.IsOpen())
	require.Equal(t, 1, host.broadcastCount(), "final warning broadcast")
	assert.Zero(t, host.evictionCount(), "members stay connected during the grace period")

	assert.Eventually(t, func() bool {
		return host.evictionCount() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestImmediateClosureEvictsWithinTransition(t *testing.T) {
	host := &fakeHost{members: []int64{1, 2, 3}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	w.checkState()
	assert.Equal(t, 3, host.evictionCount())
	for _, e := range host.evictions {
		assert.True(t, strings.HasSuffix(e, ":closed!"))
	}
}

// blockingHost stalls every eviction until released, to expose
// transitions overlapping in time.
type blockingHost struct {
	fakeHost
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *blockingHost) Evict(ctx context.Context, memberID int64, message string) error {
	h.once.Do(func() { close(h.started) })
	<-h.release
	return h.fakeHost.Evict(ctx, memberID, message)
}

func TestManualOverrideWaitsForInFlightTransition(t *testing.T) {
	host := &blockingHost{
		fakeHost: fakeHost{members: []int64{1}},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	// The poll tick closes the chat; its eviction blocks in the host.
	tickDone := make(chan struct{})
	go func() {
		w.checkState()
		close(tickDone)
	}()
	<-host.started

	overrideDone := make(chan struct{})
	go func() {
		w.SetOpen(true)
		close(overrideDone)
	}()

	select {
	case <-overrideDone:
		t.Fatal("manual override completed during an in-flight transition")
	case <-time.After(50 * time.Millisecond):
	}

	close(host.release)
	<-tickDone
	<-overrideDone

	// The closure eviction finished before the reopening one began.
	require.True(t, w.IsOpen())
	require.Equal(t, 2, host.evictionCount())
	assert.Equal(t, "1:closed!", host.evictions[0])
	assert.Equal(t, "1:open!", host.evictions[1])
}

func TestGraceCallbackAfterStopIsNoOp(t *testing.T) {
	host := &fakeHost{members: []int64{1}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		Graceful:   true,
		GraceDelay: time.Hour,
	}, &now)

	w.checkState()
	w.Stop()

	// The callback body running after Stop sees the cleared timer and
	// must not evict anyone.
	w.graceEvict()
	assert.Zero(t, host.evictionCount())
}

func TestStopCancelsPendingGraceEviction(t *testing.T) {
	host := &fakeHost{members: []int64{1}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		Graceful:   true,
		GraceDelay: 20 * time.Millisecond,
	}, &now)

	w.checkState()
	w.Stop()
	w.Stop() // idempotent

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, host.evictionCount())
}

func TestReopeningCancelsPendingGraceEviction(t *testing.T) {
	host := &fakeHost{members: []int64{1}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		Graceful:   true,
		GraceDelay: 20 * time.Millisecond,
	}, &now)

	w.checkState()
	w.SetOpen(true)

	time.Sleep(80 * time.Millisecond)
	// Only the open-transition reset kick, never the grace eviction.
	require.Equal(t, 1, host.evictionCount())
	assert.Equal(t, "1:open!", host.evictions[0])
}

func TestEvictionFailureDoesNotBlockOthers(t *testing.T) {
	host := &fakeHost{members: []int64{1, 2, 3}, failEvict: map[int64]bool{2: true}}
	now := monday(20, 1)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)

	w.checkState()
	assert.Equal(t, 2, host.evictionCount(), "members 1 and 3 still evicted")
}

func TestShouldAllowJoinConsultsLiveSchedule(t *testing.T) {
	host := &fakeHost{}
	now := monday(17, 0)
	w := newTestWarden(t, mondaySchedule(t), host, Options{}, &now)
	w.checkState()
	require.False(t, w.IsOpen())

	assert.False(t, w.ShouldAllowJoin())

	// Schedule says open but no poll tick has run yet: join allowed.
	now = monday(18, 30)
	assert.False(t, w.IsOpen())
	assert.True(t, w.ShouldAllowJoin())
}

func TestUpdateScheduleForcesReEvaluation(t *testing.T) {
	host := &fakeHost{}
	week := mondaySchedule(t)
	now := monday(12, 0)
	w := newTestWarden(t, week, host, Options{}, &now)
	w.checkState()
	require.False(t, w.IsOpen())

	// An edit opens the chat at noon; UpdateSchedule applies it at once.
	win, err := timewindow.Parse("11:00-13:00")
	require.NoError(t, err)
	week.AddSession(time.Monday, win)
	w.UpdateSchedule()
	assert.True(t, w.IsOpen())
}

func TestNextStateChange(t *testing.T) {
	host := &fakeHost{}
	week := mondaySchedule(t)
	now := monday(19, 0)
	w := newTestWarden(t, week, host, Options{}, &now)

	// Open with the 18:00-20:00 window active.
	assert.Equal(t, "Closes at 20:00", w.NextStateChange())

	// Closed before today's window.
	now = monday(17, 0)
	w.checkState()
	assert.Equal(t, "Opens at 18:00", w.NextStateChange())

	// Closed after today's window: tomorrow has nothing.
	now = monday(21, 0)
	assert.Equal(t, noScheduledChanges, w.NextStateChange())

	// Tomorrow's first listed session is reported.
	win, err := timewindow.Parse("09:00-17:00")
	require.NoError(t, err)
	week.SetSessions(time.Tuesday, []timewindow.Window{win})
	assert.Equal(t, "Opens tomorrow at 09:00", w.NextStateChange())
}

func TestWarningForMidnightCrossingWindow(t *testing.T) {
	host := &fakeHost{}
	week := schedule.New()
	win, err := timewindow.Parse("22:00-02:00")
	require.NoError(t, err)
	week.SetSessions(time.Monday, []timewindow.Window{win})

	now := monday(23, 57)
	w := newTestWarden(t, week, host, Options{}, &now)

	// 23:57 -> 02:00 is 123 minutes, no warning yet.
	w.checkWarnings()
	assert.Zero(t, host.broadcastCount())
}

func TestStartPollLoopDrivesTransitions(t *testing.T) {
	host := &fakeHost{members: []int64{7}}
	now := monday(12, 0)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		PollInterval: 5 * time.Millisecond,
		WarnInterval: 5 * time.Millisecond,
	}, &now)

	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool { return !w.IsOpen() }, time.Second, 2*time.Millisecond)
	assert.Eventually(t, func() bool { return host.evictionCount() == 1 }, time.Second, 2*time.Millisecond)
}

func TestDoubleStartIsNoOp(t *testing.T) {
	host := &fakeHost{}
	now := monday(19, 0)
	w := newTestWarden(t, mondaySchedule(t), host, Options{
		PollInterval: 5 * time.Millisecond,
		WarnInterval: 5 * time.Millisecond,
	}, &now)

	w.Start()
	w.Start()
	w.Stop()
}
