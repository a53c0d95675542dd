package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/clock"
	"accessctl/internal/common/types"
	"accessctl/internal/outbox/domain"
)

// fakeRepository implements domain.Repository in memory, keyed by event id.
type fakeRepository struct {
	events        map[types.EventID]*domain.Event
	claimIDs      []types.EventID
	reassertErr   error
	releasedLocks []types.EventID
	releasedExp   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{events: make(map[types.EventID]*domain.Event)}
}

func (f *fakeRepository) Append(ctx context.Context, event *domain.Event) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeRepository) ClaimBatch(ctx context.Context, now time.Time, lockTTL time.Duration, limit int, instanceID string) ([]types.EventID, error) {
	return f.claimIDs, nil
}

func (f *fakeRepository) Reload(ctx context.Context, id types.EventID) (*domain.Event, error) {
	return f.events[id], nil
}

func (f *fakeRepository) ReassertOwnership(ctx context.Context, id types.EventID, now time.Time, lockTTL time.Duration, instanceID string) error {
	return f.reassertErr
}

func (f *fakeRepository) Save(ctx context.Context, event *domain.Event) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeRepository) ReleaseLock(ctx context.Context, id types.EventID, instanceID string) error {
	f.releasedLocks = append(f.releasedLocks, id)
	return nil
}

func (f *fakeRepository) ReleaseExpiredLocks(ctx context.Context, now time.Time, lockTTL time.Duration) (int, error) {
	return f.releasedExp, nil
}

func (f *fakeRepository) CountByStatus(ctx context.Context, now time.Time, lockTTL time.Duration) (domain.Counts, error) {
	return domain.Counts{}, nil
}

func (f *fakeRepository) OldestAges(ctx context.Context, now time.Time, lockTTL time.Duration) (domain.Ages, error) {
	return domain.Ages{}, nil
}

// fakeSender returns a canned result for every Send call.
type fakeSender struct {
	err *domain.SendError
}

func (f *fakeSender) Send(ctx context.Context, event *domain.Event) *domain.SendError {
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type DispatcherSuite struct {
	suite.Suite
	ctx  context.Context
	repo *fakeRepository
	now  time.Time
	clk  clock.Fixed
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = newFakeRepository()
	s.now = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	s.clk = clock.Fixed{At: s.now}
}

func (s *DispatcherSuite) newEvent(id types.EventID) *domain.Event {
	e := &domain.Event{ID: id, OrgID: types.OrgID("org-1"), EventType: "RuleCreated", Status: domain.StatusPending}
	s.repo.events[id] = e
	return e
}

func (s *DispatcherSuite) TestProcessOneMarksPublishedOnSuccess() {
	id := types.EventID("event-1")
	s.newEvent(id)
	d := New(s.repo, &fakeSender{}, Config{MaxAttempts: 5}, s.clk, discardLogger())

	d.processOne(s.ctx, id)

	ev := s.repo.events[id]
	s.Equal(domain.StatusPublished, ev.Status)
	s.Require().NotNil(ev.PublishedAtUTC)
	s.Equal(s.now, *ev.PublishedAtUTC)
	s.Contains(s.repo.releasedLocks, id, "lock is released even after a successful publish")
}

func (s *DispatcherSuite) TestProcessOneReschedulesOnRetryableFailure() {
	id := types.EventID("event-1")
	s.newEvent(id)
	sendErr := &domain.SendError{Retryable: true, Code: "TIMEOUT"}
	d := New(s.repo, &fakeSender{err: sendErr}, Config{MaxAttempts: 5, MaxRetryBackoff: time.Minute}, s.clk, discardLogger())

	d.processOne(s.ctx, id)

	ev := s.repo.events[id]
	s.Equal(domain.StatusPending, ev.Status)
	s.Equal(1, ev.Attempts)
	s.Require().NotNil(ev.NextAttemptAtUTC)
	s.Contains(s.repo.releasedLocks, id)
}

func (s *DispatcherSuite) TestProcessOneFailsTerminallyOnNonRetryable() {
	id := types.EventID("event-1")
	s.newEvent(id)
	sendErr := &domain.SendError{Retryable: false, Code: "OVERSIZE_RECORD"}
	d := New(s.repo, &fakeSender{err: sendErr}, Config{MaxAttempts: 5}, s.clk, discardLogger())

	d.processOne(s.ctx, id)

	s.Equal(domain.StatusFailed, s.repo.events[id].Status)
}

func (s *DispatcherSuite) TestProcessOneSkipsWhenOwnershipLost() {
	id := types.EventID("event-1")
	s.newEvent(id)
	s.repo.reassertErr = domain.ErrNotOwned
	d := New(s.repo, &fakeSender{}, Config{MaxAttempts: 5}, s.clk, discardLogger())

	d.processOne(s.ctx, id)

	s.Equal(domain.StatusPending, s.repo.events[id].Status, "never touched after losing ownership")
	s.Empty(s.repo.releasedLocks, "a lock we do not own is never released")
}

func (s *DispatcherSuite) TestProcessOneHonorsRetryAfterCeiling() {
	id := types.EventID("event-1")
	s.newEvent(id)
	sendErr := &domain.SendError{Retryable: true, Code: "RATE_LIMITED", RetryAfter: int64(time.Hour)}
	d := New(s.repo, &fakeSender{err: sendErr}, Config{MaxAttempts: 5, MaxRetryBackoff: 10 * time.Second}, s.clk, discardLogger())

	d.processOne(s.ctx, id)

	ev := s.repo.events[id]
	s.Require().NotNil(ev.NextAttemptAtUTC)
	s.Equal(s.now.Add(10*time.Second), *ev.NextAttemptAtUTC, "transport retry-after is clamped to the ceiling")
}

func (s *DispatcherSuite) TestTickDispatchSkipsWhenAlreadyRunning() {
	d := New(s.repo, &fakeSender{}, Config{MaxAttempts: 5}, s.clk, discardLogger())
	d.running.Store(true)

	d.tickDispatch(s.ctx)

	s.Empty(s.repo.events)
}

func (s *DispatcherSuite) TestTickMaintenanceReleasesExpiredLocks() {
	s.repo.releasedExp = 3
	d := New(s.repo, &fakeSender{}, Config{LockTTL: time.Minute}, s.clk, discardLogger())

	d.tickMaintenance(s.ctx)
}

// BackoffSuite covers the unexported backoff schedule directly.
type BackoffSuite struct {
	suite.Suite
}

func TestBackoffSuite(t *testing.T) {
	suite.Run(t, new(BackoffSuite))
}

func (s *BackoffSuite) TestBackoffNeverBelowOneSecond() {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(attempt)
		s.GreaterOrEqual(d, time.Second)
	}
}

func (s *BackoffSuite) TestBackoffClampsPastScheduleLength() {
	last := backoff(len(baseBackoff))
	beyond := backoff(len(baseBackoff) + 5)
	// Both draw from the same final base duration (jittered independently),
	// so neither should exceed the top of that base's jitter range.
	maxJittered := time.Duration(float64(baseBackoff[len(baseBackoff)-1]) * 1.3)
	s.LessOrEqual(last, maxJittered)
	s.LessOrEqual(beyond, maxJittered)
}

func (s *BackoffSuite) TestBackoffHandlesZeroOrNegativeAttempt() {
	d := backoff(0)
	s.GreaterOrEqual(d, time.Second)
	d = backoff(-3)
	s.GreaterOrEqual(d, time.Second)
}
