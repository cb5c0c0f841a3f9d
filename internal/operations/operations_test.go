package operations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massupload/internal/infrastructure"
	"massupload/internal/shared/testutil"
	"massupload/internal/upload"
	"massupload/internal/websocket"
)

type sent struct {
	user    string
	msgType string
	data    any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []sent
}

func (p *recordingPublisher) SendToUser(_ context.Context, user, msgType string, data any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, sent{user: user, msgType: msgType, data: data})
	return 1
}

func (p *recordingPublisher) messages() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sent(nil), p.msgs...)
}

func waitForStatus(t *testing.T, q *JobQueue, id string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetJob(id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestMemoryJobStore(t *testing.T) {
	s := NewMemoryJobStore()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateJob(&Job{ID: "a", User: "jdoe", Type: "PART_MASTER", Status: JobStatusCompleted, CreatedAt: base}))
	require.NoError(t, s.CreateJob(&Job{ID: "b", User: "jdoe", Type: "YIELD_PARAMETER", Status: JobStatusPending, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.CreateJob(&Job{ID: "c", User: "other", Type: "PART_MASTER", Status: JobStatusPending, CreatedAt: base.Add(2 * time.Minute)}))

	assert.ErrorIs(t, s.CreateJob(&Job{ID: "a"}), ErrJobExists)

	jobs, err := s.ListJobs(JobFilter{User: "jdoe"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].ID, "newest first")

	jobs, err = s.ListJobs(JobFilter{Type: "PART_MASTER", Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "c", jobs[0].ID)

	got, err := s.GetJob("a")
	require.NoError(t, err)
	got.Status = JobStatusFailed
	again, _ := s.GetJob("a")
	assert.Equal(t, JobStatusCompleted, again.Status, "store hands out copies")

	_, err = s.GetJob("zzz")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateJob(&Job{ID: "zzz"}), ErrJobNotFound)
	require.NoError(t, s.DeleteJob("c"))
	assert.ErrorIs(t, s.DeleteJob("c"), ErrJobNotFound)
}

func TestMemoryJobStorePurgeBefore(t *testing.T) {
	s := NewMemoryJobStore()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)
	require.NoError(t, s.CreateJob(&Job{ID: "old", Status: JobStatusCompleted, CompletedAt: &old}))
	require.NoError(t, s.CreateJob(&Job{ID: "recent", Status: JobStatusFailed, CompletedAt: &recent}))
	require.NoError(t, s.CreateJob(&Job{ID: "running", Status: JobStatusRunning}))

	assert.Equal(t, 1, s.PurgeBefore(old.Add(time.Hour)))
	_, err := s.GetJob("old")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobQueueRunsTasks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	q := NewJobQueue(2, 4, NewMemoryJobStore(), logger)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(time.Second) })

	require.NoError(t, q.Enqueue(&Job{ID: "ok", Type: "PART_MASTER", User: "jdoe"}, func(context.Context) (any, error) {
		return map[string]int{"insertCount": 3}, nil
	}))
	require.NoError(t, q.Enqueue(&Job{ID: "bad", Type: "PART_MASTER", User: "jdoe"}, func(context.Context) (any, error) {
		return nil, errors.New("workbook has no sheet")
	}))

	done := waitForStatus(t, q, "ok", JobStatusCompleted)
	assert.Equal(t, map[string]int{"insertCount": 3}, done.Result)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)

	failed := waitForStatus(t, q, "bad", JobStatusFailed)
	assert.Equal(t, "workbook has no sheet", failed.Error)
}

func TestJobQueueRecoversPanics(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	q := NewJobQueue(1, 2, NewMemoryJobStore(), logger)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(time.Second) })

	require.NoError(t, q.Enqueue(&Job{ID: "boom"}, func(context.Context) (any, error) { panic("nil sheet") }))
	job := waitForStatus(t, q, "boom", JobStatusFailed)
	assert.Contains(t, job.Error, "nil sheet")
	assert.True(t, logs.ContainsMessage("job processing panicked"))

	// the worker survives
	require.NoError(t, q.Enqueue(&Job{ID: "after"}, func(context.Context) (any, error) { return nil, nil }))
	waitForStatus(t, q, "after", JobStatusCompleted)
}

func TestJobQueueRejectsWhenFull(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store := NewMemoryJobStore()
	q := NewJobQueue(1, 1, store, logger)

	noop := func(context.Context) (any, error) { return nil, nil }
	require.NoError(t, q.Enqueue(&Job{ID: "first"}, noop))
	assert.ErrorIs(t, q.Enqueue(&Job{ID: "second"}, noop), ErrQueueFull)

	job, err := store.GetJob("second")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, q.Pending())

	require.NoError(t, q.Stop(time.Second))
	job, err = store.GetJob("first")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status, "buffered jobs fail on stop")
	assert.ErrorIs(t, q.Enqueue(&Job{ID: "third"}, noop), ErrQueueStopped)
}

func TestJobQueuePropagatesTraceID(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	q := NewJobQueue(1, 1, NewMemoryJobStore(), logger)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(time.Second) })

	seen := make(chan string, 1)
	require.NoError(t, q.Enqueue(&Job{ID: "traced", TraceID: "req-42"}, func(ctx context.Context) (any, error) {
		seen <- infrastructure.GetTraceID(ctx)
		return nil, nil
	}))
	select {
	case id := <-seen:
		assert.Equal(t, "req-42", id)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestStatusBroadcasterLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	logger, _ := testutil.NewTestLogger(t)
	sb := NewStatusBroadcaster(pub, logger)
	ctx := context.Background()

	sb.Track(ctx, "u1", "PART_MASTER", "jdoe")
	sb.Progress(ctx, upload.Progress{UploadID: "u1", Recipient: "jdoe", Phase: upload.PhaseTransform, Percent: 50})
	sb.Progress(ctx, upload.Progress{UploadID: "u1", Recipient: "jdoe", Phase: upload.PhaseTransform, Percent: 40})

	s, ok := sb.Snapshot("u1")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, 50.0, s.Percent, "percent never goes backwards")

	sb.Complete(ctx, "u1", upload.Summary{CriticalErrors: true})
	sb.Progress(ctx, upload.Progress{UploadID: "u1", Percent: 90})

	s, _ = sb.Snapshot("u1")
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 100.0, s.Percent)
	assert.Equal(t, "Upload rejected", s.Message)
	require.NotNil(t, s.CompletedAt)

	msgs := pub.messages()
	require.Len(t, msgs, 4, "late progress after completion is not published")
	assert.Equal(t, websocket.TypeUploadStatus, msgs[0].msgType)
	assert.Equal(t, websocket.TypeUploadProgress, msgs[1].msgType)
	assert.Equal(t, websocket.TypeUploadStatus, msgs[3].msgType)
	for _, m := range msgs {
		assert.Equal(t, "jdoe", m.user)
	}

	// unknown uploads are ignored
	sb.Progress(ctx, upload.Progress{UploadID: "nope", Percent: 10})
	sb.Fail(ctx, "nope", errors.New("x"))
	assert.Len(t, pub.messages(), 4)
}

func TestStatusBroadcasterFailAndCleanup(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	sb := NewStatusBroadcaster(nil, logger)
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sb.now = func() time.Time { return clock }
	ctx := context.Background()

	sb.Track(ctx, "u1", "PART_MASTER", "jdoe")
	sb.Fail(ctx, "u1", errors.New("unreadable workbook"))
	sb.Track(ctx, "u2", "PART_MASTER", "jdoe")

	s, _ := sb.Snapshot("u1")
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "unreadable workbook", s.Error)

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, 1, sb.Cleanup(time.Hour))
	_, ok := sb.Snapshot("u1")
	assert.False(t, ok)
	_, ok = sb.Snapshot("u2")
	assert.True(t, ok, "unfinished uploads are kept")
}

type blockingPublisher struct {
	release chan struct{}
	count   int
	mu      sync.Mutex
}

func (p *blockingPublisher) SendToUser(context.Context, string, string, any) int {
	<-p.release
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	return 1
}

func TestProgressNotifierNeverBlocks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	pub := &blockingPublisher{release: make(chan struct{})}
	sb := NewStatusBroadcaster(pub, logger)
	n := NewProgressNotifier(sb, nil, 2, logger)

	// Track publishes synchronously, so let it through first.
	go sb.Track(context.Background(), "u1", "PART_MASTER", "jdoe")
	pub.release <- struct{}{}

	var reporter upload.ProgressReporter = n
	start := time.Now()
	for i := 1; i <= 50; i++ {
		reporter.Report(context.Background(), upload.Progress{UploadID: "u1", Recipient: "jdoe", Percent: float64(i * 2)})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Positive(t, n.Dropped())

	close(pub.release)
	n.Close()
	n.Report(context.Background(), upload.Progress{UploadID: "u1", Percent: 100})

	s, ok := sb.Snapshot("u1")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Greater(t, s.Percent, 0.0)
}
