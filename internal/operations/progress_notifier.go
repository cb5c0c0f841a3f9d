package operations

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"massupload/internal/infrastructure"
	"massupload/internal/upload"
)

// ProgressNotifier implements upload.ProgressReporter. Report only ever
// attempts a non-blocking send into a bounded buffer; a single goroutine
// forwards buffered notifications to the broadcaster.
type ProgressNotifier struct {
	updates     chan notification
	broadcaster *StatusBroadcaster
	metrics     *infrastructure.UploadMetrics
	logger      *slog.Logger

	dropped atomic.Int64
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

type notification struct {
	ctx context.Context
	p   upload.Progress
}

// NewProgressNotifier starts the forwarding goroutine. metrics may be nil.
func NewProgressNotifier(b *StatusBroadcaster, metrics *infrastructure.UploadMetrics, buffer int, logger *slog.Logger) *ProgressNotifier {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	n := &ProgressNotifier{
		updates:     make(chan notification, buffer),
		broadcaster: b,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "progress_notifier")),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go n.forward()
	return n
}

// Report implements upload.ProgressReporter.
func (n *ProgressNotifier) Report(ctx context.Context, p upload.Progress) {
	select {
	case <-n.stop:
		return
	default:
	}
	select {
	case n.updates <- notification{ctx: context.WithoutCancel(ctx), p: p}:
	default:
		n.dropped.Add(1)
		n.metrics.RecordProgressDropped(ctx)
		n.logger.DebugContext(ctx, "progress notification dropped",
			slog.String("upload_id", p.UploadID),
			slog.Float64("percent", p.Percent))
	}
}

// Dropped returns how many notifications were discarded.
func (n *ProgressNotifier) Dropped() int64 { return n.dropped.Load() }

func (n *ProgressNotifier) forward() {
	defer close(n.done)
	for {
		select {
		case u := <-n.updates:
			n.broadcaster.Progress(u.ctx, u.p)
		case <-n.stop:
			// flush what is already buffered
			for {
				select {
				case u := <-n.updates:
					n.broadcaster.Progress(u.ctx, u.p)
				default:
					return
				}
			}
		}
	}
}

// Close stops the notifier after forwarding buffered notifications.
func (n *ProgressNotifier) Close() {
	n.once.Do(func() { close(n.stop) })
	<-n.done
}
