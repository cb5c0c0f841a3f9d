package upload

import "context"

// Phase names a pipeline phase that reports progress.
type Phase string

const (
	PhaseExtract   Phase = "extract"
	PhaseTransform Phase = "transform"
	PhaseLoad      Phase = "load"
)

// band returns the share of overall progress a phase covers.
func (p Phase) band() (lo, hi float64) {
	switch p {
	case PhaseExtract:
		return 0, 100.0 / 3
	case PhaseTransform:
		return 100.0 / 3, 200.0 / 3
	default:
		return 200.0 / 3, 100
	}
}

// Progress is one notification addressed to the user who started a batch.
type Progress struct {
	UploadID  string  `json:"uploadId"`
	Recipient string  `json:"recipient"`
	Phase     Phase   `json:"phase"`
	Percent   float64 `json:"percent"`
}

// ProgressReporter publishes progress notifications. Implementations must
// not block: a dropped notification is acceptable, a stalled batch is not.
type ProgressReporter interface {
	Report(ctx context.Context, p Progress)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(ctx context.Context, p Progress)

func (f ProgressFunc) Report(ctx context.Context, p Progress) { f(ctx, p) }

type nopProgress struct{}

func (nopProgress) Report(context.Context, Progress) {}

// ReportInterval returns how many items pass between two notifications.
func ReportInterval(total int) int {
	if n := total / 16; n > 1 {
		return n
	}
	return 1
}

type phaseProgress struct {
	run      *Run
	phase    Phase
	total    int
	interval int
}

func (r *Run) startPhase(phase Phase, total int) *phaseProgress {
	return &phaseProgress{run: r, phase: phase, total: total, interval: ReportInterval(total)}
}

// step is called after each processed item; done counts items so far.
func (p *phaseProgress) step(ctx context.Context, done int) {
	if done%p.interval != 0 && done != p.total {
		return
	}
	lo, hi := p.phase.band()
	p.emit(ctx, lo+(hi-lo)*float64(done)/float64(p.total))
}

// finish reports the end of the band when there was nothing to process.
func (p *phaseProgress) finish(ctx context.Context) {
	if p.total > 0 {
		return
	}
	_, hi := p.phase.band()
	p.emit(ctx, hi)
}

func (p *phaseProgress) emit(ctx context.Context, percent float64) {
	p.run.progress.Report(ctx, Progress{
		UploadID:  p.run.ID.String(),
		Recipient: p.run.User,
		Phase:     p.phase,
		Percent:   percent,
	})
}
