// Package capture turns finished voice recordings into ledger edits. It picks
// the transcription call for each target, keeps at most one capture in flight
// per target and reports failures as short-lived notices.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/transcribe"
	"github.com/rs/zerolog"
)

var (
	// ErrTargetBusy rejects a capture while another one for the same target
	// is in flight. The ledger is left untouched.
	ErrTargetBusy = errors.New("capture target is busy")

	// ErrUnknownTarget rejects a capture for a field or transaction that does
	// not exist.
	ErrUnknownTarget = errors.New("capture target does not exist")

	// ErrNoAudio rejects an empty recording.
	ErrNoAudio = errors.New("empty audio")

	// ErrAsyncDisabled is returned by Submit when no job queue is configured.
	ErrAsyncDisabled = errors.New("asynchronous capture is not configured")
)

// State is the per-target capture state.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Outcomes reported to the Observer.
const (
	OutcomeApplied      = "applied"
	OutcomeDiscarded    = "discarded"
	OutcomeNoCredential = "missing_credential"
	OutcomeUnavailable  = "service_unavailable"
	OutcomeRejectedBusy = "rejected_busy"
)

// Audio is a finished recording.
type Audio struct {
	Data     []byte
	MIMEType string
}

// Ledger is the part of ledger.Controller the pipeline drives.
type Ledger interface {
	TryAcquire(t ledger.Target) bool
	Release(t ledger.Target)
	Generation() uint64
	HasTarget(t ledger.Target) bool
	ApplyCapture(gen uint64, t ledger.Target, res ledger.Result) (ledger.Applied, error)
	MarkAIUnavailable()
}

// Observer is told how each capture ended.
type Observer interface {
	CaptureCompleted(kind ledger.TargetKind, outcome string, d time.Duration)
}

// Options holds optional collaborators.
type Options struct {
	Logger    zerolog.Logger
	Notifier  *Notifier
	Publisher jobs.Publisher
	Observer  Observer
	Now       func() time.Time
}

// Pipeline is safe for concurrent use. Different targets are processed in
// parallel; mutations still go through the controller one at a time.
type Pipeline struct {
	ledger    Ledger
	client    transcribe.Client
	log       zerolog.Logger
	notifier  *Notifier
	publisher jobs.Publisher
	observer  Observer
	now       func() time.Time

	mu     sync.Mutex
	states map[string]targetState
}

type targetState struct {
	target     ledger.Target
	state      State
	errorUntil time.Time
}

// TargetStatus is the display state of one target that is not idle.
type TargetStatus struct {
	Target ledger.Target `json:"target"`
	State  State         `json:"state"`
}

// New creates a Pipeline on top of the controller l.
func New(l Ledger, client transcribe.Client, opts Options) *Pipeline {
	p := &Pipeline{
		ledger:    l,
		client:    client,
		log:       opts.Logger,
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		now:       opts.Now,
		states:    make(map[string]targetState),
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.notifier == nil {
		p.notifier = NewNotifier(DefaultNoticeDuration, p.now)
	}
	return p
}

// BeginRecording marks t as capturing while the caller records audio. It
// fails with ErrTargetBusy if t is being processed.
func (p *Pipeline) BeginRecording(t ledger.Target) error {
	if !p.ledger.HasTarget(t) {
		return fmt.Errorf("BeginRecording %s: %w", t, ErrUnknownTarget)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateLocked(t) == StateProcessing {
		return fmt.Errorf("BeginRecording %s: %w", t, ErrTargetBusy)
	}
	p.states[t.Key()] = targetState{target: t, state: StateCapturing}
	return nil
}

// CancelRecording returns a capturing target to idle.
func (p *Pipeline) CancelRecording(t ledger.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateLocked(t) == StateCapturing {
		delete(p.states, t.Key())
	}
}

// Capture transcribes audio into t and waits for the result.
func (p *Pipeline) Capture(ctx context.Context, t ledger.Target, audio Audio) (ledger.Applied, error) {
	gen, err := p.acquire(t, audio)
	if err != nil {
		return ledger.Applied{}, fmt.Errorf("Capture: %w", err)
	}
	applied, err := p.process(ctx, gen, t, audio)
	if err != nil {
		return ledger.Applied{}, fmt.Errorf("Capture: %w", err)
	}
	return applied, nil
}

// Submit reserves t and queues the capture. The returned job id can be
// polled in the job store.
func (p *Pipeline) Submit(ctx context.Context, t ledger.Target, audio Audio) (string, error) {
	if p.publisher == nil {
		return "", fmt.Errorf("Submit: %w", ErrAsyncDisabled)
	}
	gen, err := p.acquire(t, audio)
	if err != nil {
		return "", fmt.Errorf("Submit: %w", err)
	}

	job := &jobs.CaptureJob{
		Target:     t,
		Generation: gen,
		Audio:      audio.Data,
		MIMEType:   audio.MIMEType,
		CreatedAt:  p.now(),
	}
	if err := p.publisher.PublishCapture(ctx, job); err != nil {
		p.setIdle(t)
		p.ledger.Release(t)
		return "", fmt.Errorf("Submit: publish capture job: %w", err)
	}
	p.log.Debug().Str("job_id", job.JobID).Str("target", t.String()).Msg("Capture job queued")
	return job.JobID, nil
}

// HandleJob is the jobs.JobHandler for queued captures.
func (p *Pipeline) HandleJob(ctx context.Context, job *jobs.CaptureJob) error {
	applied, err := p.process(ctx, job.Generation, job.Target, Audio{Data: job.Audio, MIMEType: job.MIMEType})
	switch {
	case err == nil:
		job.Result = &applied
		return nil
	case errors.Is(err, ledger.ErrStale):
		return fmt.Errorf("%w: %w", jobs.ErrDiscarded, err)
	}
	if n, ok := p.notifier.Current(); ok && n.Target == job.Target {
		job.Error = n.Message
	}
	return err
}

// State returns the display state of t.
func (p *Pipeline) State(t ledger.Target) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(t)
}

// Active lists every target that is capturing, processing or showing an
// error, ordered by target key. Expired errors are dropped on the way.
func (p *Pipeline) Active() []TargetStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TargetStatus, 0, len(p.states))
	for _, st := range p.states {
		if state := p.stateLocked(st.target); state != StateIdle {
			out = append(out, TargetStatus{Target: st.target, State: state})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target.Key() < out[j].Target.Key() })
	return out
}

// Notification returns the currently visible failure notice.
func (p *Pipeline) Notification() (Notice, bool) {
	return p.notifier.Current()
}

// DismissNotice hides the current notice before it expires. Target states
// are left alone.
func (p *Pipeline) DismissNotice() {
	p.notifier.Dismiss()
}

func (p *Pipeline) acquire(t ledger.Target, audio Audio) (uint64, error) {
	if len(audio.Data) == 0 {
		return 0, ErrNoAudio
	}
	if !p.ledger.HasTarget(t) {
		return 0, fmt.Errorf("%s: %w", t, ErrUnknownTarget)
	}
	if !p.ledger.TryAcquire(t) {
		p.observe(t, OutcomeRejectedBusy, 0)
		p.log.Debug().Str("target", t.String()).Msg("Capture rejected: target busy")
		return 0, fmt.Errorf("%s: %w", t, ErrTargetBusy)
	}
	gen := p.ledger.Generation()

	p.mu.Lock()
	p.states[t.Key()] = targetState{target: t, state: StateProcessing}
	p.mu.Unlock()
	return gen, nil
}

// process runs the AI call and applies the result. The caller holds the
// busy slot for t; process releases it.
func (p *Pipeline) process(ctx context.Context, gen uint64, t ledger.Target, audio Audio) (ledger.Applied, error) {
	start := p.now()
	defer p.ledger.Release(t)

	log := p.log.With().Str("target", t.String()).Logger()

	res, err := p.transcribe(ctx, t, audio)
	if err != nil {
		p.fail(t, err, start, log)
		return ledger.Applied{}, err
	}

	applied, err := p.ledger.ApplyCapture(gen, t, res)
	if err != nil {
		p.setIdle(t)
		if errors.Is(err, ledger.ErrStale) {
			log.Info().Msg("Discarding capture result for a target that no longer exists")
			p.observe(t, OutcomeDiscarded, p.now().Sub(start))
		}
		return ledger.Applied{}, err
	}

	p.setIdle(t)
	p.observe(t, OutcomeApplied, p.now().Sub(start))
	log.Info().Str("transaction_id", applied.TransactionID).Msg("Capture applied")
	return applied, nil
}

// transcribe picks the AI call for the target kind.
func (p *Pipeline) transcribe(ctx context.Context, t ledger.Target, audio Audio) (ledger.Result, error) {
	mimeType := audio.MIMEType
	if mimeType == "" {
		mimeType = transcribe.DefaultMIMEType
	}

	switch t.Kind {
	case ledger.TargetInfo:
		text, err := p.client.TranscribeStandardized(ctx, audio.Data, mimeType, domain.InfoLabel(t.Info))
		return ledger.Result{Text: text}, err

	case ledger.TargetTransaction:
		if t.TxField == domain.TxDescription {
			text, err := p.client.TranscribeFreeform(ctx, audio.Data, mimeType)
			return ledger.Result{Text: text}, err
		}
		text, err := p.client.TranscribeStandardized(ctx, audio.Data, mimeType, domain.TransactionLabel(t.TxField))
		return ledger.Result{Text: text}, err

	case ledger.TargetNewTransaction:
		parsed, err := p.client.ParseTransaction(ctx, audio.Data, mimeType)
		if err != nil {
			return ledger.Result{}, err
		}
		return ledger.Result{Transaction: newTransactionFrom(parsed)}, nil
	}
	return ledger.Result{}, fmt.Errorf("%s: %w", t, ErrUnknownTarget)
}

// newTransactionFrom fills what the service left out. The date stays nil so
// the controller stamps today's date with its own clock.
func newTransactionFrom(parsed *transcribe.ParsedTransaction) ledger.NewTransaction {
	out := ledger.NewTransaction{}
	if parsed == nil {
		parsed = &transcribe.ParsedTransaction{}
	}
	out.Date = parsed.Date

	desc := domain.PlaceholderDescription
	if parsed.Description != nil && *parsed.Description != "" {
		desc = *parsed.Description
	}
	out.Description = &desc

	var amount int64
	if parsed.Amount != nil && *parsed.Amount > 0 {
		amount = *parsed.Amount
	}
	out.Amount = &amount
	return out
}

func (p *Pipeline) fail(t ledger.Target, err error, start time.Time, log zerolog.Logger) {
	kind := NoticeConnectionFailed
	outcome := OutcomeUnavailable
	if errors.Is(err, transcribe.ErrMissingCredential) {
		kind = NoticeAIUnavailable
		outcome = OutcomeNoCredential
		p.ledger.MarkAIUnavailable()
	}
	notice := p.notifier.Show(kind, t)

	p.mu.Lock()
	p.states[t.Key()] = targetState{target: t, state: StateError, errorUntil: notice.ExpiresAt}
	p.mu.Unlock()

	p.observe(t, outcome, p.now().Sub(start))
	log.Warn().Err(err).Str("notice", string(kind)).Msg("Capture failed")
}

func (p *Pipeline) setIdle(t ledger.Target) {
	p.mu.Lock()
	delete(p.states, t.Key())
	p.mu.Unlock()
}

func (p *Pipeline) stateLocked(t ledger.Target) State {
	st, ok := p.states[t.Key()]
	if !ok {
		return StateIdle
	}
	if st.state == StateError && !p.now().Before(st.errorUntil) {
		delete(p.states, t.Key())
		return StateIdle
	}
	return st.state
}

func (p *Pipeline) observe(t ledger.Target, outcome string, d time.Duration) {
	if p.observer != nil {
		p.observer.CaptureCompleted(t.Kind, outcome, d)
	}
}
