// Package autosave turns ledger mutation events into debounced, ordered
// writes to a storage.Store.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/storage"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Flush and Clear after Close.
var ErrClosed = errors.New("autosave: saver closed")

// saveTimeout bounds a single background write.
const saveTimeout = 10 * time.Second

// Observer receives the outcome of every write attempt.
type Observer interface {
	SaveCompleted(d time.Duration, err error)
}

type opKind int

const (
	opFlush opKind = iota
	opClear
	opClose
)

type op struct {
	kind   opKind
	ctx    context.Context
	result chan error
}

// Saver coalesces Schedule calls with a trailing debounce and issues one
// Save for the newest document. All store calls happen on a single
// goroutine, so writes land in order and the last scheduled document always
// wins.
type Saver struct {
	store    storage.Store
	window   time.Duration
	log      zerolog.Logger
	observer Observer

	mu      sync.Mutex
	pending *domain.LedgerDocument
	closed  bool

	kick chan struct{}
	ops  chan op
	done chan struct{}
}

// Options tunes a Saver.
type Options struct {
	// Window is the quiet period after the last Schedule before writing.
	Window   time.Duration
	Logger   zerolog.Logger
	Observer Observer
}

// New starts a Saver writing to store.
func New(store storage.Store, opts Options) *Saver {
	s := &Saver{
		store:    store,
		window:   opts.Window,
		log:      opts.Logger,
		observer: opts.Observer,
		kick:     make(chan struct{}, 1),
		ops:      make(chan op),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule records doc as the newest state and (re)arms the debounce timer.
// It never blocks on I/O.
func (s *Saver) Schedule(doc domain.LedgerDocument) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug().Msg("Save scheduled after close; ignored")
		return
	}
	s.pending = &doc
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
		// A kick is already queued; the loop will pick up the newest pending.
	}
}

// Dirty reports whether a scheduled document has not been written yet.
func (s *Saver) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Flush writes any pending document now and waits for the result.
func (s *Saver) Flush(ctx context.Context) error {
	return s.do(ctx, opFlush)
}

// Clear drops any pending document and clears the store, in order with
// respect to earlier writes. A debounced snapshot taken before Clear can
// therefore never be written after it, even when ctx is already done and
// the store is left untouched.
func (s *Saver) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.do(ctx, opClear)
}

// Close flushes pending state and stops the loop. Later Schedule calls are
// ignored. The store itself is not closed.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.do(ctx, opClose)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *Saver) do(ctx context.Context, kind opKind) error {
	req := op{kind: kind, ctx: ctx, result: make(chan error, 1)}
	select {
	case s.ops <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer close(s.done)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
		timerC = nil
	}

	for {
		select {
		case <-s.kick:
			if timer == nil {
				timer = time.NewTimer(s.window)
			} else {
				timer.Reset(s.window)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			_ = s.writePending(ctx)
			cancel()

		case req := <-s.ops:
			stop()
			switch req.kind {
			case opFlush:
				req.result <- s.writePending(req.ctx)
			case opClear:
				s.mu.Lock()
				s.pending = nil
				s.mu.Unlock()
				err := s.store.Clear(req.ctx)
				if err != nil {
					s.log.Warn().Err(err).Msg("Failed to clear stored ledger")
				}
				req.result <- err
			case opClose:
				req.result <- s.writePending(req.ctx)
				return
			}
		}
	}
}

// writePending saves the newest pending document, if any. A failed write
// puts the document back unless something newer arrived meanwhile, so the
// next trigger or the final flush retries it.
func (s *Saver) writePending(ctx context.Context) error {
	s.mu.Lock()
	doc := s.pending
	s.pending = nil
	s.mu.Unlock()

	if doc == nil {
		return nil
	}

	start := time.Now()
	err := s.store.Save(ctx, doc)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.SaveCompleted(elapsed, err)
	}

	if err != nil {
		s.log.Warn().
			Err(err).
			Int("transactions", len(doc.Transactions)).
			Msg("Failed to persist ledger; in-memory copy stays authoritative")

		s.mu.Lock()
		if s.pending == nil {
			s.pending = doc
		}
		s.mu.Unlock()
		return err
	}

	s.log.Debug().
		Int("transactions", len(doc.Transactions)).
		Dur("duration", elapsed).
		Msg("Ledger persisted")
	return nil
}
