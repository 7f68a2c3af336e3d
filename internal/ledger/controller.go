// Package ledger owns the in-memory ledger document. Every other component
// reads snapshots or goes through the Controller's operations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotLoaded is returned by mutations attempted before Load.
	ErrNotLoaded = errors.New("ledger not loaded yet")

	// ErrStale means a capture result arrived for a target that was reset
	// or removed while the AI call was in flight. The result is dropped.
	ErrStale = errors.New("capture target no longer exists")
)

// Loader reads the stored document. storage.Store satisfies it.
type Loader interface {
	Load(ctx context.Context) (*domain.LedgerDocument, error)
}

// Persister receives every new document state. autosave.Saver satisfies it.
type Persister interface {
	Schedule(doc domain.LedgerDocument)
	Clear(ctx context.Context) error
}

// Options holds injectable collaborators; zero values pick real ones.
type Options struct {
	Logger zerolog.Logger
	NewID  func() string
	Now    func() time.Time
}

// NewTransaction is the input of AddTransaction. Nil fields get defaults.
type NewTransaction struct {
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	Amount      *int64  `json:"amount,omitempty"`
}

// Result is what a finished capture writes into its target. Text is used
// for field targets, Transaction for the new-transaction target.
type Result struct {
	Text        string
	Transaction NewTransaction
}

// Applied describes the effect of ApplyCapture.
type Applied struct {
	Target        Target `json:"target"`
	TransactionID string `json:"transactionId,omitempty"`
	Value         string `json:"value,omitempty"`
}

// Controller is safe for concurrent use. Mutations are serialized by one
// mutex and each schedules a save while still holding it, so saves are
// scheduled in mutation order.
type Controller struct {
	loader    Loader
	persister Persister
	log       zerolog.Logger
	newID     func() string
	now       func() time.Time

	mu     sync.Mutex
	doc    domain.LedgerDocument
	loaded bool
	gen    uint64
	busy   map[string]Target

	aiAvailable atomic.Bool
}

// New creates a Controller. It holds no document until Load.
func New(loader Loader, persister Persister, opts Options) *Controller {
	c := &Controller{
		loader:    loader,
		persister: persister,
		log:       opts.Logger,
		newID:     opts.NewID,
		now:       opts.Now,
		doc:       domain.DefaultDocument(),
		busy:      make(map[string]Target),
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.NewString() }
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Load replaces the in-memory document with the stored one, or with the
// default sample when nothing is stored. A store read error is logged and
// also falls back to the sample. Mutations are accepted afterwards.
func (c *Controller) Load(ctx context.Context) error {
	stored, err := c.loader.Load(ctx)

	var doc domain.LedgerDocument
	switch {
	case err == nil && stored != nil:
		doc = stored.Clone()
		doc.Normalize(c.newID)
	case err == nil, errors.Is(err, storage.ErrNotFound):
		c.log.Info().Msg("No stored ledger; starting from sample document")
		doc = domain.DefaultDocument()
	default:
		if ctx.Err() != nil {
			return fmt.Errorf("Load: %w", ctx.Err())
		}
		c.log.Warn().Err(err).Msg("Failed to read stored ledger; starting from sample document")
		doc = domain.DefaultDocument()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = doc
	c.loaded = true
	c.gen++

	c.log.Info().
		Int("transactions", len(doc.Transactions)).
		Uint64("generation", c.gen).
		Msg("Ledger loaded")
	return nil
}

// Loaded reports whether Load has completed.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// UpdateInfoField stores value in the given header field as typed.
func (c *Controller) UpdateInfoField(field domain.InfoField, value string) error {
	if _, err := domain.ParseInfoField(string(field)); err != nil {
		return fmt.Errorf("UpdateInfoField: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return fmt.Errorf("UpdateInfoField: %w", ErrNotLoaded)
	}
	c.doc.Info.Set(field, value)
	c.changedLocked()
	return nil
}

// AddTransaction appends a transaction and returns its fresh id. The date
// defaults to today, description to "" and amount to 0.
func (c *Controller) AddTransaction(in NewTransaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return "", fmt.Errorf("AddTransaction: %w", ErrNotLoaded)
	}
	id := c.addLocked(in)
	c.changedLocked()
	return id, nil
}

// UpdateTransaction sets one field of one transaction. It reports false and
// changes nothing when id is unknown.
func (c *Controller) UpdateTransaction(id string, field domain.TransactionField, value string) (bool, error) {
	if _, err := domain.ParseTransactionField(string(field)); err != nil {
		return false, fmt.Errorf("UpdateTransaction: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false, fmt.Errorf("UpdateTransaction: %w", ErrNotLoaded)
	}
	if !c.setTransactionFieldLocked(id, field, value) {
		return false, nil
	}
	c.changedLocked()
	return true, nil
}

// RemoveTransaction deletes a transaction, keeping the order of the rest.
func (c *Controller) RemoveTransaction(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false, fmt.Errorf("RemoveTransaction: %w", ErrNotLoaded)
	}
	i := c.doc.IndexOf(id)
	if i < 0 {
		return false, nil
	}
	c.doc.Transactions = append(c.doc.Transactions[:i], c.doc.Transactions[i+1:]...)
	c.changedLocked()
	return true, nil
}

// Reset restores the sample document and clears the store. Any pending
// debounced save is dropped by the persister. The lock is held across the
// clear so no mutation can slip in between. A clear failure is logged; the
// in-memory reset stands.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return fmt.Errorf("Reset: %w", ErrNotLoaded)
	}

	c.doc = domain.DefaultDocument()
	c.gen++

	// The reset must reach the persister even if the caller has gone away.
	if err := c.persister.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear stored ledger during reset")
	}
	c.log.Info().Uint64("generation", c.gen).Msg("Ledger reset to sample document")
	return nil
}

// Snapshot returns a deep copy of the current document.
func (c *Controller) Snapshot() domain.LedgerDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Clone()
}

// Generation changes on every Load and Reset. Captures remember it to
// detect that the document they started on is gone.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// HasTarget reports whether t can still receive a capture result.
func (c *Controller) HasTarget(t Target) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasTargetLocked(t)
}

// ApplyCapture writes a capture result into t, atomically and only if the
// document generation is still gen and t still exists. Otherwise it returns
// ErrStale and changes nothing.
func (c *Controller) ApplyCapture(gen uint64, t Target, res Result) (Applied, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return Applied{}, fmt.Errorf("ApplyCapture: %w", ErrNotLoaded)
	}
	if gen != c.gen || !c.hasTargetLocked(t) {
		return Applied{}, fmt.Errorf("ApplyCapture %s: %w", t, ErrStale)
	}

	out := Applied{Target: t}
	switch t.Kind {
	case TargetInfo:
		c.doc.Info.Set(t.Info, res.Text)
		out.Value = res.Text
	case TargetTransaction:
		c.setTransactionFieldLocked(t.TxID, t.TxField, res.Text)
		out.TransactionID = t.TxID
		tx := c.doc.Transactions[c.doc.IndexOf(t.TxID)]
		out.Value = transactionFieldValue(tx, t.TxField)
	case TargetNewTransaction:
		out.TransactionID = c.addLocked(res.Transaction)
	default:
		return Applied{}, fmt.Errorf("ApplyCapture: unknown target kind %q", t.Kind)
	}
	c.changedLocked()
	return out, nil
}

// TryAcquire marks t busy. It returns false if t is already busy.
func (c *Controller) TryAcquire(t Target) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := t.Key()
	if _, ok := c.busy[key]; ok {
		return false
	}
	c.busy[key] = t
	return true
}

// Release frees the busy slot taken by TryAcquire.
func (c *Controller) Release(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, t.Key())
}

// IsBusy reports whether a capture holds t.
func (c *Controller) IsBusy(t Target) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[t.Key()]
	return ok
}

// Busy lists busy targets ordered by key.
func (c *Controller) Busy() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.busy))
	for k := range c.busy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Target, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.busy[k])
	}
	return out
}

// SetAIAvailable records whether a credential is configured at startup.
func (c *Controller) SetAIAvailable(ok bool) {
	c.aiAvailable.Store(ok)
}

// MarkAIUnavailable flips the flag off after a missing-credential failure.
func (c *Controller) MarkAIUnavailable() {
	if c.aiAvailable.Swap(false) {
		c.log.Warn().Msg("AI service marked unavailable: no credential")
	}
}

// AIAvailable only drives status display; calls are never blocked by it.
func (c *Controller) AIAvailable() bool {
	return c.aiAvailable.Load()
}

func (c *Controller) changedLocked() {
	c.persister.Schedule(c.doc.Clone())
}

func (c *Controller) addLocked(in NewTransaction) string {
	tx := domain.Transaction{ID: c.uniqueIDLocked()}
	if in.Date != nil && *in.Date != "" {
		tx.Date = *in.Date
	} else {
		tx.Date = domain.Today(c.now())
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.Amount != nil && *in.Amount > 0 {
		tx.Amount = *in.Amount
	}
	c.doc.Transactions = append(c.doc.Transactions, tx)
	return tx.ID
}

// uniqueIDLocked guards against an injected generator repeating itself.
func (c *Controller) uniqueIDLocked() string {
	for {
		id := c.newID()
		if id != "" && c.doc.IndexOf(id) < 0 {
			return id
		}
	}
}

func (c *Controller) setTransactionFieldLocked(id string, field domain.TransactionField, value string) bool {
	i := c.doc.IndexOf(id)
	if i < 0 {
		return false
	}
	tx := &c.doc.Transactions[i]
	switch field {
	case domain.TxDate:
		tx.Date = value
	case domain.TxDescription:
		tx.Description = value
	case domain.TxAmount:
		tx.Amount = domain.SanitizeAmount(value)
	}
	return true
}

func (c *Controller) hasTargetLocked(t Target) bool {
	switch t.Kind {
	case TargetInfo:
		_, err := domain.ParseInfoField(string(t.Info))
		return err == nil
	case TargetTransaction:
		return c.doc.IndexOf(t.TxID) >= 0
	case TargetNewTransaction:
		return true
	}
	return false
}

func transactionFieldValue(tx domain.Transaction, f domain.TransactionField) string {
	switch f {
	case domain.TxDate:
		return tx.Date
	case domain.TxDescription:
		return tx.Description
	case domain.TxAmount:
		return fmt.Sprintf("%d", tx.Amount)
	}
	return ""
}
