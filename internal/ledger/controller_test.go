package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/voice-ledger/internal/autosave"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPersister is a hand-written Persister mock.
type recordingPersister struct {
	mu        sync.Mutex
	scheduled []domain.LedgerDocument
	clears    int
	ClearFunc func(ctx context.Context) error
}

func (p *recordingPersister) Schedule(doc domain.LedgerDocument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, doc)
}

func (p *recordingPersister) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.clears++
	p.mu.Unlock()
	if p.ClearFunc != nil {
		return p.ClearFunc(ctx)
	}
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.scheduled)
}

func (p *recordingPersister) last() domain.LedgerDocument {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduled[len(p.scheduled)-1]
}

type fixedLoader struct {
	doc *domain.LedgerDocument
	err error
}

func (l fixedLoader) Load(ctx context.Context) (*domain.LedgerDocument, error) {
	return l.doc, l.err
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tx-%d", n)
	}
}

var testNow = time.Date(2023, 10, 5, 14, 30, 0, 0, time.UTC)

func newLoaded(t *testing.T) (*Controller, *recordingPersister) {
	t.Helper()
	p := &recordingPersister{}
	c := New(fixedLoader{err: storage.ErrNotFound}, p, Options{
		Logger: logger.Nop(),
		NewID:  sequentialIDs(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, c.Load(context.Background()))
	return c, p
}

func strPtr(s string) *string { return &s }
func intPtr(v int64) *int64   { return &v }

func TestLoad_NothingStoredGivesSample(t *testing.T) {
	c, p := newLoaded(t)

	assert.Equal(t, domain.DefaultDocument(), c.Snapshot())
	assert.True(t, c.Loaded())
	assert.Equal(t, 0, p.count(), "loading must not schedule a save")
}

func TestLoad_StoredDocumentIsNormalized(t *testing.T) {
	stored := &domain.LedgerDocument{
		Info: domain.TaxPayerInfo{Name: "Trần Thị B"},
		Transactions: []domain.Transaction{
			{ID: "a", Amount: -5},
			{ID: "a", Amount: 10},
			{ID: "", Amount: 20},
		},
	}
	c := New(fixedLoader{doc: stored}, &recordingPersister{}, Options{Logger: logger.Nop(), NewID: sequentialIDs()})
	require.NoError(t, c.Load(context.Background()))

	doc := c.Snapshot()
	assert.Equal(t, "Trần Thị B", doc.Info.Name)
	require.Len(t, doc.Transactions, 3)
	assert.Equal(t, "a", doc.Transactions[0].ID)
	assert.Equal(t, int64(0), doc.Transactions[0].Amount)
	assert.Equal(t, "tx-1", doc.Transactions[1].ID)
	assert.Equal(t, "tx-2", doc.Transactions[2].ID)
}

func TestLoad_ReadErrorFallsBackToSample(t *testing.T) {
	c := New(fixedLoader{err: errors.New("disk on fire")}, &recordingPersister{}, Options{Logger: logger.Nop()})
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, domain.DefaultDocument(), c.Snapshot())
}

func TestMutationsBeforeLoadAreRejected(t *testing.T) {
	p := &recordingPersister{}
	c := New(fixedLoader{err: storage.ErrNotFound}, p, Options{Logger: logger.Nop()})

	_, err := c.AddTransaction(NewTransaction{})
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, c.UpdateInfoField(domain.InfoName, "x"), ErrNotLoaded)
	_, err = c.UpdateTransaction("sample-1", domain.TxAmount, "1")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = c.RemoveTransaction("sample-1")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, c.Reset(context.Background()), ErrNotLoaded)

	assert.Equal(t, 0, p.count())
	assert.Equal(t, 0, p.clears)
}

func TestAddTransaction_ToSample(t *testing.T) {
	c, p := newLoaded(t)

	id, err := c.AddTransaction(NewTransaction{
		Date:        strPtr("05/10/2023"),
		Description: strPtr("Bán hàng"),
		Amount:      intPtr(1000000),
	})
	require.NoError(t, err)

	doc := c.Snapshot()
	require.Len(t, doc.Transactions, 3)
	third := doc.Transactions[2]
	assert.Equal(t, id, third.ID)
	assert.Equal(t, "05/10/2023", third.Date)
	assert.Equal(t, "Bán hàng", third.Description)
	assert.Equal(t, int64(1000000), third.Amount)
	assert.NotEqual(t, doc.Transactions[0].ID, id)
	assert.NotEqual(t, doc.Transactions[1].ID, id)

	assert.Equal(t, 1, p.count())
	assert.Equal(t, doc, p.last())
}

func TestAddTransaction_Defaults(t *testing.T) {
	c, _ := newLoaded(t)

	id, err := c.AddTransaction(NewTransaction{Amount: intPtr(-3)})
	require.NoError(t, err)

	doc := c.Snapshot()
	tx := doc.Transactions[doc.IndexOf(id)]
	assert.Equal(t, "05/10/2023", tx.Date)
	assert.Equal(t, "", tx.Description)
	assert.Equal(t, int64(0), tx.Amount)
}

func TestAddTransaction_RepeatingGeneratorStillUnique(t *testing.T) {
	calls := 0
	gen := func() string {
		calls++
		if calls <= 2 {
			return "same"
		}
		return fmt.Sprintf("id-%d", calls)
	}
	c := New(fixedLoader{}, &recordingPersister{}, Options{Logger: logger.Nop(), NewID: gen})
	require.NoError(t, c.Load(context.Background()))

	a, err := c.AddTransaction(NewTransaction{})
	require.NoError(t, err)
	b, err := c.AddTransaction(NewTransaction{})
	require.NoError(t, err)
	assert.Equal(t, "same", a)
	assert.NotEqual(t, a, b)
}

func TestUpdateTransaction(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		field domain.TransactionField
		value string
		found bool
		check func(t *testing.T, tx domain.Transaction)
	}{
		{
			name: "amount with dots", id: "sample-1", field: domain.TxAmount, value: "1.234.567", found: true,
			check: func(t *testing.T, tx domain.Transaction) { assert.Equal(t, int64(1234567), tx.Amount) },
		},
		{
			name: "amount garbage", id: "sample-1", field: domain.TxAmount, value: "abc", found: true,
			check: func(t *testing.T, tx domain.Transaction) { assert.Equal(t, int64(0), tx.Amount) },
		},
		{
			name: "amount negative sign dropped", id: "sample-2", field: domain.TxAmount, value: "-42", found: true,
			check: func(t *testing.T, tx domain.Transaction) { assert.Equal(t, int64(42), tx.Amount) },
		},
		{
			name: "date kept verbatim", id: "sample-2", field: domain.TxDate, value: "hôm nay", found: true,
			check: func(t *testing.T, tx domain.Transaction) { assert.Equal(t, "hôm nay", tx.Date) },
		},
		{
			name: "description", id: "sample-1", field: domain.TxDescription, value: "Bán gạo", found: true,
			check: func(t *testing.T, tx domain.Transaction) { assert.Equal(t, "Bán gạo", tx.Description) },
		},
		{name: "unknown id", id: "nope", field: domain.TxAmount, value: "5", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := newLoaded(t)
			before := c.Snapshot()

			found, err := c.UpdateTransaction(tt.id, tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)

			doc := c.Snapshot()
			if !tt.found {
				assert.Equal(t, before, doc)
				assert.Equal(t, 0, p.count())
				return
			}
			assert.Equal(t, 1, p.count())
			tt.check(t, doc.Transactions[doc.IndexOf(tt.id)])
		})
	}
}

func TestUpdateTransaction_UnknownField(t *testing.T) {
	c, _ := newLoaded(t)
	_, err := c.UpdateTransaction("sample-1", "colour", "red")
	assert.Error(t, err)
}

func TestUpdateInfoField(t *testing.T) {
	c, p := newLoaded(t)

	require.NoError(t, c.UpdateInfoField(domain.InfoTaxID, "0109999999"))
	assert.Equal(t, "0109999999", c.Snapshot().Info.TaxID)
	assert.Equal(t, 1, p.count())

	assert.Error(t, c.UpdateInfoField("phone", "123"))
	assert.Equal(t, 1, p.count())
}

func TestRemoveTransaction(t *testing.T) {
	c, p := newLoaded(t)

	removed, err := c.RemoveTransaction("sample-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.RemoveTransaction("sample-1")
	require.NoError(t, err)
	assert.False(t, removed)

	doc := c.Snapshot()
	require.Len(t, doc.Transactions, 1)
	assert.Equal(t, "sample-2", doc.Transactions[0].ID)
	assert.Equal(t, 1, p.count())
}

func TestMixedSequence_IDsUniqueOrderPreserved(t *testing.T) {
	c, _ := newLoaded(t)

	var want []string
	for _, tx := range c.Snapshot().Transactions {
		want = append(want, tx.ID)
	}
	for i := 0; i < 20; i++ {
		id, err := c.AddTransaction(NewTransaction{Amount: intPtr(int64(i))})
		require.NoError(t, err)
		want = append(want, id)
		if i%3 == 0 {
			victim := want[len(want)/2]
			_, err := c.RemoveTransaction(victim)
			require.NoError(t, err)
			want = removeString(want, victim)
		}
		if i%4 == 0 {
			_, err := c.UpdateTransaction(want[0], domain.TxAmount, "7")
			require.NoError(t, err)
		}
	}

	var got []string
	seen := map[string]bool{}
	for _, tx := range c.Snapshot().Transactions {
		assert.False(t, seen[tx.ID], "duplicate id %s", tx.ID)
		seen[tx.ID] = true
		got = append(got, tx.ID)
	}
	assert.Equal(t, want, got)
}

func removeString(s []string, v string) []string {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func TestSnapshotIsACopy(t *testing.T) {
	c, _ := newLoaded(t)
	snap := c.Snapshot()
	snap.Transactions[0].Amount = 99
	snap.Info.Name = "changed"

	doc := c.Snapshot()
	assert.Equal(t, int64(1500000), doc.Transactions[0].Amount)
	assert.Equal(t, "Nguyễn Văn A", doc.Info.Name)
}

func TestReset(t *testing.T) {
	c, p := newLoaded(t)
	_, err := c.AddTransaction(NewTransaction{})
	require.NoError(t, err)
	gen := c.Generation()

	require.NoError(t, c.Reset(context.Background()))

	assert.Equal(t, domain.DefaultDocument(), c.Snapshot())
	assert.Equal(t, 1, p.clears)
	assert.Greater(t, c.Generation(), gen)
}

func TestReset_ClearFailureIsNotSurfaced(t *testing.T) {
	c, p := newLoaded(t)
	p.ClearFunc = func(ctx context.Context) error { return errors.New("read-only fs") }

	require.NoError(t, c.Reset(context.Background()))
	assert.Equal(t, domain.DefaultDocument(), c.Snapshot())
}

func TestResetThenLoadFromStoreGivesSample(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	saver := autosave.New(store, autosave.Options{Window: time.Hour, Logger: logger.Nop()})

	c := New(store, saver, Options{Logger: logger.Nop()})
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.UpdateInfoField(domain.InfoName, "Lê Văn C"))
	require.NoError(t, saver.Flush(ctx))

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lê Văn C", stored.Info.Name)

	_, err = c.AddTransaction(NewTransaction{Amount: intPtr(1)}) // left pending
	require.NoError(t, err)
	require.NoError(t, c.Reset(ctx))
	require.NoError(t, saver.Close(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	fresh := New(store, &recordingPersister{}, Options{Logger: logger.Nop()})
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, domain.DefaultDocument(), fresh.Snapshot())
}

func TestReset_CancelledContextStillClearsStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	saver := autosave.New(store, autosave.Options{Window: time.Hour, Logger: logger.Nop()})

	c := New(store, saver, Options{Logger: logger.Nop()})
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.UpdateInfoField(domain.InfoName, "Lê Văn C"))
	require.NoError(t, saver.Flush(ctx))
	_, err := c.AddTransaction(NewTransaction{Amount: intPtr(1)}) // left pending
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, c.Reset(cancelled))
	require.NoError(t, saver.Close(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBusySet(t *testing.T) {
	c, _ := newLoaded(t)
	name := InfoTarget(domain.InfoName)
	txDate := TransactionTarget("sample-1", domain.TxDate)
	txAmount := TransactionTarget("sample-1", domain.TxAmount)

	assert.True(t, c.TryAcquire(name))
	assert.False(t, c.TryAcquire(name))
	assert.True(t, c.IsBusy(name))

	assert.True(t, c.TryAcquire(txDate))
	assert.False(t, c.TryAcquire(txAmount), "one capture per transaction")
	assert.True(t, c.TryAcquire(NewTransactionTarget()))

	busy := c.Busy()
	require.Len(t, busy, 3)
	assert.Equal(t, "info:name", busy[0].Key())
	assert.Equal(t, "new", busy[1].Key())
	assert.Equal(t, "tx:sample-1", busy[2].Key())

	c.Release(name)
	assert.False(t, c.IsBusy(name))
	assert.True(t, c.TryAcquire(name))
}

func TestAIAvailability(t *testing.T) {
	c, _ := newLoaded(t)
	assert.False(t, c.AIAvailable())

	c.SetAIAvailable(true)
	assert.True(t, c.AIAvailable())

	c.MarkAIUnavailable()
	assert.False(t, c.AIAvailable())
	c.MarkAIUnavailable()
	assert.False(t, c.AIAvailable())
}

func TestApplyCapture(t *testing.T) {
	t.Run("info field", func(t *testing.T) {
		c, p := newLoaded(t)
		applied, err := c.ApplyCapture(c.Generation(), InfoTarget(domain.InfoPeriod), Result{Text: "Quý 4/2023"})
		require.NoError(t, err)
		assert.Equal(t, "Quý 4/2023", applied.Value)
		assert.Equal(t, "Quý 4/2023", c.Snapshot().Info.Period)
		assert.Equal(t, 1, p.count())
	})

	t.Run("transaction amount is sanitized", func(t *testing.T) {
		c, _ := newLoaded(t)
		applied, err := c.ApplyCapture(c.Generation(), TransactionTarget("sample-2", domain.TxAmount), Result{Text: "2.000.000 đồng"})
		require.NoError(t, err)
		assert.Equal(t, "sample-2", applied.TransactionID)
		assert.Equal(t, "2000000", applied.Value)
		assert.Equal(t, int64(2000000), c.Snapshot().Transactions[1].Amount)
	})

	t.Run("new transaction", func(t *testing.T) {
		c, _ := newLoaded(t)
		applied, err := c.ApplyCapture(c.Generation(), NewTransactionTarget(), Result{
			Transaction: NewTransaction{Description: strPtr(domain.PlaceholderDescription), Amount: intPtr(5000000)},
		})
		require.NoError(t, err)
		doc := c.Snapshot()
		require.Len(t, doc.Transactions, 3)
		assert.Equal(t, applied.TransactionID, doc.Transactions[2].ID)
		assert.Equal(t, "05/10/2023", doc.Transactions[2].Date)
	})

	t.Run("removed target is stale", func(t *testing.T) {
		c, p := newLoaded(t)
		gen := c.Generation()
		_, err := c.RemoveTransaction("sample-1")
		require.NoError(t, err)
		before := c.Snapshot()

		_, err = c.ApplyCapture(gen, TransactionTarget("sample-1", domain.TxDescription), Result{Text: "x"})
		assert.ErrorIs(t, err, ErrStale)
		assert.Equal(t, before, c.Snapshot())
		assert.Equal(t, 1, p.count())
	})

	t.Run("reset in between is stale", func(t *testing.T) {
		c, _ := newLoaded(t)
		gen := c.Generation()
		require.NoError(t, c.Reset(context.Background()))

		_, err := c.ApplyCapture(gen, InfoTarget(domain.InfoName), Result{Text: "late"})
		assert.ErrorIs(t, err, ErrStale)
		assert.Equal(t, domain.DefaultDocument(), c.Snapshot())
	})
}

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("info", "taxId", "")
	require.NoError(t, err)
	assert.Equal(t, InfoTarget(domain.InfoTaxID), tg)

	tg, err = ParseTarget("tx", "amount", "abc")
	require.NoError(t, err)
	assert.Equal(t, "tx:abc/amount", tg.String())

	tg, err = ParseTarget("new", "", "")
	require.NoError(t, err)
	assert.Equal(t, NewTransactionTarget(), tg)

	_, err = ParseTarget("tx", "amount", "")
	assert.Error(t, err)
	_, err = ParseTarget("info", "phone", "")
	assert.Error(t, err)
	_, err = ParseTarget("audio", "", "")
	assert.Error(t, err)
}
