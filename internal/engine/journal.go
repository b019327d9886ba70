package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/service"
)

// MemoryJournal is a process-local service.PaymentJournal. Entries are
// lost on exit; use storage.PaymentJournal to survive restarts.
type MemoryJournal struct {
	now     func() time.Time
	records map[string]service.PaymentRecord
	mu      sync.Mutex
}

var _ service.PaymentJournal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal(now func() time.Time) *MemoryJournal {
	if now == nil {
		now = time.Now
	}
	return &MemoryJournal{now: now, records: make(map[string]service.PaymentRecord)}
}

// RecordPayment stores rec. Recording the same receipt twice keeps the
// first entry.
func (j *MemoryJournal) RecordPayment(_ context.Context, rec service.PaymentRecord) error {
	if rec.ReceiptID == "" || rec.UserID == "" {
		return common.Validation("record_payment", "payment record needs a receipt and a user")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.records[rec.ReceiptID]; ok {
		return nil
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = j.now()
	}
	j.records[rec.ReceiptID] = rec
	return nil
}

// MarkSettled implements service.PaymentJournal.
func (j *MemoryJournal) MarkSettled(_ context.Context, receiptID string) error {
	return j.update(receiptID, func(rec *service.PaymentRecord) {
		at := j.now()
		rec.SettledAt = &at
		rec.LastError = ""
	})
}

// MarkFailed implements service.PaymentJournal.
func (j *MemoryJournal) MarkFailed(_ context.Context, receiptID, reason string) error {
	return j.update(receiptID, func(rec *service.PaymentRecord) {
		rec.LastError = reason
	})
}

// Resolve implements service.PaymentJournal.
func (j *MemoryJournal) Resolve(_ context.Context, ref, receiptID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[ref]
	if !ok || !rec.Unconfirmed || rec.Settled() {
		return fmt.Errorf("%w: unconfirmed payment %s", common.ErrNotFound, ref)
	}
	if receiptID == "" {
		at := j.now()
		rec.SettledAt = &at
		rec.LastError = "voided: no payment made"
		j.records[ref] = rec
		return nil
	}
	if _, taken := j.records[receiptID]; taken {
		return common.Validation("resolve_payment", "receipt "+receiptID+" is already recorded")
	}
	delete(j.records, ref)
	rec.ReceiptID = receiptID
	rec.Unconfirmed = false
	rec.LastError = ""
	j.records[receiptID] = rec
	return nil
}

func (j *MemoryJournal) update(receiptID string, fn func(*service.PaymentRecord)) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[receiptID]
	if !ok {
		return fmt.Errorf("%w: payment %s", common.ErrNotFound, receiptID)
	}
	fn(&rec)
	j.records[receiptID] = rec
	return nil
}

// Pending lists a user's unsettled payments, oldest first.
func (j *MemoryJournal) Pending(_ context.Context, userID string) ([]service.PaymentRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []service.PaymentRecord
	for _, rec := range j.records {
		if rec.UserID == userID && !rec.Settled() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].RecordedAt.Equal(out[b].RecordedAt) {
			return out[a].RecordedAt.Before(out[b].RecordedAt)
		}
		return out[a].ReceiptID < out[b].ReceiptID
	})
	return out, nil
}
