package ledger

import (
	"context"
	"fmt"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/store"
	"go.uber.org/zap"
)

// txn stages the writes of one operation. Nothing is visible until commit,
// and revert restores the values the staged keys had before the txn began.
type txn struct {
	l       *MarketplaceLedger
	changes store.Changeset
	undo    store.Changeset
}

func (l *MarketplaceLedger) begin() *txn {
	return &txn{
		l:       l,
		changes: store.NewChangeset(),
		undo:    store.NewChangeset(),
	}
}

func (t *txn) putListing(key entity.TokenKey, listing *entity.Listing) {
	if _, touched := t.undo.Listings[key]; !touched {
		if prev, found := t.l.listing(key); found {
			t.undo.Listings[key] = &prev
		} else {
			t.undo.Listings[key] = nil
		}
	}
	t.changes.Listings[key] = listing
}

func (t *txn) deleteListing(key entity.TokenKey) {
	t.putListing(key, nil)
}

func (t *txn) proceeds(principal entity.Principal) uint64 {
	if staged, found := t.changes.Proceeds[principal]; found {
		return staged
	}
	return t.l.Proceeds(principal)
}

func (t *txn) setProceeds(principal entity.Principal, amount uint64) {
	if _, touched := t.undo.Proceeds[principal]; !touched {
		t.undo.Proceeds[principal] = t.l.Proceeds(principal)
	}
	t.changes.Proceeds[principal] = amount
}

func (t *txn) operatorBalance() uint64 {
	if t.changes.OperatorBalance != nil {
		return *t.changes.OperatorBalance
	}
	return t.l.OwnerBalance()
}

func (t *txn) setOperatorBalance(amount uint64) {
	if t.undo.OperatorBalance == nil {
		prev := t.l.OwnerBalance()
		t.undo.OperatorBalance = &prev
	}
	t.changes.OperatorBalance = &amount
}

func (t *txn) setOperator(principal entity.Principal) {
	if t.undo.Operator == nil {
		prev := t.l.Operator()
		t.undo.Operator = &prev
	}
	t.changes.Operator = &principal
}

// commit makes the staged writes visible and persists them. If the store
// rejects the changeset the in-memory state is restored.
func (t *txn) commit(ctx context.Context) error {
	t.l.apply(t.changes)

	if err := t.l.store.Apply(ctx, t.changes); err != nil {
		t.l.apply(t.undo)
		zap.L().With(zap.Error(err)).Error("Ledger: Failed to persist changes")
		return fmt.Errorf("ledger: persist changes: %w", err)
	}

	return nil
}

// revert undoes a committed txn, also when ctx is already done.
func (t *txn) revert(ctx context.Context) error {
	t.l.apply(t.undo)

	if err := t.l.store.Apply(context.WithoutCancel(ctx), t.undo); err != nil {
		zap.L().With(zap.Error(err)).Error("Ledger: Failed to persist rollback")
		return fmt.Errorf("ledger: persist rollback: %w", err)
	}

	return nil
}
