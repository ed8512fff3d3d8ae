package ledger

import (
	"context"
	"errors"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/rpc"
	"go.uber.org/zap"
)

type guardKey struct{}

// entered lists the ledgers whose operations are in flight on a context.
type entered []*MarketplaceLedger

func (e entered) contains(l *MarketplaceLedger) bool {
	for _, other := range e {
		if other == l {
			return true
		}
	}
	return false
}

// enter serializes mutating operations. A call is rejected instead of waiting
// when its context is already inside an operation of this ledger, or when the
// ledger is waiting on the registry or the payment channel.
func (l *MarketplaceLedger) enter(ctx context.Context) (context.Context, func(), error) {
	active, _ := ctx.Value(guardKey{}).(entered)
	if active.contains(l) || l.calling.Load() {
		return ctx, nil, ErrReentrantCall
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return ctx, nil, err
	}

	next := make(entered, 0, len(active)+1)
	next = append(append(next, active...), l)

	return context.WithValue(ctx, guardKey{}, next), func() { l.sem.Release(1) }, nil
}

// external runs a registry or payment channel call.
func (l *MarketplaceLedger) external(call func() error) error {
	l.calling.Store(true)
	defer l.calling.Store(false)

	return call()
}

func (l *MarketplaceLedger) ownerOf(ctx context.Context, collection entity.Collection, tokenId uint64) (owner entity.Principal, err error) {
	err = l.external(func() error {
		owner, err = l.registry.OwnerOf(ctx, collection, tokenId)
		return err
	})
	return owner, err
}

// delivered reports whether a transfer whose outcome is unknown reached to,
// as happens when the registry applies it but the response is lost.
func (l *MarketplaceLedger) delivered(ctx context.Context, collection entity.Collection, tokenId uint64, to entity.Principal, err error) bool {
	if !errors.Is(err, rpc.ErrOutcomeUnknown) {
		return false
	}

	owner, ownerErr := l.ownerOf(ctx, collection, tokenId)
	if ownerErr != nil || owner != to {
		return false
	}

	zap.L().With(
		zap.Error(err),
		zap.String("contractAddr", collection.String()),
		zap.Uint64("tokenId", tokenId),
		zap.String("to", to.String()),
	).Warn("Marketplace trade: Transfer reported a failure but the token was delivered")

	return true
}
