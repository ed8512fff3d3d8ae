package ledger

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/ZilDuck/nft-marketplace/internal/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MarketplaceLedger holds listings, seller proceeds and the operator fee
// balance of one marketplace. Mutating operations are serialized and run as a
// single transaction: local effects are committed before the registry or the
// payment channel is called, and reverted if that call fails.
type MarketplaceLedger struct {
	marketplace entity.Principal
	registry    AssetRegistry
	payments    PaymentChannel
	store       store.Store
	emitter     event.Emitter

	sem *semaphore.Weighted
	// set while the registry or the payment channel is being called
	calling atomic.Bool

	mu              sync.RWMutex
	operator        entity.Principal
	operatorBalance uint64
	listings        map[entity.TokenKey]entity.Listing
	proceeds        map[entity.Principal]uint64
}

type nopEmitter struct{}

func (nopEmitter) Emit(eventType event.Type, payload interface{}) event.Event {
	return event.New(eventType, payload)
}

// New restores the ledger from st. The operator is only used when the store
// has none yet; afterwards the persisted operator wins.
func New(
	ctx context.Context,
	marketplace entity.Principal,
	operator entity.Principal,
	registry AssetRegistry,
	payments PaymentChannel,
	st store.Store,
	emitter event.Emitter,
) (*MarketplaceLedger, error) {
	if marketplace.IsZero() {
		return nil, ErrInvalidPrincipal
	}
	if st == nil {
		st = store.NewMemory()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}

	snapshot, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}

	l := &MarketplaceLedger{
		marketplace:     marketplace,
		registry:        registry,
		payments:        payments,
		store:           st,
		emitter:         emitter,
		sem:             semaphore.NewWeighted(1),
		operator:        snapshot.Operator,
		operatorBalance: snapshot.OperatorBalance,
		listings:        snapshot.Listings,
		proceeds:        snapshot.Proceeds,
	}

	if l.operator.IsZero() {
		if operator.IsZero() {
			return nil, ErrInvalidPrincipal
		}
		tx := l.begin()
		tx.setOperator(operator)
		if err := tx.commit(ctx); err != nil {
			return nil, err
		}
	} else if !operator.IsZero() && operator != l.operator {
		zap.L().With(
			zap.String("configured", operator.String()),
			zap.String("persisted", l.operator.String()),
		).Warn("Ledger: Using persisted operator")
	}

	zap.L().With(
		zap.String("marketplace", marketplace.String()),
		zap.String("operator", l.operator.String()),
		zap.Int("listings", len(l.listings)),
		zap.Int("sellers", len(l.proceeds)),
	).Info("Ledger: Loaded")

	return l, nil
}

func (l *MarketplaceLedger) Marketplace() entity.Principal {
	return l.marketplace
}

func (l *MarketplaceLedger) ListToken(ctx context.Context, collection entity.Collection, tokenId uint64, price uint64, caller entity.Principal) error {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if caller.IsZero() || collection.IsZero() {
		return ErrInvalidPrincipal
	}
	var approved bool
	err = l.external(func() (err error) {
		approved, err = l.registry.IsApprovedForTransfer(ctx, collection, tokenId, l.marketplace)
		return err
	})
	if err != nil {
		return &RegistryError{Op: "IsApprovedForTransfer", Err: err}
	}
	if !approved {
		return ErrNotApprovedForMarketplace
	}

	owner, err := l.ownerOf(ctx, collection, tokenId)
	if err != nil {
		return &RegistryError{Op: "OwnerOf", Err: err}
	}
	if owner != caller {
		return ErrCallerNotAssetOwner
	}
	if price == 0 {
		return ErrZeroPrice
	}

	tx := l.begin()
	tx.putListing(entity.NewTokenKey(collection, tokenId), &entity.Listing{Seller: caller, Price: price})
	if err := tx.commit(ctx); err != nil {
		return err
	}

	zap.L().With(
		zap.String("contractAddr", collection.String()),
		zap.Uint64("tokenId", tokenId),
		zap.String("seller", caller.String()),
		zap.Uint64("cost", price),
	).Info("Marketplace listing")

	l.emitter.Emit(event.TokenListedEvent, event.TokenListed{
		Collection: collection,
		Seller:     caller,
		Price:      price,
		TokenId:    tokenId,
	})

	return nil
}

func (l *MarketplaceLedger) BuyToken(ctx context.Context, collection entity.Collection, tokenId uint64, paid uint64, caller entity.Principal) error {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if caller.IsZero() || collection.IsZero() {
		return ErrInvalidPrincipal
	}

	key := entity.NewTokenKey(collection, tokenId)
	listing, found := l.listing(key)
	if !found {
		return &ListingNotFoundError{Collection: collection, TokenId: tokenId}
	}
	if paid != listing.Price {
		return &PriceMismatchError{Paid: paid, Required: listing.Price}
	}

	fee, proceeds := entity.SplitPrice(paid)

	tx := l.begin()
	sellerBalance := tx.proceeds(listing.Seller)
	operatorBalance := tx.operatorBalance()
	if sellerBalance > math.MaxUint64-proceeds || operatorBalance > math.MaxUint64-fee {
		return ErrBalanceOverflow
	}
	tx.deleteListing(key)
	tx.setProceeds(listing.Seller, sellerBalance+proceeds)
	tx.setOperatorBalance(operatorBalance + fee)
	if err := tx.commit(ctx); err != nil {
		return err
	}

	if err := l.external(func() error {
		return l.registry.Transfer(ctx, collection, tokenId, listing.Seller, caller)
	}); err != nil && !l.delivered(ctx, collection, tokenId, caller, err) {
		zap.L().With(
			zap.Error(err),
			zap.String("contractAddr", collection.String()),
			zap.Uint64("tokenId", tokenId),
		).Warn("Marketplace trade: Transfer failed, reverting")

		return multierr.Append(
			&TransferFailedError{Collection: collection, TokenId: tokenId, Err: err},
			tx.revert(ctx),
		)
	}

	zap.L().With(
		zap.String("contractAddr", collection.String()),
		zap.Uint64("tokenId", tokenId),
		zap.String("from", listing.Seller.String()),
		zap.String("to", caller.String()),
		zap.Uint64("cost", paid),
		zap.Uint64("fee", fee),
	).Info("Marketplace trade")

	l.emitter.Emit(event.TokenSoldEvent, event.TokenSold{
		Collection: collection,
		Buyer:      caller,
		Price:      paid,
		TokenId:    tokenId,
		Seller:     listing.Seller,
	})

	return nil
}

// CancelTokenSale removes a listing. The seller may cancel, and so may the
// current owner when the token moved outside the marketplace. Cancelling an
// absent listing fails with ErrListingNotFound.
func (l *MarketplaceLedger) CancelTokenSale(ctx context.Context, collection entity.Collection, tokenId uint64, caller entity.Principal) error {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if caller.IsZero() || collection.IsZero() {
		return ErrInvalidPrincipal
	}

	key := entity.NewTokenKey(collection, tokenId)
	listing, found := l.listing(key)
	if !found {
		return &ListingNotFoundError{Collection: collection, TokenId: tokenId}
	}

	if caller != listing.Seller {
		owner, err := l.ownerOf(ctx, collection, tokenId)
		if err != nil {
			return &RegistryError{Op: "OwnerOf", Err: err}
		}
		if owner != caller {
			return &CallerNotAuthorizedError{TokenId: tokenId}
		}
	}

	tx := l.begin()
	tx.deleteListing(key)
	if err := tx.commit(ctx); err != nil {
		return err
	}

	zap.L().With(
		zap.String("contractAddr", collection.String()),
		zap.Uint64("tokenId", tokenId),
		zap.String("seller", listing.Seller.String()),
		zap.String("caller", caller.String()),
	).Info("Marketplace delisting")

	l.emitter.Emit(event.TokenSaleCancelledEvent, event.TokenSaleCancelled{
		Collection: collection,
		Seller:     listing.Seller,
		Price:      listing.Price,
		TokenId:    tokenId,
	})

	return nil
}

// WithdrawProceeds pays the caller their whole balance and returns the amount.
func (l *MarketplaceLedger) WithdrawProceeds(ctx context.Context, caller entity.Principal) (uint64, error) {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if caller.IsZero() {
		return 0, ErrInvalidPrincipal
	}

	amount := l.Proceeds(caller)
	if amount == 0 {
		return 0, ErrNoProceedsForCaller
	}

	tx := l.begin()
	tx.setProceeds(caller, 0)
	if err := tx.commit(ctx); err != nil {
		return 0, err
	}

	if err := l.external(func() error { return l.payments.PayOut(ctx, caller, amount) }); err != nil {
		zap.L().With(zap.Error(err), zap.String("principal", caller.String()), zap.Uint64("amount", amount)).
			Warn("Withdraw proceeds: Payout failed, reverting")

		return 0, multierr.Append(&WithdrawalFailedError{Amount: amount, Err: err}, tx.revert(ctx))
	}

	zap.L().With(zap.String("principal", caller.String()), zap.Uint64("amount", amount)).Info("Proceeds withdrawn")

	l.emitter.Emit(event.ProceedsWithdrawnEvent, event.ProceedsWithdrawn{Principal: caller, Amount: amount})

	return amount, nil
}

// WithdrawOwnerBalance pays the accrued operator fees to the operator.
func (l *MarketplaceLedger) WithdrawOwnerBalance(ctx context.Context, caller entity.Principal) (uint64, error) {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if caller.IsZero() || caller != l.Operator() {
		return 0, ErrCallerNotOperator
	}

	amount := l.OwnerBalance()
	if amount == 0 {
		return 0, ErrNoOperatorBalance
	}

	tx := l.begin()
	tx.setOperatorBalance(0)
	if err := tx.commit(ctx); err != nil {
		return 0, err
	}

	if err := l.external(func() error { return l.payments.PayOut(ctx, caller, amount) }); err != nil {
		zap.L().With(zap.Error(err), zap.String("principal", caller.String()), zap.Uint64("amount", amount)).
			Warn("Withdraw owner balance: Payout failed, reverting")

		return 0, multierr.Append(&WithdrawalFailedError{Amount: amount, Err: err}, tx.revert(ctx))
	}

	zap.L().With(zap.String("principal", caller.String()), zap.Uint64("amount", amount)).Info("Owner balance withdrawn")

	l.emitter.Emit(event.OwnerBalanceWithdrawnEvent, event.OwnerBalanceWithdrawn{Principal: caller, Amount: amount})

	return amount, nil
}

// TransferOperator hands the operator role, and with it the right to the
// operator balance, to next.
func (l *MarketplaceLedger) TransferOperator(ctx context.Context, caller entity.Principal, next entity.Principal) error {
	ctx, release, err := l.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	previous := l.Operator()
	if caller.IsZero() || caller != previous {
		return ErrCallerNotOperator
	}
	if next.IsZero() {
		return ErrInvalidPrincipal
	}

	tx := l.begin()
	tx.setOperator(next)
	if err := tx.commit(ctx); err != nil {
		return err
	}

	zap.L().With(zap.String("previous", previous.String()), zap.String("next", next.String())).Info("Operator transferred")

	l.emitter.Emit(event.OperatorTransferredEvent, event.OperatorTransferred{Previous: previous, Next: next})

	return nil
}

// TokenListing returns the listing for the token, or the absent listing.
func (l *MarketplaceLedger) TokenListing(collection entity.Collection, tokenId uint64) entity.Listing {
	listing, _ := l.listing(entity.NewTokenKey(collection, tokenId))
	return listing
}

func (l *MarketplaceLedger) Proceeds(principal entity.Principal) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.proceeds[principal]
}

func (l *MarketplaceLedger) OwnerBalance() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.operatorBalance
}

func (l *MarketplaceLedger) Operator() entity.Principal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.operator
}

func (l *MarketplaceLedger) listing(key entity.TokenKey) (entity.Listing, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	listing, found := l.listings[key]
	if !found {
		return entity.AbsentListing, false
	}
	return listing, true
}

func (l *MarketplaceLedger) apply(changes store.Changeset) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if changes.Operator != nil {
		l.operator = *changes.Operator
	}
	if changes.OperatorBalance != nil {
		l.operatorBalance = *changes.OperatorBalance
	}
	for key, listing := range changes.Listings {
		if listing == nil || !listing.Active() {
			delete(l.listings, key)
			continue
		}
		l.listings[key] = *listing
	}
	for principal, balance := range changes.Proceeds {
		if balance == 0 {
			delete(l.proceeds, principal)
			continue
		}
		l.proceeds[principal] = balance
	}
}
