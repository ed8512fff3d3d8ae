package ledger

import (
	"errors"
	"fmt"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
)

// Precondition violations. The caller has to change the request; retrying
// the same call fails the same way.
var (
	ErrZeroPrice                 = errors.New("price must be above zero")
	ErrNotApprovedForMarketplace = errors.New("marketplace is not approved for the token")
	ErrCallerNotAssetOwner       = errors.New("caller is not the token owner")
	ErrListingNotFound           = errors.New("token is not listed")
	ErrPriceMismatch             = errors.New("exact price not met")
	ErrCallerNotAuthorized       = errors.New("caller is neither the token owner nor the seller")
	ErrNoProceedsForCaller       = errors.New("no proceeds for caller")
	ErrNoOperatorBalance         = fmt.Errorf("%w: operator balance is empty", ErrNoProceedsForCaller)
	ErrCallerNotOperator         = errors.New("caller is not the operator")
	ErrInvalidPrincipal          = entity.ErrInvalidPrincipal
	ErrBalanceOverflow           = errors.New("balance overflow")
	ErrReentrantCall             = errors.New("reentrant call into the ledger")
)

// External failures. The ledger state is left as it was before the call.
var (
	ErrTransferFailed      = errors.New("token transfer failed")
	ErrWithdrawalFailed    = errors.New("withdrawal failed")
	ErrRegistryUnavailable = errors.New("asset registry unavailable")
)

type ListingNotFoundError struct {
	Collection entity.Collection
	TokenId    uint64
}

func (e *ListingNotFoundError) Error() string {
	return fmt.Sprintf("token %d of %s is not listed", e.TokenId, e.Collection)
}

func (e *ListingNotFoundError) Is(target error) bool {
	return target == ErrListingNotFound
}

type PriceMismatchError struct {
	Paid     uint64
	Required uint64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("exact price not met: paid %d, required %d", e.Paid, e.Required)
}

func (e *PriceMismatchError) Is(target error) bool {
	return target == ErrPriceMismatch
}

type CallerNotAuthorizedError struct {
	TokenId uint64
}

func (e *CallerNotAuthorizedError) Error() string {
	return fmt.Sprintf("caller is neither the owner nor the seller of token %d", e.TokenId)
}

func (e *CallerNotAuthorizedError) Is(target error) bool {
	return target == ErrCallerNotAuthorized
}

type WithdrawalFailedError struct {
	Amount uint64
	Err    error
}

func (e *WithdrawalFailedError) Error() string {
	return fmt.Sprintf("withdrawal of %d failed: %v", e.Amount, e.Err)
}

func (e *WithdrawalFailedError) Is(target error) bool {
	return target == ErrWithdrawalFailed
}

func (e *WithdrawalFailedError) Unwrap() error {
	return e.Err
}

type TransferFailedError struct {
	Collection entity.Collection
	TokenId    uint64
	Err        error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer of token %d of %s failed: %v", e.TokenId, e.Collection, e.Err)
}

func (e *TransferFailedError) Is(target error) bool {
	return target == ErrTransferFailed
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}

type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("asset registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Is(target error) bool {
	return target == ErrRegistryUnavailable
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// IsPreconditionError reports whether err is caller attributable.
func IsPreconditionError(err error) bool {
	for _, target := range []error{
		ErrZeroPrice,
		ErrNotApprovedForMarketplace,
		ErrCallerNotAssetOwner,
		ErrListingNotFound,
		ErrPriceMismatch,
		ErrCallerNotAuthorized,
		ErrNoProceedsForCaller,
		ErrCallerNotOperator,
		ErrInvalidPrincipal,
		ErrBalanceOverflow,
		ErrReentrantCall,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
