package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ZilDuck/nft-marketplace/internal/ledger"
	"github.com/ZilDuck/nft-marketplace/internal/registry"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{ledger.ErrInvalidPrincipal, "InvalidPrincipal", http.StatusBadRequest},
	{ledger.ErrZeroPrice, "ZeroPrice", http.StatusBadRequest},
	{ledger.ErrPriceMismatch, "PriceMismatch", http.StatusBadRequest},
	{ledger.ErrListingNotFound, "ListingNotFound", http.StatusNotFound},
	{ledger.ErrNotApprovedForMarketplace, "NotApprovedForMarketplace", http.StatusForbidden},
	{ledger.ErrCallerNotAssetOwner, "CallerNotAssetOwner", http.StatusForbidden},
	{ledger.ErrCallerNotAuthorized, "CallerNotAuthorized", http.StatusForbidden},
	{ledger.ErrCallerNotOperator, "CallerNotOperator", http.StatusForbidden},
	{ledger.ErrNoOperatorBalance, "NoOperatorBalance", http.StatusConflict},
	{ledger.ErrNoProceedsForCaller, "NoProceedsForCaller", http.StatusConflict},
	{ledger.ErrBalanceOverflow, "BalanceOverflow", http.StatusConflict},
	{ledger.ErrReentrantCall, "ReentrantCall", http.StatusConflict},
	{ledger.ErrTransferFailed, "TransferFailed", http.StatusBadGateway},
	{ledger.ErrWithdrawalFailed, "WithdrawalFailed", http.StatusBadGateway},
	{ledger.ErrRegistryUnavailable, "RegistryUnavailable", http.StatusBadGateway},
	{context.DeadlineExceeded, "Timeout", http.StatusServiceUnavailable},
	{context.Canceled, "Cancelled", http.StatusServiceUnavailable},
	{registry.ErrTokenNotFound, "TokenNotFound", http.StatusNotFound},
	{registry.ErrNotTokenOwner, "NotTokenOwner", http.StatusForbidden},
}

// statusOf maps a ledger error to its HTTP status and error code. The first
// match wins, so more specific errors are listed first.
func statusOf(err error) (int, string) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "Internal"
}
