package ledger

import (
	"context"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
)

// AssetRegistry is the system of record for token ownership and approvals.
// Implementations must pass ctx on to anything that may call back into the
// ledger.
type AssetRegistry interface {
	IsApprovedForTransfer(ctx context.Context, collection entity.Collection, tokenId uint64, marketplace entity.Principal) (bool, error)
	OwnerOf(ctx context.Context, collection entity.Collection, tokenId uint64) (entity.Principal, error)
	Transfer(ctx context.Context, collection entity.Collection, tokenId uint64, from, to entity.Principal) error
}

// PaymentChannel moves value out of the ledger escrow.
type PaymentChannel interface {
	PayOut(ctx context.Context, to entity.Principal, amount uint64) error
}
