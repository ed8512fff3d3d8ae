package registry

import (
	"context"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/rpc"
)

// Remote talks to the asset registry gateway over JSON RPC.
// Transfers wait for the given number of block confirmations.
type Remote struct {
	client        *rpc.Client
	confirmations int
}

func NewRemote(client *rpc.Client, confirmations int) *Remote {
	return &Remote{client: client, confirmations: confirmations}
}

type approvalParams struct {
	Collection  entity.Collection `json:"nftAddress"`
	TokenId     uint64            `json:"tokenId"`
	Marketplace entity.Principal  `json:"marketplace"`
}

type tokenParams struct {
	Collection entity.Collection `json:"nftAddress"`
	TokenId    uint64            `json:"tokenId"`
}

type transferParams struct {
	Collection    entity.Collection `json:"nftAddress"`
	TokenId       uint64            `json:"tokenId"`
	From          entity.Principal  `json:"from"`
	To            entity.Principal  `json:"to"`
	Confirmations int               `json:"confirmations,omitempty"`
}

func (r *Remote) IsApprovedForTransfer(ctx context.Context, collection entity.Collection, tokenId uint64, marketplace entity.Principal) (bool, error) {
	var approved bool
	err := r.client.Call(ctx, "IsApprovedForTransfer", approvalParams{collection, tokenId, marketplace}, &approved)

	return approved, err
}

func (r *Remote) OwnerOf(ctx context.Context, collection entity.Collection, tokenId uint64) (entity.Principal, error) {
	var owner string
	if err := r.client.Call(ctx, "OwnerOf", tokenParams{collection, tokenId}, &owner); err != nil {
		return entity.NoPrincipal, err
	}

	return entity.NewPrincipal(owner)
}

func (r *Remote) Transfer(ctx context.Context, collection entity.Collection, tokenId uint64, from, to entity.Principal) error {
	return r.client.Send(ctx, "Transfer", transferParams{collection, tokenId, from, to, r.confirmations}, nil)
}
