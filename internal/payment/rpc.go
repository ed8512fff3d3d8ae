package payment

import (
	"context"
	"strconv"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/rpc"
)

// Remote asks the payment gateway to pay out of the marketplace escrow.
type Remote struct {
	client        *rpc.Client
	confirmations int
}

func NewRemote(client *rpc.Client, confirmations int) *Remote {
	return &Remote{client: client, confirmations: confirmations}
}

type payOutParams struct {
	To            entity.Principal `json:"to"`
	Amount        string           `json:"amount"`
	Confirmations int              `json:"confirmations,omitempty"`
}

// PayOut sends the amount as a decimal string.
func (p *Remote) PayOut(ctx context.Context, to entity.Principal, amount uint64) error {
	return p.client.Send(ctx, "PayOut", payOutParams{To: to, Amount: strconv.FormatUint(amount, 10), Confirmations: p.confirmations}, nil)
}
