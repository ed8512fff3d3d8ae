package event

import (
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

type Type string

const (
	TokenListedEvent           Type = "TokenListed"
	TokenSaleCancelledEvent    Type = "TokenSaleCancelled"
	TokenSoldEvent             Type = "TokenSold"
	ProceedsWithdrawnEvent     Type = "ProceedsWithdrawn"
	OwnerBalanceWithdrawnEvent Type = "OwnerBalanceWithdrawn"
	OperatorTransferredEvent   Type = "OperatorTransferred"
)

// Event is an append-only notification of a committed ledger mutation.
type Event struct {
	Id      string      `json:"id"`
	Type    Type        `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload"`
}

type TokenListed struct {
	Collection entity.Collection `json:"nftAddress"`
	Seller     entity.Principal  `json:"seller"`
	Price      uint64            `json:"price"`
	TokenId    uint64            `json:"tokenId"`
}

type TokenSaleCancelled struct {
	Collection entity.Collection `json:"nftAddress"`
	Seller     entity.Principal  `json:"seller"`
	Price      uint64            `json:"price"`
	TokenId    uint64            `json:"tokenId"`
}

type TokenSold struct {
	Collection entity.Collection `json:"nftAddress"`
	Buyer      entity.Principal  `json:"buyer"`
	Price      uint64            `json:"price"`
	TokenId    uint64            `json:"tokenId"`
	Seller     entity.Principal  `json:"seller"`
}

type ProceedsWithdrawn struct {
	Principal entity.Principal `json:"principal"`
	Amount    uint64           `json:"amount"`
}

type OwnerBalanceWithdrawn struct {
	Principal entity.Principal `json:"principal"`
	Amount    uint64           `json:"amount"`
}

type OperatorTransferred struct {
	Previous entity.Principal `json:"previous"`
	Next     entity.Principal `json:"next"`
}

func New(eventType Type, payload interface{}) Event {
	return Event{
		Id:      newId(),
		Type:    eventType,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
}

func newId() string {
	u, err := uuid.NewV4()
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("EventManager: Failed to generate event id")
		return ""
	}
	return u.String()
}
