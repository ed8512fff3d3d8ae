package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

type Entity interface {
	Slug() string
}

// NftAction is the archived form of a marketplace event.
type NftAction struct {
	EventId     string     `json:"eventId"`
	Contract    Collection `json:"contract"`
	TokenId     uint64     `json:"tokenId"`
	Action      ActionType `json:"action"`
	From        Principal  `json:"from"`
	To          Principal  `json:"to"`
	Marketplace string     `json:"marketplace"`
	Cost        string     `json:"cost"`
	Fee         string     `json:"fee"`
	Time        time.Time  `json:"time"`
}

type ActionType string

const (
	MarketplaceSaleAction      ActionType = "sale"
	MarketplaceListingAction   ActionType = "listing"
	MarketplaceDelistingAction ActionType = "delisting"
	ProceedsWithdrawalAction   ActionType = "withdrawal"
	OperatorWithdrawalAction   ActionType = "operatorWithdrawal"
	OperatorTransferAction     ActionType = "operatorTransfer"
)

func (n NftAction) Slug() string {
	return CreateNftActionSlug(n.TokenId, n.Contract, n.EventId, string(n.Action))
}

func CreateNftActionSlug(tokenId uint64, contract Collection, eventId, action string) string {
	data := []byte(fmt.Sprintf("nftaction-%d-%s-%s-%s", tokenId, contract, eventId, action))
	return fmt.Sprintf("%x", md5.Sum(data))
}
