package entity

import (
	"fmt"

	"github.com/gosimple/slug"
)

type TokenKey struct {
	Collection Collection `json:"collection"`
	TokenId    uint64     `json:"tokenId"`
}

func NewTokenKey(collection Collection, tokenId uint64) TokenKey {
	return TokenKey{Collection: collection, TokenId: tokenId}
}

func (k TokenKey) Slug() string {
	return CreateListingSlug(k.TokenId, k.Collection)
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%s/%d", k.Collection, k.TokenId)
}

func CreateListingSlug(tokenId uint64, collection Collection) string {
	return slug.Make(fmt.Sprintf("listing-%d-%s", tokenId, collection))
}

// Listing is an offer to sell a token at a fixed price. The zero value is
// the absent listing.
type Listing struct {
	Seller Principal `json:"seller"`
	Price  uint64    `json:"price"`
}

var AbsentListing = Listing{}

func (l Listing) Active() bool {
	return !l.Seller.IsZero() && l.Price > 0
}
