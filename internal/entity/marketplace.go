package entity

type Marketplace string

const (
	EtherealGalleryMarketplace Marketplace = "EtherealGallery"
)

// PlatformFeeBps is the operator cut of every sale in basis points.
const PlatformFeeBps uint64 = 200

const bpsDenominator uint64 = 10000

// SplitPrice divides a sale price into the operator fee and the seller
// proceeds. The fee is truncated and the seller keeps the remainder, so the
// two always add up to the price.
func SplitPrice(price uint64) (fee uint64, proceeds uint64) {
	fee = (price/bpsDenominator)*PlatformFeeBps + (price%bpsDenominator)*PlatformFeeBps/bpsDenominator
	return fee, price - fee
}
