package entity

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/Zilliqa/gozilliqa-sdk/bech32"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrincipal = errors.New("invalid principal")
)

const zeroAddress = "0000000000000000000000000000000000000000"

// Principal is an account address in lower case 0x hex form. The empty
// principal is the null address.
type Principal string

const NoPrincipal Principal = ""

// Collection is the address of the NFT contract a token belongs to.
type Collection string

func NewPrincipal(address string) (Principal, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return NoPrincipal, ErrInvalidPrincipal
	}

	if strings.HasPrefix(strings.ToLower(address), "zil1") {
		decoded, err := bech32.FromBech32Addr(strings.ToLower(address))
		if err != nil {
			return NoPrincipal, ErrInvalidPrincipal
		}
		address = decoded
	}

	address = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))
	if len(address) != 40 || address == zeroAddress {
		return NoPrincipal, ErrInvalidPrincipal
	}
	if _, err := hex.DecodeString(address); err != nil {
		return NoPrincipal, ErrInvalidPrincipal
	}

	return Principal("0x" + address), nil
}

func MustPrincipal(address string) Principal {
	p, err := NewPrincipal(address)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) IsZero() bool {
	return p == NoPrincipal
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) Bech32() string {
	if p.IsZero() {
		return ""
	}
	bech32Address, err := bech32.ToBech32Address(strings.TrimPrefix(string(p), "0x"))
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("address", string(p))).Error("Failed to create bech32 address")
		return ""
	}
	return bech32Address
}

func NewCollection(address string) (Collection, error) {
	p, err := NewPrincipal(address)
	return Collection(p), err
}

func MustCollection(address string) Collection {
	return Collection(MustPrincipal(address))
}

func (c Collection) IsZero() bool {
	return Principal(c).IsZero()
}

func (c Collection) String() string {
	return string(c)
}
