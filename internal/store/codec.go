package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
)

const (
	operatorKey        = "/operator/principal"
	operatorBalanceKey = "/operator/balance"
	listingPrefix      = "/listing/"
	proceedsPrefix     = "/proceeds/"
)

type mutation struct {
	key    string
	value  []byte
	delete bool
}

func listingKey(key entity.TokenKey) string {
	return fmt.Sprintf("%s%s/%d", listingPrefix, key.Collection, key.TokenId)
}

func proceedsKey(principal entity.Principal) string {
	return proceedsPrefix + string(principal)
}

func encodeUint(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}

func encode(changes Changeset) ([]mutation, error) {
	mutations := make([]mutation, 0, len(changes.Listings)+len(changes.Proceeds)+2)

	if changes.Operator != nil {
		mutations = append(mutations, mutation{key: operatorKey, value: []byte(*changes.Operator)})
	}
	if changes.OperatorBalance != nil {
		mutations = append(mutations, mutation{key: operatorBalanceKey, value: encodeUint(*changes.OperatorBalance)})
	}
	for key, listing := range changes.Listings {
		if key.Collection.IsZero() || strings.Contains(string(key.Collection), "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key.Collection)
		}
		if listing == nil || !listing.Active() {
			mutations = append(mutations, mutation{key: listingKey(key), delete: true})
			continue
		}
		value, err := json.Marshal(listing)
		if err != nil {
			return nil, err
		}
		mutations = append(mutations, mutation{key: listingKey(key), value: value})
	}
	for principal, balance := range changes.Proceeds {
		if balance == 0 {
			mutations = append(mutations, mutation{key: proceedsKey(principal), delete: true})
			continue
		}
		mutations = append(mutations, mutation{key: proceedsKey(principal), value: encodeUint(balance)})
	}

	return mutations, nil
}

func decode(snapshot *Snapshot, key string, value []byte) error {
	switch {
	case key == operatorKey:
		snapshot.Operator = entity.Principal(value)
	case key == operatorBalanceKey:
		balance, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
		}
		snapshot.OperatorBalance = balance
	case strings.HasPrefix(key, listingPrefix):
		tokenKey, err := parseListingKey(key)
		if err != nil {
			return err
		}
		var listing entity.Listing
		if err := json.Unmarshal(value, &listing); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
		}
		snapshot.Listings[tokenKey] = listing
	case strings.HasPrefix(key, proceedsPrefix):
		balance, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
		}
		snapshot.Proceeds[entity.Principal(strings.TrimPrefix(key, proceedsPrefix))] = balance
	default:
		return fmt.Errorf("%w: unexpected key %s", ErrCorruptEntry, key)
	}

	return nil
}

func parseListingKey(key string) (entity.TokenKey, error) {
	parts := strings.Split(strings.TrimPrefix(key, listingPrefix), "/")
	if len(parts) != 2 || parts[0] == "" {
		return entity.TokenKey{}, fmt.Errorf("%w: %s", ErrCorruptEntry, key)
	}
	tokenId, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return entity.TokenKey{}, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}

	return entity.NewTokenKey(entity.Collection(parts[0]), tokenId), nil
}
