package elastic_search

import (
	"fmt"
)

type Indices string

var (
	NftActionIndex Indices = "nftaction"
)

// Get prefixes the index with the network and index name.
func (i Indices) Get(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, string(i))
}
