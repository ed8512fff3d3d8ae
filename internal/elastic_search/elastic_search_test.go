package elastic_search

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "local.marketplace"

var (
	collection = entity.MustCollection("0x2222222222222222222222222222222222222222")
	seller     = entity.MustPrincipal("0x1111111111111111111111111111111111111111")
	buyer      = entity.MustPrincipal("0x3333333333333333333333333333333333333333")
)

type fakeElastic struct {
	mu       sync.Mutex
	created  []string
	bulks    int
	docs     map[string]json.RawMessage
	failDocs map[string]bool
}

func newFakeElastic(t *testing.T) (*fakeElastic, *elastic.Client) {
	t.Helper()

	fake := &fakeElastic{docs: make(map[string]json.RawMessage), failDocs: make(map[string]bool)}
	srv := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	t.Cleanup(srv.Close)

	client, err := elastic.NewClient(elastic.SetURL(srv.URL), elastic.SetSniff(false), elastic.SetHealthcheck(false))
	require.NoError(t, err)

	return fake, client
}

func (f *fakeElastic) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	name := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodHead:
		for _, created := range f.created {
			if created == name {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut:
		f.created = append(f.created, name)
		_, _ = w.Write([]byte(`{"acknowledged":true,"shards_acknowledged":true,"index":"` + name + `"}`))
	case name == "_bulk":
		f.bulks++
		items := make([]map[string]interface{}, 0)
		hasErrors := false

		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var action map[string]struct {
				Index string `json:"_index"`
				Id    string `json:"_id"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &action); err != nil || len(action) == 0 {
				continue
			}
			meta := action["index"]
			scanner.Scan()

			item := map[string]interface{}{"_index": meta.Index, "_id": meta.Id, "status": 201, "result": "created"}
			if f.failDocs[meta.Id] {
				hasErrors = true
				item["status"] = 400
				item["error"] = map[string]interface{}{"type": "mapper_parsing_exception", "reason": "bad doc"}
			} else {
				f.docs[meta.Id] = append(json.RawMessage(nil), scanner.Bytes()...)
			}
			items = append(items, map[string]interface{}{"index": item})
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"took": 1, "errors": hasErrors, "items": items})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func soldEvent(tokenId uint64) event.Event {
	return event.New(event.TokenSoldEvent, event.TokenSold{
		Collection: collection,
		Buyer:      buyer,
		Seller:     seller,
		Price:      1_000_000,
		TokenId:    tokenId,
	})
}

func TestNftActionFromEvent(t *testing.T) {
	sold := soldEvent(7)
	action, ok := NftActionFromEvent(sold)
	require.True(t, ok)
	assert.Equal(t, entity.MarketplaceSaleAction, action.Action)
	assert.Equal(t, sold.Id, action.EventId)
	assert.Equal(t, collection, action.Contract)
	assert.Equal(t, uint64(7), action.TokenId)
	assert.Equal(t, seller, action.From)
	assert.Equal(t, buyer, action.To)
	assert.Equal(t, "1000000", action.Cost)
	assert.Equal(t, "20000", action.Fee)

	testCases := map[string]struct {
		event  event.Event
		action entity.ActionType
	}{
		"listed":      {event.New(event.TokenListedEvent, event.TokenListed{Collection: collection, Seller: seller, Price: 5}), entity.MarketplaceListingAction},
		"cancelled":   {event.New(event.TokenSaleCancelledEvent, event.TokenSaleCancelled{Collection: collection, Seller: seller, Price: 5}), entity.MarketplaceDelistingAction},
		"withdrawn":   {event.New(event.ProceedsWithdrawnEvent, event.ProceedsWithdrawn{Principal: seller, Amount: 5}), entity.ProceedsWithdrawalAction},
		"owner":       {event.New(event.OwnerBalanceWithdrawnEvent, event.OwnerBalanceWithdrawn{Principal: seller, Amount: 5}), entity.OperatorWithdrawalAction},
		"transferred": {event.New(event.OperatorTransferredEvent, event.OperatorTransferred{Previous: seller, Next: buyer}), entity.OperatorTransferAction},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			action, ok := NftActionFromEvent(tc.event)
			require.True(t, ok)
			assert.Equal(t, tc.action, action.Action)
		})
	}

	_, ok = NftActionFromEvent(event.New("Unknown", "payload"))
	assert.False(t, ok)
}

func TestArchiveBatchesDocuments(t *testing.T) {
	fake, client := newFakeElastic(t)
	idx := newIndex(client, config.ElasticSearchConfig{BulkPersistCount: 2, Refresh: "wait_for"}, prefix)
	archive := NewArchive(idx, prefix)

	first := soldEvent(1)
	archive.Handle(first)
	assert.Len(t, idx.GetRequests(), 1)
	assert.Zero(t, fake.bulks)

	archive.Handle(soldEvent(2))
	assert.Empty(t, idx.GetRequests())
	assert.Equal(t, 1, fake.bulks)
	assert.Len(t, fake.docs, 2)

	action, _ := NftActionFromEvent(first)
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.docs[action.Slug()], &stored))
	assert.Equal(t, "sale", stored["action"])
	assert.Equal(t, "20000", stored["fee"])

	archive.Handle(soldEvent(3))
	require.NoError(t, archive.Flush(context.Background()))
	assert.Equal(t, 2, fake.bulks)
	assert.Empty(t, idx.GetRequests())
}

func TestPersistKeepsFailedRequests(t *testing.T) {
	fake, client := newFakeElastic(t)
	idx := newIndex(client, config.ElasticSearchConfig{BulkPersistCount: 10}, prefix)

	good, _ := NftActionFromEvent(soldEvent(1))
	bad, _ := NftActionFromEvent(soldEvent(2))
	fake.failDocs[bad.Slug()] = true

	idx.AddIndexRequest(NftActionIndex.Get(prefix), good)
	idx.AddIndexRequest(NftActionIndex.Get(prefix), bad)

	persisted, err := idx.Persist(context.Background())
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, 1, persisted)

	assert.False(t, idx.HasRequest(good))
	assert.True(t, idx.HasRequest(bad))

	idx.ClearRequests()
	assert.Empty(t, idx.GetRequests())
}

func TestInstallMappings(t *testing.T) {
	fake, client := newFakeElastic(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nftaction.json"), []byte(`{"mappings":{}}`), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	idx := newIndex(client, config.ElasticSearchConfig{MappingDir: dir}, prefix)
	require.NoError(t, idx.InstallMappings(context.Background()))
	require.NoError(t, idx.InstallMappings(context.Background()))

	assert.Equal(t, []string{"local.marketplace.nftaction"}, fake.created)
}

func TestInstallMappingsMissingDir(t *testing.T) {
	_, client := newFakeElastic(t)
	idx := newIndex(client, config.ElasticSearchConfig{MappingDir: filepath.Join(t.TempDir(), "missing")}, prefix)

	assert.Error(t, idx.InstallMappings(context.Background()))
}
