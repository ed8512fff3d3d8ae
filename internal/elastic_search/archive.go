package elastic_search

import (
	"context"
	"strconv"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"go.uber.org/zap"
)

const archiveTimeout = 30 * time.Second

// Archive stores every marketplace event as an NftAction document. It is
// write only: nothing in the service reads the archive back.
type Archive struct {
	index  Index
	prefix string
}

func NewArchive(index Index, prefix string) *Archive {
	return &Archive{index: index, prefix: prefix}
}

func (a *Archive) Handle(e event.Event) {
	action, ok := NftActionFromEvent(e)
	if !ok {
		zap.L().With(zap.String("type", string(e.Type))).Warn("ElasticCache: Unknown event payload")
		return
	}

	a.index.AddIndexRequest(NftActionIndex.Get(a.prefix), action)

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if _, err := a.index.BatchPersist(ctx); err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticCache: Batch persist failed")
	}
}

// Flush persists whatever is still buffered.
func (a *Archive) Flush(ctx context.Context) error {
	_, err := a.index.Persist(ctx)
	return err
}

func NftActionFromEvent(e event.Event) (entity.NftAction, bool) {
	action := entity.NftAction{
		EventId:     e.Id,
		Marketplace: string(entity.EtherealGalleryMarketplace),
		Time:        e.Time,
	}

	switch payload := e.Payload.(type) {
	case event.TokenListed:
		action.Action = entity.MarketplaceListingAction
		action.Contract = payload.Collection
		action.TokenId = payload.TokenId
		action.From = payload.Seller
		action.Cost = strconv.FormatUint(payload.Price, 10)
	case event.TokenSaleCancelled:
		action.Action = entity.MarketplaceDelistingAction
		action.Contract = payload.Collection
		action.TokenId = payload.TokenId
		action.From = payload.Seller
		action.Cost = strconv.FormatUint(payload.Price, 10)
	case event.TokenSold:
		fee, _ := entity.SplitPrice(payload.Price)
		action.Action = entity.MarketplaceSaleAction
		action.Contract = payload.Collection
		action.TokenId = payload.TokenId
		action.From = payload.Seller
		action.To = payload.Buyer
		action.Cost = strconv.FormatUint(payload.Price, 10)
		action.Fee = strconv.FormatUint(fee, 10)
	case event.ProceedsWithdrawn:
		action.Action = entity.ProceedsWithdrawalAction
		action.To = payload.Principal
		action.Cost = strconv.FormatUint(payload.Amount, 10)
	case event.OwnerBalanceWithdrawn:
		action.Action = entity.OperatorWithdrawalAction
		action.To = payload.Principal
		action.Cost = strconv.FormatUint(payload.Amount, 10)
	case event.OperatorTransferred:
		action.Action = entity.OperatorTransferAction
		action.From = payload.Previous
		action.To = payload.Next
	default:
		return action, false
	}

	return action, true
}
