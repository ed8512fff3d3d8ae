package di

import (
	"github.com/ZilDuck/nft-marketplace/internal/api"
	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/ZilDuck/nft-marketplace/internal/ledger"
	"github.com/ZilDuck/nft-marketplace/internal/messenger"
	"github.com/ZilDuck/nft-marketplace/internal/store"
	"github.com/sarulabs/di/v2"
)

// Container gives typed access to the application definitions.
type Container struct {
	ctn di.Container
}

func NewContainer(cfg *config.Config) (*Container, error) {
	builder, err := di.NewBuilder(di.App)
	if err != nil {
		return nil, err
	}
	if err := builder.Add(Definitions(cfg)...); err != nil {
		return nil, err
	}

	return &Container{ctn: builder.Build()}, nil
}

func (c *Container) GetStore() (store.Store, error) {
	obj, err := c.ctn.SafeGet("store")
	if err != nil {
		return nil, err
	}
	return obj.(store.Store), nil
}

func (c *Container) GetEventManager() *event.Manager {
	return c.ctn.Get("event.manager").(*event.Manager)
}

func (c *Container) GetRelay() *messenger.Relay {
	return c.ctn.Get("relay").(*messenger.Relay)
}

// GetArchive returns nil when elastic search is disabled.
func (c *Container) GetArchive() (*elastic_search.Archive, error) {
	obj, err := c.ctn.SafeGet("archive")
	if err != nil {
		return nil, err
	}
	archive, _ := obj.(*elastic_search.Archive)
	return archive, nil
}

func (c *Container) GetElastic() (elastic_search.Index, error) {
	obj, err := c.ctn.SafeGet("elastic")
	if err != nil {
		return nil, err
	}
	index, _ := obj.(elastic_search.Index)
	return index, nil
}

func (c *Container) GetLedger() (*ledger.MarketplaceLedger, error) {
	obj, err := c.ctn.SafeGet("ledger")
	if err != nil {
		return nil, err
	}
	return obj.(*ledger.MarketplaceLedger), nil
}

func (c *Container) GetApi() (*api.Server, error) {
	obj, err := c.ctn.SafeGet("api")
	if err != nil {
		return nil, err
	}
	return obj.(*api.Server), nil
}

// Delete closes every built definition.
func (c *Container) Delete() error {
	return c.ctn.Delete()
}
