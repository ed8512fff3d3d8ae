package di

import (
	"context"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/api"
	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/elastic_search"
	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/ZilDuck/nft-marketplace/internal/ledger"
	"github.com/ZilDuck/nft-marketplace/internal/messenger"
	"github.com/ZilDuck/nft-marketplace/internal/payment"
	"github.com/ZilDuck/nft-marketplace/internal/registry"
	"github.com/ZilDuck/nft-marketplace/internal/rpc"
	"github.com/ZilDuck/nft-marketplace/internal/store"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

func Definitions(cfg *config.Config) []di.Def {
	return []di.Def{
		{
			Name: "network",
			Build: func(ctn di.Container) (interface{}, error) {
				return config.GetNetwork(cfg.Network)
			},
		},
		{
			Name: "store",
			Build: func(ctn di.Container) (interface{}, error) {
				return store.Open(cfg.Store.Driver, cfg.Store.Path, cfg.Store.Sync)
			},
			Close: func(obj interface{}) error {
				return obj.(store.Store).Close()
			},
		},
		{
			Name: "registry",
			Build: func(ctn di.Container) (interface{}, error) {
				network := ctn.Get("network").(config.Network)
				if network.Local && cfg.Registry.Url == "" {
					zap.L().Warn("Registry: Using in memory registry")
					return registry.NewMemory(cfg.MarketplacePrincipal()), nil
				}

				client, err := rpc.NewClient(cfg.Registry.Url, time.Duration(cfg.Registry.Timeout)*time.Second, cfg.Registry.Retries, cfg.Registry.Debug)
				if err != nil {
					return nil, err
				}
				return registry.NewRemote(client, network.WaitConfirmations), nil
			},
		},
		{
			Name: "payment",
			Build: func(ctn di.Container) (interface{}, error) {
				network := ctn.Get("network").(config.Network)
				if network.Local && cfg.Payment.Url == "" {
					zap.L().Warn("Payment: Using in memory payment channel")
					return payment.NewMemory(), nil
				}

				client, err := rpc.NewClient(cfg.Payment.Url, time.Duration(cfg.Payment.Timeout)*time.Second, cfg.Payment.Retries, cfg.Payment.Debug)
				if err != nil {
					return nil, err
				}
				return payment.NewRemote(client, network.WaitConfirmations), nil
			},
		},
		{
			Name: "event.manager",
			Build: func(ctn di.Container) (interface{}, error) {
				return event.NewManager(), nil
			},
			Close: func(obj interface{}) error {
				obj.(*event.Manager).Close()
				return nil
			},
		},
		{
			Name: "relay",
			Build: func(ctn di.Container) (interface{}, error) {
				return messenger.NewRelay(publishers(cfg)...), nil
			},
			Close: func(obj interface{}) error {
				return obj.(*messenger.Relay).Close()
			},
		},
		{
			Name: "elastic",
			Build: func(ctn di.Container) (interface{}, error) {
				if !cfg.ElasticSearch.Enabled {
					return nil, nil
				}
				return elastic_search.New(cfg.ElasticSearch, cfg.Aws, cfg.Prefix())
			},
		},
		{
			Name: "archive",
			Build: func(ctn di.Container) (interface{}, error) {
				index, ok := ctn.Get("elastic").(elastic_search.Index)
				if !ok {
					return nil, nil
				}
				return elastic_search.NewArchive(index, cfg.Prefix()), nil
			},
			Close: func(obj interface{}) error {
				archive, ok := obj.(*elastic_search.Archive)
				if !ok || archive == nil {
					return nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return archive.Flush(ctx)
			},
		},
		{
			Name: "ledger",
			Build: func(ctn di.Container) (interface{}, error) {
				return ledger.New(
					context.Background(),
					cfg.MarketplacePrincipal(),
					cfg.OperatorPrincipal(),
					ctn.Get("registry").(ledger.AssetRegistry),
					ctn.Get("payment").(ledger.PaymentChannel),
					ctn.Get("store").(store.Store),
					ctn.Get("event.manager").(*event.Manager),
				)
			},
		},
		{
			Name: "api",
			Build: func(ctn di.Container) (interface{}, error) {
				server := api.NewServer(ctn.Get("ledger").(*ledger.MarketplaceLedger), time.Duration(cfg.ApiTimeout)*time.Second)
				if local, ok := ctn.Get("registry").(*registry.Memory); ok && ctn.Get("network").(config.Network).Local {
					zap.L().Warn("API: Serving local registry routes")
					server.WithLocalRegistry(local)
				}
				return server, nil
			},
		},
	}
}

// publishers builds one publisher per configured broker. A broker that cannot
// be reached at startup is logged and skipped.
func publishers(cfg *config.Config) []messenger.Publisher {
	publishers := make([]messenger.Publisher, 0)
	m := cfg.Messenger

	if m.AmqpUri != "" {
		publisher, err := messenger.NewAmqpPublisher(m.AmqpUri, m.AmqpExchange, cfg.Prefix(), m.AmqpReliable)
		if err != nil {
			zap.L().With(zap.Error(err)).Error("Messenger: Failed to create AMQP publisher")
		} else {
			publishers = append(publishers, publisher)
		}
	}

	if m.SqsQueueUrl != "" {
		sess, err := messenger.NewSqsSession(cfg.Aws.Region, cfg.Aws.AccessKey, cfg.Aws.SecretKey, cfg.Aws.Token)
		if err != nil {
			zap.L().With(zap.Error(err)).Error("Messenger: Failed to create SQS session")
		} else {
			publishers = append(publishers, messenger.NewSqsPublisher(sqs.New(sess), m.SqsQueueUrl, m.SqsFifo))
		}
	}

	if len(m.KafkaBrokers) != 0 {
		publishers = append(publishers, messenger.NewKafkaPublisher(m.KafkaBrokers, m.KafkaTopic))
	}

	return publishers
}
