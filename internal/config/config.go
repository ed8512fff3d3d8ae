package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/ZilDuck/nft-marketplace/internal/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Env        string
	Network    string
	Index      string
	Debug      bool
	LogPath    string
	SentryDsn  string
	HttpPort   string
	HealthPort string
	ApiTimeout int

	Ledger        LedgerConfig
	Store         StoreConfig
	Registry      RpcConfig
	Payment       RpcConfig
	Messenger     MessengerConfig
	ElasticSearch ElasticSearchConfig
	Aws           AwsConfig
}

type LedgerConfig struct {
	Marketplace string
	Operator    string
}

type StoreConfig struct {
	Driver string
	Path   string
	Sync   bool
}

type RpcConfig struct {
	Url     string
	Timeout int
	Retries int
	Debug   bool
}

type MessengerConfig struct {
	AmqpUri      string
	AmqpExchange string
	AmqpReliable bool
	SqsQueueUrl  string
	SqsFifo      bool
	KafkaBrokers []string
	KafkaTopic   string
}

type AwsConfig struct {
	AccessKey string
	SecretKey string
	Token     string
	Region    string
}

type ElasticSearchConfig struct {
	Enabled          bool
	Hosts            []string
	Sniff            bool
	HealthCheck      bool
	Debug            bool
	Username         string
	Password         string
	Aws              bool
	MappingDir       string
	BulkPersistCount int
	Refresh          string
}

func init() {
	viper.AutomaticEnv()
}

func Init(name string) {
	if err := godotenv.Load(".env"); err != nil {
		zap.L().With(zap.Error(err)).Debug("No .env file loaded")
	}

	initLogger(name)
}

func initLogger(name string) {
	cfg := Get()
	log.NewLogger(cfg.LogPath, cfg.Debug, cfg.SentryDsn, name)
}

func Get() *Config {
	return &Config{
		Env:        getString("ENV", ""),
		Network:    getString("NETWORK", LocalNetwork),
		Index:      getString("INDEX_NAME", "marketplace"),
		Debug:      getBool("DEBUG", false),
		LogPath:    getString("LOG_PATH", "/tmp/marketplace.log"),
		SentryDsn:  getString("SENTRY_DSN", ""),
		HttpPort:   getString("HTTP_PORT", "8080"),
		HealthPort: getString("HEALTH_PORT", "8081"),
		ApiTimeout: getInt("API_TIMEOUT", 60),
		Ledger: LedgerConfig{
			Marketplace: getString("LEDGER_MARKETPLACE", ""),
			Operator:    getString("LEDGER_OPERATOR", ""),
		},
		Store: StoreConfig{
			Driver: getString("STORE_DRIVER", "pebble"),
			Path:   getString("STORE_PATH", "./var/ledger"),
			Sync:   getBool("STORE_SYNC", true),
		},
		Registry: RpcConfig{
			Url:     getString("REGISTRY_URL", ""),
			Timeout: getInt("REGISTRY_TIMEOUT", 30),
			Retries: getInt("REGISTRY_RETRIES", 3),
			Debug:   getBool("REGISTRY_DEBUG", false),
		},
		Payment: RpcConfig{
			Url:     getString("PAYMENT_URL", ""),
			Timeout: getInt("PAYMENT_TIMEOUT", 30),
			Retries: getInt("PAYMENT_RETRIES", 0),
			Debug:   getBool("PAYMENT_DEBUG", false),
		},
		Messenger: MessengerConfig{
			AmqpUri:      getString("AMQP_URI", ""),
			AmqpExchange: getString("AMQP_EXCHANGE", "marketplace.events"),
			AmqpReliable: getBool("AMQP_RELIABLE", true),
			SqsQueueUrl:  getString("SQS_QUEUE_URL", ""),
			SqsFifo:      getBool("SQS_FIFO", false),
			KafkaBrokers: getSlice("KAFKA_BROKERS", make([]string, 0), ","),
			KafkaTopic:   getString("KAFKA_TOPIC", "marketplace.events"),
		},
		Aws: AwsConfig{
			AccessKey: getString("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getString("AWS_SECRET_KEY_ID", ""),
			Token:     getString("AWS_TOKEN", ""),
			Region:    getString("AWS_REGION", ""),
		},
		ElasticSearch: ElasticSearchConfig{
			Enabled:          getBool("ELASTIC_SEARCH_ENABLED", false),
			Hosts:            getSlice("ELASTIC_SEARCH_HOSTS", make([]string, 0), ","),
			Sniff:            getBool("ELASTIC_SEARCH_SNIFF", true),
			HealthCheck:      getBool("ELASTIC_SEARCH_HEALTH_CHECK", true),
			Debug:            getBool("ELASTIC_SEARCH_DEBUG", false),
			Username:         getString("ELASTIC_SEARCH_USERNAME", ""),
			Password:         getString("ELASTIC_SEARCH_PASSWORD", ""),
			Aws:              getBool("ELASTIC_SEARCH_AWS", false),
			MappingDir:       getString("ELASTIC_SEARCH_MAPPING_DIR", "./mappings"),
			BulkPersistCount: getInt("ELASTIC_SEARCH_BULK_PERSIST_COUNT", 300),
			Refresh:          getString("ELASTIC_SEARCH_REFRESH", "wait_for"),
		},
	}
}

var (
	ErrMarketplaceRequired = errors.New("marketplace is required")
	ErrOperatorRequired    = errors.New("operator is required")
	ErrRegistryRequired    = errors.New("registry url is required outside local networks")
	ErrPaymentRequired     = errors.New("payment url is required outside local networks")
	ErrUnknownStoreDriver  = errors.New("unknown store driver")
)

// Validate checks the settings the ledger cannot start without.
func (c *Config) Validate() error {
	if _, err := GetNetwork(c.Network); err != nil {
		return err
	}
	if c.Ledger.Marketplace == "" {
		return ErrMarketplaceRequired
	}
	if _, err := entity.NewPrincipal(c.Ledger.Marketplace); err != nil {
		return fmt.Errorf("marketplace %q: %w", c.Ledger.Marketplace, err)
	}
	if c.Ledger.Operator == "" {
		return ErrOperatorRequired
	}
	if _, err := entity.NewPrincipal(c.Ledger.Operator); err != nil {
		return fmt.Errorf("operator %q: %w", c.Ledger.Operator, err)
	}
	if c.Store.Driver != "memory" && c.Store.Driver != "pebble" {
		return fmt.Errorf("%w: %s", ErrUnknownStoreDriver, c.Store.Driver)
	}
	if !c.IsLocalNetwork() {
		if c.Registry.Url == "" {
			return ErrRegistryRequired
		}
		if c.Payment.Url == "" {
			return ErrPaymentRequired
		}
	}

	return nil
}

func (c *Config) IsLocalNetwork() bool {
	network, err := GetNetwork(c.Network)
	return err == nil && network.Local
}

func (c *Config) MarketplacePrincipal() entity.Principal {
	p, _ := entity.NewPrincipal(c.Ledger.Marketplace)
	return p
}

func (c *Config) OperatorPrincipal() entity.Principal {
	p, _ := entity.NewPrincipal(c.Ledger.Operator)
	return p
}

// Prefix namespaces indices and routing keys per network, e.g. "sepolia.marketplace".
func (c *Config) Prefix() string {
	return fmt.Sprintf("%s.%s", c.Network, c.Index)
}

func getString(key string, defaultValue string) string {
	viper.SetDefault(key, defaultValue)
	return strings.TrimSpace(viper.GetString(key))
}

func getInt(key string, defaultValue int) int {
	viper.SetDefault(key, defaultValue)
	return viper.GetInt(key)
}

func getBool(key string, defaultValue bool) bool {
	viper.SetDefault(key, defaultValue)
	return viper.GetBool(key)
}

func getSlice(key string, defaultVal []string, sep string) []string {
	valStr := getString(key, "")
	if valStr == "" {
		return defaultVal
	}

	values := make([]string, 0)
	for _, v := range strings.Split(valStr, sep) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}

	return values
}
