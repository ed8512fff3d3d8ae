package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	marketplace = "0x00000000000000000000000000000000000000ee"
	operator    = "0x9999999999999999999999999999999999999999"
)

func TestGetReadsEnvironment(t *testing.T) {
	t.Setenv("NETWORK", SepoliaNetwork)
	t.Setenv("LEDGER_MARKETPLACE", marketplace)
	t.Setenv("LEDGER_OPERATOR", operator)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REGISTRY_TIMEOUT", "5")
	t.Setenv("AMQP_RELIABLE", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := Get()

	assert.Equal(t, SepoliaNetwork, cfg.Network)
	assert.Equal(t, marketplace, cfg.Ledger.Marketplace)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Registry.Timeout)
	assert.Equal(t, 3, cfg.Registry.Retries)
	assert.False(t, cfg.Messenger.AmqpReliable)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Messenger.KafkaBrokers)
	assert.Equal(t, "sepolia.marketplace", cfg.Prefix())
	assert.Equal(t, operator, cfg.OperatorPrincipal().String())
}

func validConfig() *Config {
	return &Config{
		Network: LocalNetwork,
		Ledger:  LedgerConfig{Marketplace: marketplace, Operator: operator},
		Store:   StoreConfig{Driver: "pebble", Path: "./var/ledger"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	testCases := map[string]struct {
		modify func(c *Config)
		err    error
	}{
		"unknown network":      {func(c *Config) { c.Network = "ropsten" }, ErrUnknownNetwork},
		"missing marketplace":  {func(c *Config) { c.Ledger.Marketplace = "" }, ErrMarketplaceRequired},
		"missing operator":     {func(c *Config) { c.Ledger.Operator = "" }, ErrOperatorRequired},
		"unknown store driver": {func(c *Config) { c.Store.Driver = "redis" }, ErrUnknownStoreDriver},
		"remote without registry": {func(c *Config) {
			c.Network = SepoliaNetwork
			c.Payment.Url = "http://payments"
		}, ErrRegistryRequired},
		"remote without payment": {func(c *Config) {
			c.Network = ZilliqaNetwork
			c.Registry.Url = "http://registry"
		}, ErrPaymentRequired},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.err)
		})
	}

	cfg := validConfig()
	cfg.Ledger.Operator = "0xnothex"
	assert.Error(t, cfg.Validate())
}

func TestNetworks(t *testing.T) {
	assert.Equal(t, []string{LocalNetwork, LocalhostNetwork, SepoliaNetwork, ZilliqaNetwork}, Networks())

	sepolia, err := GetNetwork(SepoliaNetwork)
	require.NoError(t, err)
	assert.Equal(t, 11155111, sepolia.ChainId)
	assert.Equal(t, 6, sepolia.WaitConfirmations)

	assert.True(t, validConfig().IsLocalNetwork())
	assert.False(t, (&Config{Network: SepoliaNetwork}).IsLocalNetwork())
	assert.False(t, (&Config{Network: "ropsten"}).IsLocalNetwork())
}
