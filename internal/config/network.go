package config

import (
	"errors"
	"fmt"
	"sort"
)

const (
	LocalNetwork     = "local"
	LocalhostNetwork = "localhost"
	SepoliaNetwork   = "sepolia"
	ZilliqaNetwork   = "zilliqa"
)

var ErrUnknownNetwork = errors.New("unknown network")

type Network struct {
	Name              string
	ChainId           int
	WaitConfirmations int
	Local             bool
}

var networks = map[string]Network{
	LocalNetwork:     {Name: LocalNetwork, ChainId: 31337, WaitConfirmations: 1, Local: true},
	LocalhostNetwork: {Name: LocalhostNetwork, ChainId: 31337, WaitConfirmations: 1, Local: true},
	SepoliaNetwork:   {Name: SepoliaNetwork, ChainId: 11155111, WaitConfirmations: 6},
	ZilliqaNetwork:   {Name: ZilliqaNetwork, ChainId: 32769, WaitConfirmations: 6},
}

func GetNetwork(name string) (Network, error) {
	network, ok := networks[name]
	if !ok {
		return Network{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	return network, nil
}

func Networks() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
