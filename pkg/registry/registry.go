// Package registry holds the static per-chain configuration every other
// component depends on.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dustsweep/pkg/types"
)

// Registry is the immutable set of supported chains, loaded once at
// process start.
type Registry struct {
	chains map[uint64]types.ChainConfig
	order  []uint64
}

type chainsFile struct {
	Chains []types.ChainConfig `yaml:"chains"`
}

// Load reads a yaml chains file from disk and hydrates a Registry.
func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chains file: %w", err)
	}
	defer file.Close()

	var cf chainsFile
	if err := yaml.NewDecoder(file).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode chains yaml: %w", err)
	}
	if len(cf.Chains) == 0 {
		return nil, fmt.Errorf("chains file %s declares no chains", path)
	}
	return New(cf.Chains)
}

// New builds a Registry from an in-memory chain list.
func New(chains []types.ChainConfig) (*Registry, error) {
	r := &Registry{chains: make(map[uint64]types.ChainConfig, len(chains))}
	for _, c := range chains {
		if c.ChainID == 0 {
			return nil, fmt.Errorf("chain %q has no chain id", c.Name)
		}
		if c.RPCURL == "" {
			return nil, fmt.Errorf("chain %d has no rpc url", c.ChainID)
		}
		if _, dup := r.chains[c.ChainID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d", c.ChainID)
		}
		r.chains[c.ChainID] = c
		r.order = append(r.order, c.ChainID)
	}
	return r, nil
}

// Get returns the configuration for a chain id.
func (r *Registry) Get(chainID uint64) (types.ChainConfig, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return types.ChainConfig{}, fmt.Errorf("chain %d: %w", chainID, types.ErrUnsupportedChain)
	}
	return c, nil
}

// All returns every configured chain in file order.
func (r *Registry) All() []types.ChainConfig {
	out := make([]types.ChainConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}

// Active returns the chains selected by the include/exclude filters. An
// empty include list selects every chain; exclusions are applied after.
func (r *Registry) Active(include, exclude []uint64) []types.ChainConfig {
	included := make(map[uint64]bool, len(include))
	for _, id := range include {
		included[id] = true
	}
	excluded := make(map[uint64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	out := make([]types.ChainConfig, 0, len(r.order))
	for _, id := range r.order {
		if len(include) > 0 && !included[id] {
			continue
		}
		if excluded[id] {
			continue
		}
		out = append(out, r.chains[id])
	}
	return out
}
