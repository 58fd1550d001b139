package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the validated set of tracked tokens and on-chain venues. It is
// loaded once at startup and read-only afterwards.
type Catalog struct {
	Tokens []domain.TokenDescriptor
	Chains []domain.VenueDescriptor

	tokenIdx map[string]int
	chainIdx map[string]int
}

type catalogFile struct {
	Tokens []tokenEntry `yaml:"tokens"`
	Chains []chainEntry `yaml:"chains"`
}

type tokenEntry struct {
	Symbol   string            `yaml:"symbol"`
	Decimals int               `yaml:"decimals"`
	Symbols  map[string]string `yaml:"symbols"`
}

type chainEntry struct {
	Network        string            `yaml:"network"`
	RPCURL         string            `yaml:"rpc_url"`
	Stable         string            `yaml:"stable"`
	StableDecimals int               `yaml:"stable_decimals"`
	Factory        string            `yaml:"factory"`
	FeeTier        uint32            `yaml:"fee_tier"`
	Tokens         map[string]string `yaml:"tokens"`
}

// LoadCatalog reads a YAML catalogue from path. An empty path returns the
// built-in catalogue.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalogYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read catalog %s: %w", path, err)
		}
		raw = b
	}
	return ParseCatalog(raw)
}

// DefaultCatalog returns the built-in catalogue.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("config: built-in catalog invalid: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a YAML catalogue.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse catalog: %w", err)
	}

	var errs []string
	c := &Catalog{
		tokenIdx: make(map[string]int, len(f.Tokens)),
		chainIdx: make(map[string]int, len(f.Chains)),
	}

	for _, t := range f.Tokens {
		sym := strings.TrimSpace(t.Symbol)
		switch {
		case sym == "":
			errs = append(errs, "token with empty symbol")
			continue
		case t.Decimals < 0 || t.Decimals > 36:
			errs = append(errs, fmt.Sprintf("token %s: decimals %d out of range", sym, t.Decimals))
			continue
		}
		if _, dup := c.tokenIdx[sym]; dup {
			errs = append(errs, fmt.Sprintf("token %s: duplicate", sym))
			continue
		}
		c.tokenIdx[sym] = len(c.Tokens)
		c.Tokens = append(c.Tokens, domain.TokenDescriptor{
			Symbol:   sym,
			Decimals: t.Decimals,
			Symbols:  t.Symbols,
		})
	}

	for _, ch := range f.Chains {
		network := strings.ToLower(strings.TrimSpace(ch.Network))
		if network == "" {
			errs = append(errs, "chain with empty network")
			continue
		}
		if _, dup := c.chainIdx[network]; dup {
			errs = append(errs, fmt.Sprintf("chain %s: duplicate", network))
			continue
		}
		if !common.IsHexAddress(ch.Stable) {
			errs = append(errs, fmt.Sprintf("chain %s: invalid stable address %q", network, ch.Stable))
		}
		if !common.IsHexAddress(ch.Factory) {
			errs = append(errs, fmt.Sprintf("chain %s: invalid factory address %q", network, ch.Factory))
		}
		if ch.StableDecimals <= 0 {
			errs = append(errs, fmt.Sprintf("chain %s: stable_decimals must be > 0", network))
		}

		tokens := make(map[string]common.Address, len(ch.Tokens))
		for _, sym := range sortedKeys(ch.Tokens) {
			addr := ch.Tokens[sym]
			if _, known := c.tokenIdx[sym]; !known {
				errs = append(errs, fmt.Sprintf("chain %s: unknown token %s", network, sym))
				continue
			}
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("chain %s: invalid address for %s: %q", network, sym, addr))
				continue
			}
			tokens[sym] = common.HexToAddress(addr)
		}

		feeTier := ch.FeeTier
		if feeTier == 0 {
			feeTier = 3000
		}
		c.chainIdx[network] = len(c.Chains)
		c.Chains = append(c.Chains, domain.VenueDescriptor{
			Network:        network,
			RPCURL:         ch.RPCURL,
			StableAddress:  common.HexToAddress(ch.Stable),
			StableDecimals: ch.StableDecimals,
			FactoryAddress: common.HexToAddress(ch.Factory),
			Tokens:         tokens,
			DefaultFeeTier: feeTier,
		})
	}

	if len(c.Tokens) == 0 {
		errs = append(errs, "no tokens defined")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return c, nil
}

// Networks returns every chain network name in catalogue order.
func (c *Catalog) Networks() []string {
	out := make([]string, len(c.Chains))
	for i, ch := range c.Chains {
		out[i] = ch.Network
	}
	return out
}

// Token looks up a token descriptor by symbol.
func (c *Catalog) Token(symbol string) (domain.TokenDescriptor, bool) {
	i, ok := c.tokenIdx[symbol]
	if !ok {
		return domain.TokenDescriptor{}, false
	}
	return c.Tokens[i], true
}

// Chain looks up an on-chain venue by network name.
func (c *Catalog) Chain(network string) (domain.VenueDescriptor, bool) {
	i, ok := c.chainIdx[strings.ToLower(network)]
	if !ok {
		return domain.VenueDescriptor{}, false
	}
	return c.Chains[i], true
}

// Symbols returns every token symbol in catalogue order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		out[i] = t.Symbol
	}
	return out
}

// SelectChains returns the chains named in networks, or every chain when
// networks is empty. rpc overrides replace the catalogue RPC URL. Unknown
// network names are reported as an error.
func (c *Catalog) SelectChains(networks []string, rpc map[string]string) ([]domain.VenueDescriptor, error) {
	var picked []domain.VenueDescriptor
	if len(networks) == 0 {
		picked = append(picked, c.Chains...)
	} else {
		var missing []string
		for _, n := range networks {
			ch, ok := c.Chain(n)
			if !ok {
				missing = append(missing, n)
				continue
			}
			picked = append(picked, ch)
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, fmt.Errorf("config: unknown chains: %s", strings.Join(missing, ", "))
		}
	}
	for i := range picked {
		if u, ok := rpc[picked[i].Network]; ok && u != "" {
			picked[i].RPCURL = u
		}
	}
	return picked, nil
}
