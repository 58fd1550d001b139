package throttle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

// Policy holds the admission limits per venue family.
type Policy struct {
	Pacing            time.Duration
	CentralizedLimit  int
	DerivativeLimit   int
	DefaultChainLimit int
	// ChainLimits overrides DefaultChainLimit for individual networks.
	ChainLimits map[string]int
	// VenueLimits overrides the family cap for individual venues.
	VenueLimits map[string]int
}

// DefaultPolicy mirrors the observed venue behaviour: cheap centralized
// endpoints tolerate 8 parallel calls, public chain RPCs far fewer.
func DefaultPolicy() Policy {
	return Policy{
		Pacing:            200 * time.Millisecond,
		CentralizedLimit:  8,
		DerivativeLimit:   4,
		DefaultChainLimit: 3,
		ChainLimits:       map[string]int{"base": 1, "ethereum": 2},
		VenueLimits:       map[string]int{"bybit": 5},
	}
}

// Controller hands out one Gate per venue key. Gates are created lazily and
// live for the controller's lifetime.
type Controller struct {
	policy Policy
	shared *Shared
	logger *slog.Logger

	mu    sync.Mutex
	gates map[string]*Gate
}

// NewController creates a Controller. shared may be nil.
func NewController(policy Policy, shared *Shared, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		policy: policy,
		shared: shared,
		logger: logger.With(slog.String("component", "throttle")),
		gates:  make(map[string]*Gate),
	}
}

// Gate returns the gate for a venue. For on-chain venues name is the network,
// since the RPC endpoint is what throttles.
func (c *Controller) Gate(family domain.VenueFamily, name string) *Gate {
	key := family.String() + ":" + name

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gates[key]; ok {
		return g
	}
	g := NewGate(key, c.limitFor(family, name), c.policy.Pacing, c.shared, c.logger)
	c.gates[key] = g
	return g
}

func (c *Controller) limitFor(family domain.VenueFamily, name string) int {
	if n, ok := c.policy.VenueLimits[name]; ok && n > 0 {
		return n
	}
	switch family {
	case domain.FamilyAMM:
		if n, ok := c.policy.ChainLimits[name]; ok && n > 0 {
			return n
		}
		return c.policy.DefaultChainLimit
	case domain.FamilyDerivative:
		return c.policy.DerivativeLimit
	default:
		return c.policy.CentralizedLimit
	}
}
