package exchange

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Options carries everything a venue adapter needs to build a gateway
// scoped to one trading pair.
type Options struct {
	Pair      string // "BTC/USDT"
	APIKey    string
	APISecret string
	Sandbox   bool
}

// Factory builds a gateway for one pair on one venue.
type Factory func(opts Options) (ports.ExchangeGateway, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a venue to the registry. Adapters call it from init;
// adding a venue means registering a new implementation, never a
// dynamic lookup.
func Register(venue string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[venue]; dup {
		panic(fmt.Sprintf("exchange.Register: duplicate venue %q", venue))
	}
	factories[venue] = f
}

// New builds a gateway for the named venue.
func New(venue string, opts Options) (ports.ExchangeGateway, error) {
	mu.RLock()
	f, ok := factories[venue]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("exchange.New: unknown venue %q (registered: %v)", venue, Venues())
	}
	return f(opts)
}

// Venues lists the registered venue identifiers, sorted.
func Venues() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
