// File: internal/infra/providers/registry.go
package providers

import (
	"fmt"
	"sort"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/ports/adapter"
)

// Registry maps a provider key to its adapter. It is built once at startup
// from configured credentials; adding a provider means registering it here
// and touching no call site.
type Registry struct {
	providers map[string]adapter.PaymentProvider
}

func NewRegistry(ps ...adapter.PaymentProvider) (*Registry, error) {
	r := &Registry{providers: make(map[string]adapter.PaymentProvider, len(ps))}
	for _, p := range ps {
		if p == nil {
			continue
		}
		if _, dup := r.providers[p.Key()]; dup {
			return nil, fmt.Errorf("duplicate provider key %q", p.Key())
		}
		r.providers[p.Key()] = p
	}
	return r, nil
}

func (r *Registry) Resolve(key string) (adapter.PaymentProvider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, key)
	}
	return p, nil
}

// Keys returns the registered provider keys, sorted for stable listings.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
