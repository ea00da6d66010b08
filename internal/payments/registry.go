package payments

import (
	"fmt"
	"net/http"

	"github.com/skshopping/shop-backend/pkg/config"
	"github.com/skshopping/shop-backend/pkg/enums"
)

// Registry holds the configured adapters. Providers without credentials are skipped.
type Registry struct {
	adapters map[enums.PaymentProvider]Adapter
	primary  enums.PaymentProvider
}

// NewRegistry builds adapters from config. The primary provider issues new artifacts
// and must be configured; the other one only receives webhooks when present.
func NewRegistry(cfg *config.Config, client *http.Client) (*Registry, error) {
	primary, err := enums.ParsePaymentProvider(cfg.Orders.PaymentProvider)
	if err != nil {
		return nil, fmt.Errorf("payment provider: %w", err)
	}
	reg := &Registry{adapters: map[enums.PaymentProvider]Adapter{}, primary: primary}

	if cfg.GBPrimePay.Token != "" {
		gb, err := NewGBPrimePay(cfg.GBPrimePay, cfg.Orders.GatewayTimeout, client)
		if err != nil {
			return nil, err
		}
		reg.adapters[gb.Provider()] = gb
	}
	if cfg.Omise.SecretKey != "" {
		om, err := NewOmise(cfg.Omise, cfg.Orders.GatewayTimeout, client)
		if err != nil {
			return nil, err
		}
		reg.adapters[om.Provider()] = om
	}
	if _, ok := reg.adapters[primary]; !ok {
		return nil, fmt.Errorf("payment provider %s is not configured", primary)
	}
	return reg, nil
}

// NewStaticRegistry wires explicit adapters, mostly for tests.
func NewStaticRegistry(primary enums.PaymentProvider, adapters ...Adapter) *Registry {
	reg := &Registry{adapters: map[enums.PaymentProvider]Adapter{}, primary: primary}
	for _, adapter := range adapters {
		reg.adapters[adapter.Provider()] = adapter
	}
	return reg
}

func (r *Registry) Get(provider enums.PaymentProvider) (Adapter, bool) {
	adapter, ok := r.adapters[provider]
	return adapter, ok
}

// Primary returns the adapter used for new payment artifacts.
func (r *Registry) Primary() Adapter {
	return r.adapters[r.primary]
}
