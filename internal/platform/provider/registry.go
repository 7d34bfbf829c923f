package provider

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/fatflowers/paysync/pkg/types"
)

// Registry selects the status client for a provider name.
type Registry struct {
	clients map[types.PaymentProvider]StatusClient
}

func NewRegistry(clients ...StatusClient) *Registry {
	r := &Registry{clients: make(map[types.PaymentProvider]StatusClient, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

func (r *Registry) Get(p types.PaymentProvider) (StatusClient, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return c, nil
}

func (r *Registry) FetchStatus(ctx context.Context, p types.PaymentProvider, billID string) (*PaymentStatus, error) {
	c, err := r.Get(p)
	if err != nil {
		return nil, err
	}
	return c.FetchStatus(ctx, billID)
}

// ClientGroup is the fx value group every provider package contributes to.
const ClientGroup = `group:"status_clients"`

type registryParams struct {
	fx.In

	Clients []StatusClient `group:"status_clients"`
}

func newRegistry(p registryParams) *Registry {
	return NewRegistry(p.Clients...)
}

var Module = fx.Options(
	fx.Provide(newRegistry),
)
