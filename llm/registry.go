package llm

import (
	"fmt"

	"github.com/agentflowhq/agentflow/registry"
)

// Registry maps a provider name to a configured Client, grounded on the
// teacher's pkg/llms/registry.go LLMRegistry wrapping the same generic
// registry.BaseRegistry.
type Registry struct {
	base *registry.BaseRegistry[Client]
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Client]()}
}

func (r *Registry) Register(name string, client Client) error {
	return r.base.Register(name, client)
}

func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.base.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm: no client registered under %q", name)
	}
	return c, nil
}

func (r *Registry) List() []Client { return r.base.List() }
