package entity

import (
	"fmt"
)

// Builtin returns the descriptors for every entity type of the rental
// operation, in declaration order. Referenced types are declared before the
// types that reference them.
func Builtin() []Descriptor {
	return []Descriptor{
		{Name: "collaborators", Collection: "collaborators"},
		{Name: "vehicles", Collection: "vehicles"},
		{Name: "products", Collection: "products"},
		{Name: "routes", Collection: "routes", DependsOn: []string{"collaborators"}},
		{Name: "goals", Collection: "goals", DependsOn: []string{"collaborators"}},
		{Name: "cycles", Collection: "cycles", DependsOn: []string{"routes"}},
		{Name: "clients", Collection: "clients", DependsOn: []string{"routes"}},
		{Name: "contracts", Collection: "contracts", DependsOn: []string{"clients"}, ApprovalFields: []string{"approved"}},
		{Name: "signatures", Collection: "signatures", DependsOn: []string{"contracts"}},
		{Name: "tables", Collection: "tables", DependsOn: []string{"clients"}},
		{Name: "maintenances", Collection: "maintenances", DependsOn: []string{"tables"}},
		{Name: "settlements", Collection: "settlements", DependsOn: []string{"clients", "cycles", "tables"}, ApprovalFields: []string{"approved"}},
		{Name: "payments", Collection: "payments", DependsOn: []string{"settlements"}, ApprovalFields: []string{"confirmed"}},
		{Name: "expenses", Collection: "expenses", DependsOn: []string{"cycles", "vehicles"}},
		{Name: "inventory", Collection: "inventory", DependsOn: []string{"products"}},
	}
}

// Registry holds the declared descriptors and their computed sync orders.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry validates the descriptors and computes the dependency order.
// It fails on duplicate names, references to undeclared types, and cycles.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no entity descriptors declared")
	}

	byName := make(map[string]Descriptor, len(descriptors))
	names := make([]string, 0, len(descriptors))
	for _, desc := range descriptors {
		if desc.Name == "" {
			return nil, fmt.Errorf("descriptor with empty name")
		}
		if desc.Collection == "" {
			return nil, fmt.Errorf("entity %q: collection is required", desc.Name)
		}
		if _, dup := byName[desc.Name]; dup {
			return nil, fmt.Errorf("duplicate entity descriptor %q", desc.Name)
		}
		byName[desc.Name] = desc
		names = append(names, desc.Name)
	}

	for _, desc := range descriptors {
		for _, dep := range desc.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("entity %q depends on undeclared type %q", desc.Name, dep)
			}
		}
	}

	order, err := topoSort(names, byName)
	if err != nil {
		return nil, err
	}

	return &Registry{descriptors: byName, order: order}, nil
}

// MustBuiltin builds the registry for the builtin descriptors, panicking on
// declaration mistakes. Safe because Builtin is static.
func MustBuiltin() *Registry {
	registry, err := NewRegistry(Builtin())
	if err != nil {
		panic(err)
	}
	return registry
}

// Get returns the descriptor for an entity type.
func (r *Registry) Get(name string) (Descriptor, bool) {
	desc, ok := r.descriptors[name]
	return desc, ok
}

// Len returns the number of declared entity types.
func (r *Registry) Len() int {
	return len(r.order)
}

// SyncOrder returns entity type names with every referenced type before the
// types that reference it. Both pull and push walk this order, so a
// foreign-key-style reference never points at a not-yet-synced parent on
// either side.
func (r *Registry) SyncOrder() []string {
	cp := make([]string, len(r.order))
	copy(cp, r.order)
	return cp
}
