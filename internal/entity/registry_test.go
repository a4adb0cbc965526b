package entity_test

import (
	"testing"

	"feltsync/internal/entity"
)

func TestBuiltinRegistryIsAcyclic(t *testing.T) {
	registry, err := entity.NewRegistry(entity.Builtin())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if registry.Len() != len(entity.Builtin()) {
		t.Fatalf("expected %d types, got %d", len(entity.Builtin()), registry.Len())
	}
}

func TestSyncOrderRespectsDependencies(t *testing.T) {
	registry := entity.MustBuiltin()
	order := registry.SyncOrder()

	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}

	for _, desc := range entity.Builtin() {
		for _, dep := range desc.DependsOn {
			if position[dep] >= position[desc.Name] {
				t.Fatalf("%s depends on %s but syncs first (order: %v)", desc.Name, dep, order)
			}
		}
	}

	// The canonical chain from the rental domain.
	if !(position["routes"] < position["clients"] && position["clients"] < position["settlements"]) {
		t.Fatalf("expected routes before clients before settlements, got %v", order)
	}
}

func TestNewRegistryRejectsCycle(t *testing.T) {
	_, err := entity.NewRegistry([]entity.Descriptor{
		{Name: "a", Collection: "a", DependsOn: []string{"b"}},
		{Name: "b", Collection: "b", DependsOn: []string{"a"}},
	})
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestNewRegistryRejectsUndeclaredDependency(t *testing.T) {
	_, err := entity.NewRegistry([]entity.Descriptor{
		{Name: "a", Collection: "a", DependsOn: []string{"ghost"}},
	})
	if err == nil {
		t.Fatal("expected undeclared dependency error")
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := entity.NewRegistry([]entity.Descriptor{
		{Name: "a", Collection: "a"},
		{Name: "a", Collection: "a2"},
	})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestApprovalFieldsDeclared(t *testing.T) {
	registry := entity.MustBuiltin()
	desc, ok := registry.Get("settlements")
	if !ok {
		t.Fatal("settlements descriptor missing")
	}
	if len(desc.ApprovalFields) == 0 {
		t.Fatal("settlements must declare approval fields")
	}
}
