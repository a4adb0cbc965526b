package entity

import (
	"context"
)

// Descriptor declares one synchronized entity type: where its documents live
// remotely, which types it references, and which fields carry locally
// authoritative state.
//
// One generic handler is parameterized by a Descriptor instead of writing a
// class per entity type; adding a type means adding a Descriptor.
type Descriptor struct {
	// Name is the entity type tag used in queue entries and sync metadata.
	Name string
	// Collection is the remote collection under the tenant partition.
	Collection string
	// DependsOn lists entity types this type references. Referenced types
	// sync before referencing ones in both directions.
	DependsOn []string
	// ApprovalFields name record fields set through an explicit local action.
	// The conflict resolver preserves the local value of these even when the
	// remote copy is newer.
	ApprovalFields []string
}

// LocalStore is the CRUD surface the host application provides over its
// relational store. The sync engine never touches the local schema directly.
type LocalStore interface {
	// Get returns the local record for an entity, reporting existence.
	Get(ctx context.Context, entityType, id string) (map[string]any, bool, error)
	// Upsert writes the record under the entity identity.
	Upsert(ctx context.Context, entityType, id string, record map[string]any) error
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, entityType, id string) error
}
