package event

import (
	"fmt"
	"sync"
)

// Schema binds an event type to the payload it carries.
type Schema struct {
	// Type is the event type tag this schema decodes.
	Type Type

	// Version is the schema version number.
	Version int

	// New returns a pointer to a fresh payload value for decoding.
	New func() any

	// Description explains the event's purpose.
	Description string
}

// Registry manages payload schemas keyed by event type.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[Type]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[Type]*Schema)}
}

// Register adds a schema. A schema with the same type replaces the
// previous registration.
func (r *Registry) Register(schema *Schema) error {
	if schema.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if schema.New == nil {
		return fmt.Errorf("schema for %s has no payload factory", schema.Type)
	}
	if schema.Version <= 0 {
		schema.Version = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Type] = schema
	return nil
}

// MustRegister adds a schema, panicking on error. For process wiring.
func (r *Registry) MustRegister(schema *Schema) {
	if err := r.Register(schema); err != nil {
		panic(fmt.Sprintf("register event schema: %v", err))
	}
}

// Get returns the schema for an event type.
func (r *Registry) Get(eventType Type) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[eventType]
	return schema, ok
}

// Has returns true if a schema exists for the event type.
func (r *Registry) Has(eventType Type) bool {
	_, ok := r.Get(eventType)
	return ok
}

// Types returns all registered event types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// NewStoreRegistry returns a registry with every event type the store
// backend publishes.
func NewStoreRegistry() *Registry {
	r := NewRegistry()
	orderSchema := func(t Type, desc string) *Schema {
		return &Schema{Type: t, Version: 1, New: func() any { return new(OrderEvent) }, Description: desc}
	}
	productSchema := func(t Type, desc string) *Schema {
		return &Schema{Type: t, Version: 1, New: func() any { return new(ProductEvent) }, Description: desc}
	}

	r.MustRegister(orderSchema(OrderCreated, "an order was placed"))
	r.MustRegister(orderSchema(OrderDeleted, "an order was removed"))
	r.MustRegister(productSchema(ProductCreated, "a product entered the catalog"))
	r.MustRegister(productSchema(ProductUpdated, "a catalog product changed"))
	r.MustRegister(productSchema(ProductDeleted, "a product left the catalog"))
	return r
}
