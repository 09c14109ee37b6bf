package enocean

import "fmt"

// Dispatcher routes telegrams to the entities registered for the sender.
//
// The routing table is built once by NewDispatcher and never modified,
// so Dispatch may run on one goroutine while Entities/Entity are read from
// others. Dispatch itself is meant to be called from a single goroutine:
// entities see telegrams in arrival order and are invoked in the order they
// were registered.
type Dispatcher struct {
	routes   map[Address][]Entity
	byID     map[string]Entity
	entities []Entity
	logger   Logger
}

// NewDispatcher builds the routing table.
// Entities with a duplicate entity ID are skipped with a warning.
func NewDispatcher(entities []Entity, logger Logger) *Dispatcher {
	d := &Dispatcher{
		routes: make(map[Address][]Entity),
		byID:   make(map[string]Entity, len(entities)),
		logger: logger,
	}
	for _, e := range entities {
		if _, dup := d.byID[e.EntityID()]; dup {
			if logger != nil {
				logger.Warn("duplicate entity, skipping", "entity_id", e.EntityID())
			}
			continue
		}
		d.byID[e.EntityID()] = e
		d.entities = append(d.entities, e)
		d.routes[e.Address()] = append(d.routes[e.Address()], e)
	}
	return d
}

// Dispatch delivers a telegram to every entity registered for its sender.
// A panic in one entity is recovered and logged; remaining entities still run.
//
// Returns:
//   - int: Number of entities the telegram was delivered to
func (d *Dispatcher) Dispatch(t Telegram) int {
	targets := d.routes[t.Sender]
	for _, e := range targets {
		d.deliver(e, t)
	}
	return len(targets)
}

func (d *Dispatcher) deliver(e Entity, t Telegram) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("entity callback panic",
				"entity_id", e.EntityID(),
				"telegram", t.String(),
				"error", fmt.Errorf("%v", r))
		}
	}()
	e.ValueChanged(t)
}

// Knows reports whether any entity is registered for addr.
func (d *Dispatcher) Knows(addr Address) bool {
	_, ok := d.routes[addr]
	return ok
}

// Entities returns the registered entities in registration order.
func (d *Dispatcher) Entities() []Entity {
	out := make([]Entity, len(d.entities))
	copy(out, d.entities)
	return out
}

// Entity looks up an entity by entity ID.
func (d *Dispatcher) Entity(entityID string) (Entity, bool) {
	e, ok := d.byID[entityID]
	return e, ok
}

// DeviceCount returns the number of distinct device addresses.
func (d *Dispatcher) DeviceCount() int {
	return len(d.routes)
}
