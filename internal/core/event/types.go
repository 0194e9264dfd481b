package event

import "github.com/l1jgo/tickecs/internal/core/ecs"

// EntityAdded reports an entity that became visible in a world.
type EntityAdded struct {
	World  string
	Entity ecs.EntityID
}

// EntityRemoved reports an entity tagged removed; it leaves the world on the
// next commit.
type EntityRemoved struct {
	World  string
	Entity ecs.EntityID
}
