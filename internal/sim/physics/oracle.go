package physics

// Entity is the read side of anything the oracle can move: players and
// the vehicles they control.
type Entity interface {
	Position() Vec3
	Rotation() Rotation
	Velocity() Vec3
	BoundingBox() AABB
	OnGround() bool
	// Gravity is the downward acceleration per tick; ~0 means unaffected.
	Gravity() float64
}

// Oracle answers collision queries for the session core. Implementations
// are only called from the tick goroutine.
type Oracle interface {
	// Move returns the part of delta e can travel before colliding. It does
	// not change e.
	Move(e Entity, delta Vec3) Vec3
	HasCollisionAt(box AABB) bool
	GroundedBelow(e Entity) bool
}
