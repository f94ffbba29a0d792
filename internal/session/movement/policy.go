package movement

import "voxelsession.ai/internal/sim/physics"

type Kind string

const (
	KindPlayer  Kind = "player"
	KindVehicle Kind = "vehicle"
)

// Policy selects the variant of the reconciliation algorithm. The player
// and vehicle paths differ only in these switches.
type Policy struct {
	Kind Kind
	// BurstAllowance scales the speed budget by the number of movement
	// packets received since the last tick.
	BurstAllowance bool
	// Exemptions enables the player-only carve-outs: dimension change,
	// sleeping, creative and spectator.
	Exemptions bool
	// GlideBudget uses the larger budget while gliding.
	GlideBudget bool
	// Jumps triggers the mover's jump when it leaves the ground upward.
	Jumps bool
	// CollisionDeflate shrinks boxes before the pre/post collision probes.
	CollisionDeflate float64
}

var PlayerPolicy = Policy{
	Kind:             KindPlayer,
	BurstAllowance:   true,
	Exemptions:       true,
	GlideBudget:      true,
	Jumps:            true,
	CollisionDeflate: 1e-5,
}

var VehiclePolicy = Policy{
	Kind:             KindVehicle,
	CollisionDeflate: 0.0625,
}

// Conditions is the mover's state relevant to validation, sampled when a
// packet is handled.
type Conditions struct {
	SingleplayerOwner bool
	ChangingDimension bool
	Sleeping          bool
	Creative          bool
	Spectator         bool
	NoPhysics         bool
	Passenger         bool
	Dead              bool
	Gliding           bool
	MayFly            bool
	Levitating        bool
	AutoSpin          bool
	NoGravity         bool
	FlightAllowed     bool
}

// Mover is an entity the reconciler may reposition.
type Mover interface {
	physics.Entity
	SetPose(pos physics.Vec3, rot physics.Rotation)
}

// GroundSetter is implemented by movers that track the client's on-ground flag.
type GroundSetter interface {
	SetOnGround(bool)
}

type Jumper interface {
	Jump()
}
