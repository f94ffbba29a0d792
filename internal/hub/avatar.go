package hub

import (
	"sync/atomic"

	"github.com/google/uuid"

	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/session/movement"
	"voxelsession.ai/internal/sim/physics"
)

const (
	boatWidth   = 1.375
	boatHeight  = 0.5625
	boatGravity = 0.04
)

// Avatar is a connected player's body. The pose and flags other than
// operator and chatHidden belong to the hub goroutine.
type Avatar struct {
	*physics.Body

	flying bool
	boat   *Boat

	operator   atomic.Bool
	chatHidden atomic.Bool
}

func newAvatar(pos physics.Vec3, operator bool) *Avatar {
	a := &Avatar{Body: physics.NewPlayerBody(pos)}
	a.Ground = true
	a.operator.Store(operator)
	return a
}

func (a *Avatar) Conditions() movement.Conditions {
	return movement.Conditions{
		MayFly:    a.flying,
		Passenger: a.boat != nil,
	}
}

func (a *Avatar) ControlledVehicle() session.Vehicle {
	if a.boat == nil {
		return nil
	}
	return a.boat
}

func (a *Avatar) Operator() bool          { return a.operator.Load() }
func (a *Avatar) SingleplayerOwner() bool { return false }
func (a *Avatar) ChatHidden() bool        { return a.chatHidden.Load() }

// Boat is the vehicle an avatar can summon and drive.
type Boat struct {
	*physics.Body
	id string
}

func newBoat(pos physics.Vec3) *Boat {
	return &Boat{
		Body: &physics.Body{Pos: pos, Width: boatWidth, Height: boatHeight, Grav: boatGravity},
		id:   "boat-" + uuid.NewString()[:8],
	}
}

func (b *Boat) ID() string                      { return b.id }
func (b *Boat) Conditions() movement.Conditions { return movement.Conditions{} }
