package physics

const (
	PlayerWidth  = 0.6
	PlayerHeight = 1.8
	// DefaultGravity is the per-tick downward acceleration of a player.
	DefaultGravity = 0.08
	jumpVelocity   = 0.42
)

// Body is a plain Entity: a box with a pose and velocity.
type Body struct {
	Pos    Vec3
	Rot    Rotation
	Vel    Vec3
	Width  float64
	Height float64
	Grav   float64
	Ground bool
}

func NewPlayerBody(pos Vec3) *Body {
	return &Body{Pos: pos, Width: PlayerWidth, Height: PlayerHeight, Grav: DefaultGravity}
}

func (b *Body) Position() Vec3     { return b.Pos }
func (b *Body) Rotation() Rotation { return b.Rot }
func (b *Body) Velocity() Vec3     { return b.Vel }
func (b *Body) OnGround() bool     { return b.Ground }
func (b *Body) Gravity() float64   { return b.Grav }

func (b *Body) BoundingBox() AABB { return BoxAt(b.Pos, b.Width, b.Height) }

func (b *Body) SetPose(pos Vec3, rot Rotation) {
	b.Pos = pos
	b.Rot = rot
}

func (b *Body) SetOnGround(v bool) { b.Ground = v }

func (b *Body) Jump() { b.Vel.Y = jumpVelocity }
