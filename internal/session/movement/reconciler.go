package movement

import (
	"math"

	"go.uber.org/zap"

	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
)

type Outcome int

const (
	Accepted Outcome = iota
	// SnappedBack: the move was discarded and the client must be reset to
	// Result.SnapTo.
	SnappedBack
	// Ignored: nothing changed and nothing needs to be sent.
	Ignored
	// Rejected: the packet is malformed; the connection must be closed.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case SnappedBack:
		return "snapped_back"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

const (
	ViolationSpeed     = "speed"
	ViolationWrongMove = "wrong_move"
	ViolationInvalid   = "invalid"
)

type Request struct {
	Pos      physics.Vec3
	Rot      physics.Rotation
	OnGround bool
}

type Result struct {
	Outcome   Outcome
	Violation string
	SnapTo    physics.Vec3
	SnapRot   physics.Rotation
	// Moved is the distance squared from the tick anchor the client asked for.
	Moved float64
}

// Reconciler validates client-reported movement against the Oracle.
type Reconciler struct {
	Oracle physics.Oracle
	Cfg    tuning.Movement
	Log    *zap.Logger
}

func NewReconciler(o physics.Oracle, cfg tuning.Movement, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{Oracle: o, Cfg: cfg, Log: log}
}

// Sanitize rejects non-finite values and clamps the coordinates into the
// playable range. Angles are wrapped to [-180, 180).
func (r *Reconciler) Sanitize(req Request) (Request, bool) {
	if !req.Pos.IsFinite() || !req.Rot.IsFinite() {
		return req, false
	}
	req.Pos = req.Pos.Clamp(r.Cfg.HorizontalClamp, r.Cfg.VerticalClamp)
	req.Rot = req.Rot.Wrapped()
	return req, true
}

// Apply reconciles one movement packet for m. tr is advanced only when the
// move is accepted. The caller handles outstanding teleports before this.
func (r *Reconciler) Apply(tr *Track, m Mover, req Request, cond Conditions, pol Policy) Result {
	req, ok := r.Sanitize(req)
	if !ok {
		return Result{Outcome: Rejected, Violation: ViolationInvalid}
	}
	log := r.Log.With(zap.String("mover", string(pol.Kind)))
	cur := m.Position()

	// A passenger only turns; its position follows the vehicle.
	if pol.Exemptions && cond.Passenger {
		m.SetPose(cur, req.Rot)
		return Result{Outcome: Accepted}
	}

	moved := req.Pos.DistanceSqr(tr.FirstGood)
	speedSq := m.Velocity().LengthSqr()

	if pol.Exemptions && cond.Sleeping {
		if moved > r.Cfg.SleepingMoveToleranceSq {
			return Result{Outcome: SnappedBack, SnapTo: cur, SnapRot: req.Rot, Moved: moved}
		}
		return Result{Outcome: Ignored, Moved: moved}
	}

	packets := 1
	if pol.BurstAllowance {
		tr.Received++
		packets = tr.Received - tr.Known
		if packets > r.Cfg.MaxMovePacketsPerTick {
			log.Debug("move packets too frequent", zap.Int("packets", packets))
			packets = 1
		}
	}

	if !r.speedExempt(cond, pol) {
		budget := r.Cfg.MoveBudget
		if pol.GlideBudget && cond.Gliding {
			budget = r.Cfg.GlideMoveBudget
		}
		if moved-speedSq > budget*float64(packets) {
			log.Warn("moved too quickly",
				zap.Float64("dx", req.Pos.X-tr.FirstGood.X),
				zap.Float64("dy", req.Pos.Y-tr.FirstGood.Y),
				zap.Float64("dz", req.Pos.Z-tr.FirstGood.Z))
			return Result{Outcome: SnappedBack, Violation: ViolationSpeed, SnapTo: cur, SnapRot: m.Rotation(), Moved: moved}
		}
	}

	before := m.BoundingBox()
	preClear := !r.Oracle.HasCollisionAt(before.Deflate(pol.CollisionDeflate))
	delta := req.Pos.Sub(tr.LastGood)

	if pol.Jumps && m.OnGround() && !req.OnGround && delta.Y > 0 {
		if j, ok := m.(Jumper); ok {
			j.Jump()
		}
	}

	grounded := r.Oracle.GroundedBelow(m)
	applied := r.Oracle.Move(m, delta)
	result := cur.Add(applied)

	div := req.Pos.Sub(result)
	if div.Y > -0.5 && div.Y < 0.5 {
		div.Y = 0
	}
	wrong := false
	if div.LengthSqr() > r.Cfg.WrongMoveThreshold && !r.wrongMoveExempt(cond, pol) {
		wrong = true
		log.Warn("moved wrongly", zap.Float64("divergence_sq", div.LengthSqr()))
	}

	requested := before.Offset(req.Pos.Sub(cur)).Deflate(pol.CollisionDeflate)
	collides := r.Oracle.HasCollisionAt(requested)

	free := pol.Exemptions && (cond.NoPhysics || cond.Sleeping)
	if !free && preClear && (wrong || collides) {
		m.SetPose(cur, req.Rot)
		return Result{Outcome: SnappedBack, Violation: ViolationWrongMove, SnapTo: cur, SnapRot: req.Rot, Moved: moved}
	}

	m.SetPose(req.Pos, req.Rot)
	if gs, ok := m.(GroundSetter); ok && pol.Kind == KindPlayer {
		gs.SetOnGround(req.OnGround)
	}
	tr.Floating = r.floating(m, delta.Y, grounded, cond)
	tr.Commit(req.Pos)
	return Result{Outcome: Accepted, Moved: moved}
}

func (r *Reconciler) speedExempt(cond Conditions, pol Policy) bool {
	if cond.SingleplayerOwner {
		return true
	}
	return pol.Exemptions && cond.ChangingDimension
}

func (r *Reconciler) wrongMoveExempt(cond Conditions, pol Policy) bool {
	if !pol.Exemptions {
		return false
	}
	return cond.ChangingDimension || cond.Sleeping || cond.Creative || cond.Spectator
}

// floating reports whether an accepted move left m unsupported in the air
// without any flight exemption.
func (r *Reconciler) floating(m Mover, dy float64, groundedBefore bool, cond Conditions) bool {
	if dy < r.Cfg.FloatingThresholdDY || groundedBefore {
		return false
	}
	if cond.Spectator || cond.FlightAllowed || cond.MayFly || cond.Levitating ||
		cond.Gliding || cond.AutoSpin || cond.NoGravity {
		return false
	}
	probe := m.BoundingBox().Inflate(0.0625).ExpandTowards(physics.Vec3{Y: -0.55})
	return !r.Oracle.HasCollisionAt(probe)
}

// TickFloating advances the floating counter once per tick and reports
// whether the mover has been floating for longer than allowed.
func (r *Reconciler) TickFloating(tr *Track, m physics.Entity, cond Conditions) bool {
	if tr.Floating && !cond.Sleeping && !cond.Passenger && !cond.Dead {
		tr.FloatingTicks++
		return tr.FloatingTicks > MaxFloatingTicks(m.Gravity(), r.Cfg.FloatingBaseTicks)
	}
	tr.Floating = false
	tr.FloatingTicks = 0
	return false
}

// MaxFloatingTicks scales the allowance inversely with gravity: weaker
// gravity means longer legitimate airtime. Near-zero gravity never expires.
func MaxFloatingTicks(gravity, base float64) int {
	if gravity < 1e-5 {
		return math.MaxInt
	}
	return int(math.Ceil(base * math.Max(0.08/gravity, 1)))
}
