package physics

import "math"

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

func (v Vec3) LengthSqr() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

func (v Vec3) DistanceSqr(o Vec3) float64 { return v.Sub(o).LengthSqr() }

func (v Vec3) IsFinite() bool { return finite(v.X) && finite(v.Y) && finite(v.Z) }

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Clamp bounds the horizontal components to ±h and the vertical one to ±vert.
func (v Vec3) Clamp(h, vert float64) Vec3 {
	return Vec3{clamp(v.X, -h, h), clamp(v.Y, -vert, vert), clamp(v.Z, -h, h)}
}

type Rotation struct {
	Yaw   float64
	Pitch float64
}

func (r Rotation) IsFinite() bool { return finite(r.Yaw) && finite(r.Pitch) }

// Wrapped returns the rotation with both angles wrapped into [-180, 180).
func (r Rotation) Wrapped() Rotation {
	return Rotation{Yaw: WrapDegrees(r.Yaw), Pitch: WrapDegrees(r.Pitch)}
}

func WrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d >= 180 {
		d -= 360
	}
	if d < -180 {
		d += 360
	}
	return d
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// ChunkOf returns the 16x16 column containing pos.
func ChunkOf(pos Vec3) (cx, cz int) {
	return FloorDiv(int(math.Floor(pos.X)), 16), FloorDiv(int(math.Floor(pos.Z)), 16)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
