package physics

type AABB struct {
	Min Vec3
	Max Vec3
}

// BoxAt is the bounding box of an entity standing at pos (feet center).
func BoxAt(pos Vec3, width, height float64) AABB {
	h := width / 2
	return AABB{
		Min: Vec3{pos.X - h, pos.Y, pos.Z - h},
		Max: Vec3{pos.X + h, pos.Y + height, pos.Z + h},
	}
}

func (b AABB) Offset(d Vec3) AABB { return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)} }

func (b AABB) Inflate(f float64) AABB {
	return AABB{
		Min: Vec3{b.Min.X - f, b.Min.Y - f, b.Min.Z - f},
		Max: Vec3{b.Max.X + f, b.Max.Y + f, b.Max.Z + f},
	}
}

func (b AABB) Deflate(f float64) AABB { return b.Inflate(-f) }

// ExpandTowards stretches the box along d without moving the opposite faces.
func (b AABB) ExpandTowards(d Vec3) AABB {
	out := b
	if d.X < 0 {
		out.Min.X += d.X
	} else {
		out.Max.X += d.X
	}
	if d.Y < 0 {
		out.Min.Y += d.Y
	} else {
		out.Max.Y += d.Y
	}
	if d.Z < 0 {
		out.Min.Z += d.Z
	} else {
		out.Max.Z += d.Z
	}
	return out
}

// Intersects reports a strictly positive overlap; touching faces do not count.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X < o.Max.X && b.Max.X > o.Min.X &&
		b.Min.Y < o.Max.Y && b.Max.Y > o.Min.Y &&
		b.Min.Z < o.Max.Z && b.Max.Z > o.Min.Z
}
