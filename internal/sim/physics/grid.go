package physics

import (
	"math"
	"sync"
)

const groundProbe = 1e-3

type BlockPos [3]int

// Grid is a voxel world of solid unit cubes. It is the reference Oracle.
type Grid struct {
	mu    sync.RWMutex
	solid map[BlockPos]struct{}
}

func NewGrid() *Grid {
	return &Grid{solid: map[BlockPos]struct{}{}}
}

// Floor fills a (2r+1)x(2r+1) layer of solid blocks at height y around the origin.
func (g *Grid) Floor(y, r int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for x := -r; x <= r; x++ {
		for z := -r; z <= r; z++ {
			g.solid[BlockPos{x, y, z}] = struct{}{}
		}
	}
}

func (g *Grid) Set(p BlockPos, solid bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if solid {
		g.solid[p] = struct{}{}
	} else {
		delete(g.solid, p)
	}
}

func (g *Grid) Solid(p BlockPos) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.solid[p]
	return ok
}

func (g *Grid) Move(e Entity, delta Vec3) Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	box := e.BoundingBox()
	blocks := g.boxesIn(box.ExpandTowards(delta))

	dy := delta.Y
	for _, b := range blocks {
		dy = clipY(b, box, dy)
	}
	box = box.Offset(Vec3{Y: dy})
	dx := delta.X
	for _, b := range blocks {
		dx = clipX(b, box, dx)
	}
	box = box.Offset(Vec3{X: dx})
	dz := delta.Z
	for _, b := range blocks {
		dz = clipZ(b, box, dz)
	}
	return Vec3{dx, dy, dz}
}

func (g *Grid) HasCollisionAt(box AABB) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, b := range g.boxesIn(box) {
		if b.Intersects(box) {
			return true
		}
	}
	return false
}

func (g *Grid) GroundedBelow(e Entity) bool {
	box := e.BoundingBox()
	probe := AABB{
		Min: Vec3{box.Min.X, box.Min.Y - groundProbe, box.Min.Z},
		Max: Vec3{box.Max.X, box.Min.Y, box.Max.Z},
	}
	return g.HasCollisionAt(probe)
}

// boxesIn returns the unit boxes of solid blocks touching region. Small
// regions are scanned cell by cell, large ones by walking the block set.
func (g *Grid) boxesIn(region AABB) []AABB {
	x0, y0, z0 := floor(region.Min.X), floor(region.Min.Y), floor(region.Min.Z)
	x1, y1, z1 := floor(region.Max.X), floor(region.Max.Y), floor(region.Max.Z)

	var out []AABB
	volume := float64(x1-x0+1) * float64(y1-y0+1) * float64(z1-z0+1)
	if volume > float64(len(g.solid)) {
		for p := range g.solid {
			if p[0] >= x0 && p[0] <= x1 && p[1] >= y0 && p[1] <= y1 && p[2] >= z0 && p[2] <= z1 {
				out = append(out, unitBox(p))
			}
		}
		return out
	}
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				p := BlockPos{x, y, z}
				if _, ok := g.solid[p]; ok {
					out = append(out, unitBox(p))
				}
			}
		}
	}
	return out
}

func unitBox(p BlockPos) AABB {
	lo := Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
	return AABB{Min: lo, Max: lo.Add(Vec3{1, 1, 1})}
}

func floor(f float64) int { return int(math.Floor(f)) }

func clipY(b, box AABB, dy float64) float64 {
	if b.Max.X <= box.Min.X || b.Min.X >= box.Max.X || b.Max.Z <= box.Min.Z || b.Min.Z >= box.Max.Z {
		return dy
	}
	if dy > 0 && box.Max.Y <= b.Min.Y {
		if d := b.Min.Y - box.Max.Y; d < dy {
			return d
		}
	} else if dy < 0 && box.Min.Y >= b.Max.Y {
		if d := b.Max.Y - box.Min.Y; d > dy {
			return d
		}
	}
	return dy
}

func clipX(b, box AABB, dx float64) float64 {
	if b.Max.Y <= box.Min.Y || b.Min.Y >= box.Max.Y || b.Max.Z <= box.Min.Z || b.Min.Z >= box.Max.Z {
		return dx
	}
	if dx > 0 && box.Max.X <= b.Min.X {
		if d := b.Min.X - box.Max.X; d < dx {
			return d
		}
	} else if dx < 0 && box.Min.X >= b.Max.X {
		if d := b.Max.X - box.Min.X; d > dx {
			return d
		}
	}
	return dx
}

func clipZ(b, box AABB, dz float64) float64 {
	if b.Max.X <= box.Min.X || b.Min.X >= box.Max.X || b.Max.Y <= box.Min.Y || b.Min.Y >= box.Max.Y {
		return dz
	}
	if dz > 0 && box.Max.Z <= b.Min.Z {
		if d := b.Min.Z - box.Max.Z; d < dz {
			return d
		}
	} else if dz < 0 && box.Min.Z >= b.Max.Z {
		if d := b.Max.Z - box.Min.Z; d > dz {
			return d
		}
	}
	return dz
}
