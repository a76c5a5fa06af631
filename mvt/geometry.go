package mvt

import "math"

// MVT geometry commands.
const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

func commandInteger(id, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

func zigzag(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

// geomWriter builds a command stream, tracking the cursor so every
// parameter pair is a delta from the previous position.
type geomWriter struct {
	cmds []uint32
	x, y int32
}

func (w *geomWriter) param(px, py int32) error {
	dx := int64(px) - int64(w.x)
	dy := int64(py) - int64(w.y)
	if dx < math.MinInt32 || dx > math.MaxInt32 || dy < math.MinInt32 || dy > math.MaxInt32 {
		return encodeErrorf(CoordinateOverflow, "delta (%d,%d) exceeds int32", dx, dy)
	}
	w.cmds = append(w.cmds, zigzag(int32(dx)), zigzag(int32(dy)))
	w.x, w.y = px, py
	return nil
}

func (w *geomWriter) moveTo(px, py int32) error {
	w.cmds = append(w.cmds, commandInteger(cmdMoveTo, 1))
	return w.param(px, py)
}

func (w *geomWriter) lineTo(pts []point) error {
	if len(pts) == 0 {
		return nil
	}
	w.cmds = append(w.cmds, commandInteger(cmdLineTo, uint32(len(pts))))
	for _, p := range pts {
		if err := w.param(p.x, p.y); err != nil {
			return err
		}
	}
	return nil
}

func (w *geomWriter) closePath() {
	w.cmds = append(w.cmds, commandInteger(cmdClosePath, 1))
}

type point struct {
	x, y int32
}

// dedup removes consecutive duplicate points in place.
func dedup(pts []point) []point {
	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

// signedArea2 is twice the shoelace area of a ring given without a closing
// vertex.
func signedArea2(ring []point) int64 {
	var sum int64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += int64(ring[i].x)*int64(ring[j].y) - int64(ring[j].x)*int64(ring[i].y)
	}
	return sum
}
