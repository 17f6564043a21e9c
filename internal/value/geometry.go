package value

import "math"

// slerpLinearThreshold is the cosine above which Slerp falls back to a
// normalized linear blend (angles too small for a stable sin division).
const slerpLinearThreshold = 0.9995

// rotatorSingularity is the gimbal-lock threshold used by Quat.Rotator.
const rotatorSingularity = 0.4999995

// IdentityQuat is the no-rotation quaternion.
var IdentityQuat = Quat{W: 1}

// IdentityTransform returns a transform at the origin, unrotated, unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: IdentityQuat,
		Scale:    Vector3{X: 1, Y: 1, Z: 1},
	}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Lerp blends from v toward o by t (t=0 → v, t=1 → o).
func (v Vector3) Lerp(o Vector3, t float64) Vector3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Manhattan returns the L1 distance between v and o.
func (v Vector3) Manhattan(o Vector3) float64 {
	return math.Abs(v.X-o.X) + math.Abs(v.Y-o.Y) + math.Abs(v.Z-o.Z)
}

// Components returns the axes in X, Y, Z order.
func (v Vector3) Components() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Dot returns the 4D dot product.
func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Normalize returns q scaled to unit length. A zero quaternion yields identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.Dot(q))
	if n == 0 {
		return IdentityQuat
	}
	return Quat{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

func (q Quat) neg() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
}

// Slerp spherically interpolates from q toward o by t along the shortest arc.
func (q Quat) Slerp(o Quat, t float64) Quat {
	a := q.Normalize()
	b := o.Normalize()

	cos := a.Dot(b)
	if cos < 0 {
		b = b.neg()
		cos = -cos
	}

	if cos > slerpLinearThreshold {
		return Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}.Normalize()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Quat{
		X: a.X*wa + b.X*wb,
		Y: a.Y*wa + b.Y*wb,
		Z: a.Z*wa + b.Z*wb,
		W: a.W*wa + b.W*wb,
	}
}

// AngularDistance returns the rotation angle between q and o in degrees,
// in [0, 180].
func (q Quat) AngularDistance(o Quat) float64 {
	d := math.Abs(q.Normalize().Dot(o.Normalize()))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d) * 180 / math.Pi
}

// Quat converts a pitch/yaw/roll rotator (degrees) to a quaternion.
func (r Rotator) Quat() Quat {
	const halfRad = math.Pi / 180 / 2
	sp, cp := math.Sincos(r.Pitch * halfRad)
	sy, cy := math.Sincos(r.Yaw * halfRad)
	sr, cr := math.Sincos(r.Roll * halfRad)

	return Quat{
		X: cr*sp*sy - sr*cp*cy,
		Y: -cr*sp*cy - sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// Rotator converts q to pitch/yaw/roll degrees.
func (q Quat) Rotator() Rotator {
	const toDeg = 180 / math.Pi

	singularity := q.Z*q.X - q.W*q.Y
	yawY := 2 * (q.W*q.Z + q.X*q.Y)
	yawX := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw := math.Atan2(yawY, yawX) * toDeg

	switch {
	case singularity < -rotatorSingularity:
		return Rotator{Pitch: -90, Yaw: yaw, Roll: normalizeAxis(-yaw - 2*math.Atan2(q.X, q.W)*toDeg)}
	case singularity > rotatorSingularity:
		return Rotator{Pitch: 90, Yaw: yaw, Roll: normalizeAxis(yaw - 2*math.Atan2(q.X, q.W)*toDeg)}
	default:
		return Rotator{
			Pitch: math.Asin(2*singularity) * toDeg,
			Yaw:   yaw,
			Roll:  math.Atan2(-2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y)) * toDeg,
		}
	}
}

// normalizeAxis wraps an angle into (-180, 180].
func normalizeAxis(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg > 180 {
		deg -= 360
	}
	return deg
}
