package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Axis names one of the three coordinate axes of a frame.
type Axis int

const (
	AxisX Axis = 1
	AxisY Axis = 2
	AxisZ Axis = 3
)

// DefaultOrder applies roll, then pitch, then yaw.
var DefaultOrder = [3]Axis{AxisX, AxisY, AxisZ}

// Attitude is a roll/pitch/yaw triple about the X, Y and Z axes, applied in
// Order. The first axis in Order is rotated about first. A zero Order means
// DefaultOrder.
type Attitude struct {
	Roll  float64
	Pitch float64
	Yaw   float64
	Order [3]Axis
}

// NewAttitude returns an attitude applying the angles in the given order.
func NewAttitude(roll, pitch, yaw float64, order [3]Axis) Attitude {
	return Attitude{Roll: roll, Pitch: pitch, Yaw: yaw, Order: order}
}

func (a Attitude) order() [3]Axis {
	if a.Order == ([3]Axis{}) {
		return DefaultOrder
	}
	return a.Order
}

func (a Attitude) angle(axis Axis) float64 {
	switch axis {
	case AxisX:
		return a.Roll
	case AxisY:
		return a.Pitch
	case AxisZ:
		return a.Yaw
	}
	return 0
}

// Rotation is a single elementary frame rotation.
type Rotation struct {
	Axis  Axis
	Angle float64
}

// Matrix returns the passive rotation matrix for r, mapping vector
// components from the unrotated frame into the rotated one.
func (r Rotation) Matrix() *mat.Dense {
	s, c := math.Sincos(r.Angle)
	switch r.Axis {
	case AxisX:
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
	case AxisY:
		return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
	case AxisZ:
		return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
	}
	return identity3()
}

// FrameTransform maps vectors between two reference frames: an orthonormal
// rotation plus an origin offset expressed in the source frame. The zero
// value is the identity.
type FrameTransform struct {
	rot    *mat.Dense
	origin Vec3
}

// IdentityFrame returns the identity transform.
func IdentityFrame() FrameTransform {
	return FrameTransform{rot: identity3()}
}

// NewFrameFromAxes builds the transform into a frame whose unit axes x, y, z
// and origin are expressed in the source frame. The axes must be
// orthonormal.
func NewFrameFromAxes(x, y, z, origin Vec3) FrameTransform {
	return FrameTransform{
		rot: mat.NewDense(3, 3, []float64{
			x.X, x.Y, x.Z,
			y.X, y.Y, y.Z,
			z.X, z.Y, z.Z,
		}),
		origin: origin,
	}
}

// NewFrameFromRotations builds the transform into a frame reached by
// applying rots in sequence, after translating to origin.
func NewFrameFromRotations(origin Vec3, rots ...Rotation) FrameTransform {
	r := identity3()
	for _, rot := range rots {
		var next mat.Dense
		next.Mul(rot.Matrix(), r)
		r = &next
	}
	return FrameTransform{rot: r, origin: origin}
}

// NewFrameFromAttitude builds the transform into the frame obtained by
// rotating through att.
func NewFrameFromAttitude(att Attitude, origin Vec3) FrameTransform {
	order := att.order()
	rots := make([]Rotation, 0, len(order))
	for _, axis := range order {
		rots = append(rots, Rotation{Axis: axis, Angle: att.angle(axis)})
	}
	return NewFrameFromRotations(origin, rots...)
}

// Origin returns the origin offset in source-frame coordinates.
func (f FrameTransform) Origin() Vec3 {
	return f.origin
}

// Matrix returns a copy of the rotation part.
func (f FrameTransform) Matrix() *mat.Dense {
	return mat.DenseCopyOf(f.rotation())
}

// Forward maps a position from the source frame to the target frame.
func (f FrameTransform) Forward(v Vec3) Vec3 {
	return mulVec(f.rotation(), v.Sub(f.origin))
}

// Backward maps a position from the target frame to the source frame.
func (f FrameTransform) Backward(v Vec3) Vec3 {
	return mulVec(f.rotation().T(), v).Add(f.origin)
}

// ForwardDirection rotates a free vector from the source frame to the
// target frame, ignoring the origin.
func (f FrameTransform) ForwardDirection(v Vec3) Vec3 {
	return mulVec(f.rotation(), v)
}

// BackwardDirection rotates a free vector from the target frame to the
// source frame, ignoring the origin.
func (f FrameTransform) BackwardDirection(v Vec3) Vec3 {
	return mulVec(f.rotation().T(), v)
}

// Compose returns the transform equal to applying f and then next.
func (f FrameTransform) Compose(next FrameTransform) FrameTransform {
	var r mat.Dense
	r.Mul(next.rotation(), f.rotation())
	return FrameTransform{
		rot:    &r,
		origin: f.origin.Add(f.BackwardDirection(next.origin)),
	}
}

// Invert returns the transform from the target frame back to the source.
func (f FrameTransform) Invert() FrameTransform {
	return FrameTransform{
		rot:    mat.DenseCopyOf(f.rotation().T()),
		origin: f.ForwardDirection(f.origin).Neg(),
	}
}

func (f FrameTransform) rotation() *mat.Dense {
	if f.rot == nil {
		return identity3()
	}
	return f.rot
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func mulVec(m mat.Matrix, v Vec3) Vec3 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return Vec3{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
