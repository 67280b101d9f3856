// 指示: miu200521358
package mmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quaternion は回転を表す。
type Quaternion struct {
	q mgl64.Quat
}

// IdentityQuaternion は無回転を返す。
func IdentityQuaternion() Quaternion {
	return Quaternion{q: mgl64.QuatIdent()}
}

// NewQuaternion は成分から回転を生成する。
func NewQuaternion(x, y, z, w float64) Quaternion {
	return Quaternion{q: mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}.Normalize()}
}

// NewQuaternionFromAxisAngle は軸と角度(ラジアン)から回転を生成する。
func NewQuaternionFromAxisAngle(axis Vec3, rad float64) Quaternion {
	unit := axis.Normalized()
	if unit.IsZero() {
		return IdentityQuaternion()
	}
	return Quaternion{q: mgl64.QuatRotate(rad, unit.Gl())}
}

// NewQuaternionFromBasis は正規直交基底(列ベクトル)から回転を生成する。
func NewQuaternionFromBasis(axisX, axisY, axisZ Vec3) Quaternion {
	m := mgl64.Mat3FromCols(axisX.Gl(), axisY.Gl(), axisZ.Gl()).Mat4()
	return Quaternion{q: mgl64.Mat4ToQuat(m).Normalize()}
}

// NewQuaternionFromDirection は X軸を direction、Z軸を normal 側に向けた回転を生成する。
// normal は direction に対して直交化される。
func NewQuaternionFromDirection(direction Vec3, normal Vec3) Quaternion {
	axisX := direction.Normalized()
	if axisX.IsZero() {
		return IdentityQuaternion()
	}
	axisZ := normal.Rejected(axisX).Normalized()
	if axisZ.IsZero() {
		axisZ = axisX.AnyPerpendicular()
	}
	axisY := axisZ.Cross(axisX).Normalized()
	return NewQuaternionFromBasis(axisX, axisY, axisZ)
}

// NewQuaternionBetween は from を to へ向ける最短回転を返す。
func NewQuaternionBetween(from Vec3, to Vec3) Quaternion {
	a := from.Normalized()
	b := to.Normalized()
	if a.IsZero() || b.IsZero() {
		return IdentityQuaternion()
	}
	return Quaternion{q: mgl64.QuatBetweenVectors(a.Gl(), b.Gl()).Normalize()}
}

// X はx成分を返す。
func (q Quaternion) X() float64 { return q.q.V[0] }

// Y はy成分を返す。
func (q Quaternion) Y() float64 { return q.q.V[1] }

// Z はz成分を返す。
func (q Quaternion) Z() float64 { return q.q.V[2] }

// W はw成分を返す。
func (q Quaternion) W() float64 { return q.q.W }

// IsZero は未初期化値か判定する。
func (q Quaternion) IsZero() bool {
	return q.q.W == 0 && q.q.V[0] == 0 && q.q.V[1] == 0 && q.q.V[2] == 0
}

// Normalized は正規化した回転を返す。未初期化値は無回転とする。
func (q Quaternion) Normalized() Quaternion {
	if q.IsZero() {
		return IdentityQuaternion()
	}
	return Quaternion{q: q.q.Normalize()}
}

// Muled は q * other (other を先に適用) を返す。
func (q Quaternion) Muled(other Quaternion) Quaternion {
	return Quaternion{q: q.Normalized().q.Mul(other.Normalized().q).Normalize()}
}

// Inverted は逆回転を返す。
func (q Quaternion) Inverted() Quaternion {
	return Quaternion{q: q.Normalized().q.Conjugate()}
}

// Rotated はベクトルを回転した結果を返す。
func (q Quaternion) Rotated(v Vec3) Vec3 {
	return NewVec3FromGl(q.Normalized().q.Rotate(v.Gl()))
}

// Dot は内積を返す。
func (q Quaternion) Dot(other Quaternion) float64 {
	return q.Normalized().q.Dot(other.Normalized().q)
}

// Slerp は t で球面線形補間した回転を返す。常に最短経路側を通る。
func (q Quaternion) Slerp(other Quaternion, t float64) Quaternion {
	from := q.Normalized().q
	to := other.Normalized().q
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	if t <= 0 {
		return Quaternion{q: from}
	}
	if t >= 1 {
		return Quaternion{q: to}
	}
	return Quaternion{q: mgl64.QuatSlerp(from, to, t).Normalize()}
}

// AxisX はローカルX軸のワールド方向を返す。
func (q Quaternion) AxisX() Vec3 { return q.Rotated(UNIT_X_VEC3) }

// AxisY はローカルY軸のワールド方向を返す。
func (q Quaternion) AxisY() Vec3 { return q.Rotated(UNIT_Y_VEC3) }

// AxisZ はローカルZ軸のワールド方向を返す。
func (q Quaternion) AxisZ() Vec3 { return q.Rotated(UNIT_Z_VEC3) }

// TwistAngle は axis 周りの捩り成分の角度(ラジアン、-π..π)を返す。
func (q Quaternion) TwistAngle(axis Vec3) float64 {
	n := q.Normalized().q
	unit := axis.Normalized()
	if unit.IsZero() {
		return 0
	}
	projection := n.V[0]*unit.X + n.V[1]*unit.Y + n.V[2]*unit.Z
	return WrapAngle(2 * math.Atan2(projection, n.W))
}

// AngleTo は other との回転差の角度(ラジアン、0..π)を返す。
func (q Quaternion) AngleTo(other Quaternion) float64 {
	relative := q.Inverted().Muled(other).q
	return 2 * math.Atan2(relative.V.Len(), math.Abs(relative.W))
}

// NearEquals は回転差が許容角(ラジアン)以内か判定する。q と -q は同一視する。
func (q Quaternion) NearEquals(other Quaternion, epsilon float64) bool {
	return q.AngleTo(other) <= epsilon
}

// Gl はmgl64形式を返す。
func (q Quaternion) Gl() mgl64.Quat {
	return q.Normalized().q
}

// String は表示用文字列を返す。
func (q Quaternion) String() string {
	n := q.Normalized().q
	return fmt.Sprintf("[x=%.5f, y=%.5f, z=%.5f, w=%.5f]", n.V[0], n.V[1], n.V[2], n.W)
}

// WrapAngle は角度を -π..π に正規化する。
func WrapAngle(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}

// UnwrapAngle は前回値に最も近くなるよう 2π 単位で角度を補正する。
func UnwrapAngle(rad float64, previous float64) float64 {
	for rad-previous > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad-previous < -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}
