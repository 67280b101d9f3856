// 指示: miu200521358
// Package mmath はリグ構築で使う3次元ベクトル・回転の演算を提供する。
package mmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// EPSILON は長さ・角度判定の既定許容値。
	EPSILON = 1e-8
)

// Vec3 は3次元ベクトルを表す。
type Vec3 struct {
	r3.Vec
}

var (
	ZERO_VEC3       = Vec3{}
	ONE_VEC3        = Vec3{Vec: r3.Vec{X: 1, Y: 1, Z: 1}}
	UNIT_X_VEC3     = Vec3{Vec: r3.Vec{X: 1}}
	UNIT_Y_VEC3     = Vec3{Vec: r3.Vec{Y: 1}}
	UNIT_Z_VEC3     = Vec3{Vec: r3.Vec{Z: 1}}
	UNIT_X_NEG_VEC3 = Vec3{Vec: r3.Vec{X: -1}}
	UNIT_Y_NEG_VEC3 = Vec3{Vec: r3.Vec{Y: -1}}
	UNIT_Z_NEG_VEC3 = Vec3{Vec: r3.Vec{Z: -1}}
)

// NewVec3 は成分からベクトルを生成する。
func NewVec3(x, y, z float64) Vec3 {
	return Vec3{Vec: r3.Vec{X: x, Y: y, Z: z}}
}

// NewVec3FromSlice は3要素スライスからベクトルを生成する。
func NewVec3FromSlice(values []float64) (Vec3, error) {
	if len(values) != 3 {
		return Vec3{}, fmt.Errorf("ベクトル要素数が不正です: %d", len(values))
	}
	return NewVec3(values[0], values[1], values[2]), nil
}

// Added は加算結果を返す。
func (v Vec3) Added(other Vec3) Vec3 {
	return Vec3{Vec: r3.Add(v.Vec, other.Vec)}
}

// Subed は減算結果を返す。
func (v Vec3) Subed(other Vec3) Vec3 {
	return Vec3{Vec: r3.Sub(v.Vec, other.Vec)}
}

// MuledScalar はスカラー倍を返す。
func (v Vec3) MuledScalar(s float64) Vec3 {
	return Vec3{Vec: r3.Scale(s, v.Vec)}
}

// Muled は成分ごとの積を返す。
func (v Vec3) Muled(other Vec3) Vec3 {
	return NewVec3(v.X*other.X, v.Y*other.Y, v.Z*other.Z)
}

// Dived は成分ごとの商を返す。0除算成分は0とする。
func (v Vec3) Dived(other Vec3) Vec3 {
	return NewVec3(safeDiv(v.X, other.X), safeDiv(v.Y, other.Y), safeDiv(v.Z, other.Z))
}

// Dot は内積を返す。
func (v Vec3) Dot(other Vec3) float64 {
	return r3.Dot(v.Vec, other.Vec)
}

// Cross は外積を返す。
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{Vec: r3.Cross(v.Vec, other.Vec)}
}

// Length は長さを返す。
func (v Vec3) Length() float64 {
	return r3.Norm(v.Vec)
}

// Distance は2点間距離を返す。
func (v Vec3) Distance(other Vec3) float64 {
	return r3.Norm(r3.Sub(v.Vec, other.Vec))
}

// Normalized は単位ベクトルを返す。長さ0の場合はゼロベクトルを返す。
func (v Vec3) Normalized() Vec3 {
	if v.Length() <= EPSILON {
		return ZERO_VEC3
	}
	return Vec3{Vec: r3.Unit(v.Vec)}
}

// Negated は符号反転を返す。
func (v Vec3) Negated() Vec3 {
	return v.MuledScalar(-1)
}

// Lerp は t で線形補間した値を返す。
func (v Vec3) Lerp(other Vec3, t float64) Vec3 {
	return v.MuledScalar(1 - t).Added(other.MuledScalar(t))
}

// IsZero は長さが許容値以下か判定する。
func (v Vec3) IsZero() bool {
	return v.Length() <= EPSILON
}

// NearEquals は成分差が許容値以内か判定する。
func (v Vec3) NearEquals(other Vec3, epsilon float64) bool {
	return math.Abs(v.X-other.X) <= epsilon &&
		math.Abs(v.Y-other.Y) <= epsilon &&
		math.Abs(v.Z-other.Z) <= epsilon
}

// ProjectedOnto は軸方向成分を返す。
func (v Vec3) ProjectedOnto(axis Vec3) Vec3 {
	unit := axis.Normalized()
	return unit.MuledScalar(v.Dot(unit))
}

// Rejected は軸に垂直な成分を返す。
func (v Vec3) Rejected(axis Vec3) Vec3 {
	return v.Subed(v.ProjectedOnto(axis))
}

// Vector は [x, y, z] のスライスを返す。
func (v Vec3) Vector() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// Gl はmgl64形式へ変換する。
func (v Vec3) Gl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// NewVec3FromGl はmgl64形式から変換する。
func NewVec3FromGl(v mgl64.Vec3) Vec3 {
	return NewVec3(v[0], v[1], v[2])
}

// String は表示用文字列を返す。
func (v Vec3) String() string {
	return fmt.Sprintf("[x=%.5f, y=%.5f, z=%.5f]", v.X, v.Y, v.Z)
}

// AnyPerpendicular は v に垂直な単位ベクトルを1つ返す。
func (v Vec3) AnyPerpendicular() Vec3 {
	unit := v.Normalized()
	if unit.IsZero() {
		return UNIT_Z_VEC3
	}
	candidate := UNIT_Z_VEC3.Cross(unit)
	if candidate.Length() <= 1e-4 {
		candidate = UNIT_Y_VEC3.Cross(unit)
	}
	return candidate.Normalized()
}

func safeDiv(a, b float64) float64 {
	if math.Abs(b) <= EPSILON {
		return 0
	}
	return a / b
}

// Clamped はmin-maxで値をクランプする。
func Clamped(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// RadToDeg はラジアンを度へ変換する。
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// DegToRad は度をラジアンへ変換する。
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
