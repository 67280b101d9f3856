// 指示: miu200521358
package mmath

import "github.com/go-gl/mathgl/mgl64"

// Transform は位置・回転・スケールの組を表す。
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
}

// IdentityTransform は原点・無回転・等倍の変換を返す。
func IdentityTransform() Transform {
	return Transform{Position: ZERO_VEC3, Rotation: IdentityQuaternion(), Scale: ONE_VEC3}
}

// Composed は親変換 t の下にローカル変換 local を合成したワールド変換を返す。
// スケールは成分ごとに合成し、せん断は扱わない。
func (t Transform) Composed(local Transform) Transform {
	return Transform{
		Position: t.Position.Added(t.Rotation.Rotated(local.Position.Muled(t.Scale))),
		Rotation: t.Rotation.Muled(local.Rotation),
		Scale:    t.Scale.Muled(local.Scale),
	}
}

// TransformPoint はローカル座標をワールド座標へ変換する。
func (t Transform) TransformPoint(local Vec3) Vec3 {
	return t.Position.Added(t.Rotation.Rotated(local.Muled(t.Scale)))
}

// InverseTransformPoint はワールド座標をローカル座標へ変換する。
func (t Transform) InverseTransformPoint(world Vec3) Vec3 {
	return t.Rotation.Inverted().Rotated(world.Subed(t.Position)).Dived(t.Scale)
}

// UniformScale はスケール成分の平均を返す。
func (t Transform) UniformScale() float64 {
	return (t.Scale.X + t.Scale.Y + t.Scale.Z) / 3.0
}

// Matrix は4x4行列(列優先)を返す。
func (t Transform) Matrix() mgl64.Mat4 {
	translate := mgl64.Translate3D(t.Position.X, t.Position.Y, t.Position.Z)
	rotate := t.Rotation.Gl().Mat4()
	scale := mgl64.Scale3D(t.Scale.X, t.Scale.Y, t.Scale.Z)
	return translate.Mul4(rotate).Mul4(scale)
}

// NearEquals は位置・回転・スケールがそれぞれ許容値以内か判定する。
func (t Transform) NearEquals(other Transform, epsilon float64) bool {
	return t.Position.NearEquals(other.Position, epsilon) &&
		t.Rotation.NearEquals(other.Rotation, epsilon) &&
		t.Scale.NearEquals(other.Scale, epsilon)
}

// Localized はワールド変換 world を t の下のローカル変換へ変換する。t.Composed の逆演算。
func (t Transform) Localized(world Transform) Transform {
	return Transform{
		Position: t.InverseTransformPoint(world.Position),
		Rotation: t.Rotation.Inverted().Muled(world.Rotation),
		Scale:    world.Scale.Dived(t.Scale),
	}
}
