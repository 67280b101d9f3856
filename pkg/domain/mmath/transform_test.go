// 指示: miu200521358
package mmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformComposeAndLocalize(t *testing.T) {
	parent := Transform{
		Position: NewVec3(1, 0, 0),
		Rotation: NewQuaternionFromAxisAngle(UNIT_Y_VEC3, math.Pi/2),
		Scale:    NewVec3(2, 2, 2),
	}
	local := Transform{
		Position: NewVec3(1, 0, 0),
		Rotation: NewQuaternionFromAxisAngle(UNIT_X_VEC3, 0.25),
		Scale:    NewVec3(1, 0.5, 1),
	}
	world := parent.Composed(local)
	if !world.Position.NearEquals(NewVec3(1, 0, -2), 1e-9) {
		t.Fatalf("world position mismatch: got=%s", world.Position)
	}
	if !world.Scale.NearEquals(NewVec3(2, 1, 2), 1e-12) {
		t.Fatalf("world scale mismatch: got=%s", world.Scale)
	}
	if got := parent.Localized(world); !got.NearEquals(local, 1e-9) {
		t.Fatalf("localize must invert compose: got=%+v", got)
	}
	if got := parent.InverseTransformPoint(parent.TransformPoint(NewVec3(3, -1, 2))); !got.NearEquals(NewVec3(3, -1, 2), 1e-9) {
		t.Fatalf("point round trip mismatch: got=%s", got)
	}
	if got := parent.UniformScale(); got != 2 {
		t.Fatalf("uniform scale mismatch: got=%f", got)
	}
}

func TestTransformMatrix(t *testing.T) {
	if got := IdentityTransform().Matrix(); !got.ApproxEqual(mgl64.Ident4()) {
		t.Fatalf("identity matrix mismatch: %v", got)
	}
	transform := Transform{
		Position: NewVec3(1, 2, 3),
		Rotation: NewQuaternionFromAxisAngle(UNIT_Z_VEC3, math.Pi/2),
		Scale:    ONE_VEC3,
	}
	m := transform.Matrix()
	if m[12] != 1 || m[13] != 2 || m[14] != 3 {
		t.Fatalf("translation column mismatch: %v", m)
	}
	point := m.Mul4x1(mgl64.Vec4{1, 0, 0, 1})
	if got := NewVec3(point[0], point[1], point[2]); !got.NearEquals(transform.TransformPoint(UNIT_X_VEC3), 1e-9) {
		t.Fatalf("matrix and transform disagree: got=%s", got)
	}
}

func TestVec3Helpers(t *testing.T) {
	if _, err := NewVec3FromSlice([]float64{1, 2}); err == nil {
		t.Fatalf("two elements should fail")
	}
	v, err := NewVec3FromSlice([]float64{1, 2, 3})
	if err != nil || !v.NearEquals(NewVec3(1, 2, 3), 0) {
		t.Fatalf("slice vector mismatch: %s err=%v", v, err)
	}
	if got := NewVec3(3, 4, 0).Rejected(UNIT_X_VEC3); !got.NearEquals(NewVec3(0, 4, 0), 1e-12) {
		t.Fatalf("rejected mismatch: got=%s", got)
	}
	for _, axis := range []Vec3{UNIT_X_VEC3, UNIT_Z_VEC3, NewVec3(1, 1, 1)} {
		perpendicular := axis.AnyPerpendicular()
		if math.Abs(perpendicular.Dot(axis)) > 1e-9 || math.Abs(perpendicular.Length()-1) > 1e-9 {
			t.Fatalf("perpendicular mismatch: axis=%s got=%s", axis, perpendicular)
		}
	}
	if got := ZERO_VEC3.Normalized(); !got.IsZero() {
		t.Fatalf("zero vector must stay zero: got=%s", got)
	}
	if got := NewVec3(1, 2, 3).Dived(ZERO_VEC3); !got.IsZero() {
		t.Fatalf("division by zero must yield zero: got=%s", got)
	}
}
