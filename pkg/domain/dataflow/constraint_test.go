// 指示: miu200521358
package dataflow

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

func TestPointConstraintWeightedAverage(t *testing.T) {
	scene := model.NewScene()
	a := addTestNode(t, scene, "a", model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3)
	b := addTestNode(t, scene, "b", model.NODE_KIND_LOCATOR, -1, mmath.NewVec3(4, 0, 0))
	holder := addTestNode(t, scene, "holder", model.NODE_KIND_CONTROL, -1, mmath.ZERO_VEC3)
	scene.MustGet(holder).AddAttribute(model.NewRangeAttribute("weightA", 1, 0, 1))
	scene.MustGet(holder).AddAttribute(model.NewRangeAttribute("weightB", 0, 0, 1))
	driven := addTestNode(t, scene, "driven", model.NODE_KIND_LOCATOR, -1, mmath.NewVec3(0, 5, 0))

	if _, err := NewPointConstraint(scene, "bad", []int{a, b}, []Source{ConstSource{V: 1}}, driven); err == nil {
		t.Fatalf("weight count mismatch should fail")
	}
	constraint, err := NewPointConstraint(scene, "driven_point", []int{a, b},
		[]Source{AttrSource{Node: holder, Attr: "weightA"}, AttrSource{Node: holder, Attr: "weightB"}}, driven)
	if err != nil {
		t.Fatalf("constraint failed: %v", err)
	}
	graph := NewGraph()
	if err := graph.Add(scene, constraint); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	cases := []struct {
		blend float64
		want  mmath.Vec3
	}{
		{blend: 0, want: mmath.ZERO_VEC3},
		{blend: 0.25, want: mmath.NewVec3(1, 0, 0)},
		{blend: 1, want: mmath.NewVec3(4, 0, 0)},
	}
	for _, tc := range cases {
		scene.MustGet(holder).Attributes["weightA"].Set(1 - tc.blend)
		scene.MustGet(holder).Attributes["weightB"].Set(tc.blend)
		if err := graph.Evaluate(scene); err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if got := scene.WorldPosition(driven); !got.NearEquals(tc.want, 1e-9) {
			t.Fatalf("blend %.2f position mismatch: got=%s want=%s", tc.blend, got, tc.want)
		}
	}
}

func TestParentConstraintKeepsOffset(t *testing.T) {
	scene := model.NewScene()
	target := addTestNode(t, scene, "target", model.NODE_KIND_CONTROL, -1, mmath.NewVec3(1, 0, 0))
	driven := addTestNode(t, scene, "driven", model.NODE_KIND_JOINT, -1, mmath.NewVec3(2, 0, 0))
	scene.MustGet(driven).Scale = mmath.NewVec3(3, 3, 3)

	constraint := NewParentConstraint(scene, "driven_parent", target, driven, false)
	graph := NewGraph()
	if err := graph.Add(scene, constraint); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	scene.MustGet(target).Rotation = mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Z_VEC3, math.Pi/2)
	scene.MustGet(target).Scale = mmath.NewVec3(2, 2, 2)
	if err := graph.Evaluate(scene); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	// 目標の回転に追従し、オフセット(1,0,0)は目標のスケールで伸びる
	if got := scene.WorldPosition(driven); !got.NearEquals(mmath.NewVec3(1, 2, 0), 1e-9) {
		t.Fatalf("position mismatch: got=%s", got)
	}
	if got := scene.WorldRotation(driven); !got.NearEquals(scene.WorldRotation(target), 1e-9) {
		t.Fatalf("rotation mismatch: got=%s", got)
	}
	if got := scene.WorldScale(driven); !got.NearEquals(mmath.NewVec3(3, 3, 3), 1e-9) {
		t.Fatalf("scale must not be copied: got=%s", got)
	}
}

func TestOrientConstraintKeepOffset(t *testing.T) {
	scene := model.NewScene()
	target := addTestNode(t, scene, "target", model.NODE_KIND_CONTROL, -1, mmath.ZERO_VEC3)
	driven := addTestNode(t, scene, "driven", model.NODE_KIND_JOINT, -1, mmath.ZERO_VEC3)
	initial := mmath.NewQuaternionFromAxisAngle(mmath.UNIT_X_VEC3, 0.5)
	scene.MustGet(driven).Rotation = initial

	keep := NewOrientConstraint(scene, "driven_orient", target, driven, true)
	graph := NewGraph()
	if err := graph.Add(scene, keep); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := graph.Evaluate(scene); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if got := scene.WorldRotation(driven); !got.NearEquals(initial, 1e-9) {
		t.Fatalf("offset must keep the initial rotation: got=%s", got)
	}

	turn := mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Y_VEC3, 0.8)
	scene.MustGet(target).Rotation = turn
	if err := graph.Evaluate(scene); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if got := scene.WorldRotation(driven); !got.NearEquals(turn.Muled(initial), 1e-9) {
		t.Fatalf("rotation mismatch: got=%s", got)
	}
}
