// 指示: miu200521358
package dataflow

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func addTestNode(t *testing.T, scene *model.Scene, name string, kind model.NodeKind, parent int, translation mmath.Vec3) int {
	t.Helper()
	node := model.NewNode(name, kind)
	node.ParentIndex = parent
	node.Translation = translation
	index, err := scene.Add(node)
	if err != nil {
		t.Fatalf("add node failed: %s: %v", name, err)
	}
	return index
}

func TestGraphAddRejectsCycle(t *testing.T) {
	scene := model.NewScene()
	a := addTestNode(t, scene, "a", model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3)
	b := addTestNode(t, scene, "b", model.NODE_KIND_LOCATOR, -1, mmath.UNIT_X_VEC3)
	graph := NewGraph()

	first, err := NewPointConstraint(scene, "b_to_a", []int{b}, []Source{ConstSource{V: 1}}, a)
	if err != nil {
		t.Fatalf("constraint failed: %v", err)
	}
	if err := graph.Add(scene, first); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	second, err := NewPointConstraint(scene, "a_to_b", []int{a}, []Source{ConstSource{V: 1}}, b)
	if err != nil {
		t.Fatalf("constraint failed: %v", err)
	}
	err = graph.Add(scene, second)
	if !merrors.IsCycleError(err) {
		t.Fatalf("expected cycle error: got=%v", err)
	}
	if graph.Len() != 1 {
		t.Fatalf("graph must be unchanged after rejected add: len=%d", graph.Len())
	}
}

func TestGraphAddRejectsChildDrivingParent(t *testing.T) {
	scene := model.NewScene()
	parent := addTestNode(t, scene, "parent", model.NODE_KIND_GROUP, -1, mmath.ZERO_VEC3)
	child := addTestNode(t, scene, "child", model.NODE_KIND_LOCATOR, parent, mmath.UNIT_Y_VEC3)
	graph := NewGraph()

	op := NewOrientConstraint(scene, "child_to_parent", child, parent, false)
	err := graph.Add(scene, op)
	if !merrors.IsCycleError(err) {
		t.Fatalf("expected cycle error through hierarchy: got=%v", err)
	}
}

func TestGraphAddRejectsSecondWriter(t *testing.T) {
	scene := model.NewScene()
	a := addTestNode(t, scene, "a", model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3)
	b := addTestNode(t, scene, "b", model.NODE_KIND_LOCATOR, -1, mmath.UNIT_X_VEC3)
	c := addTestNode(t, scene, "c", model.NODE_KIND_LOCATOR, -1, mmath.UNIT_Y_VEC3)
	graph := NewGraph()

	if err := graph.Add(scene, NewOrientConstraint(scene, "a_to_c", a, c, false)); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := graph.Add(scene, NewOrientConstraint(scene, "b_to_c", b, c, false))
	if !merrors.IsPlugConflictError(err) {
		t.Fatalf("expected plug conflict error: got=%v", err)
	}
	if _, ok := graph.Driver(RotatePlug(c)); !ok {
		t.Fatalf("driver must be registered")
	}
}

func TestGraphEvaluateFollowsDependencyOrder(t *testing.T) {
	scene := model.NewScene()
	source := addTestNode(t, scene, "source", model.NODE_KIND_LOCATOR, -1, mmath.NewVec3(1, 2, 3))
	middle := addTestNode(t, scene, "middle", model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3)
	last := addTestNode(t, scene, "last", model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3)
	graph := NewGraph()

	// 後段を先に追加しても評価は依存順になる
	second, _ := NewPointConstraint(scene, "middle_to_last", []int{middle}, []Source{ConstSource{V: 1}}, last)
	first, _ := NewPointConstraint(scene, "source_to_middle", []int{source}, []Source{ConstSource{V: 1}}, middle)
	if err := graph.Add(scene, second); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := graph.Add(scene, first); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := graph.Evaluate(scene); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if got := scene.WorldPosition(last); !got.NearEquals(mmath.NewVec3(1, 2, 3), 1e-9) {
		t.Fatalf("last position mismatch: got=%v", got)
	}
}

func TestBlendOperatorWeightsPartition(t *testing.T) {
	scene := model.NewScene()
	switchNode := model.NewNode("switch", model.NODE_KIND_CONTROL)
	switchNode.AddAttribute(model.NewRangeAttribute(model.ATTR_IK_FK, 1, 0, 1))
	switchIndex, _ := scene.Add(switchNode)
	reverse := addTestNode(t, scene, "reverse", model.NODE_KIND_UTILITY, -1, mmath.ZERO_VEC3)
	ik := addTestNode(t, scene, "ik", model.NODE_KIND_JOINT, -1, mmath.ZERO_VEC3)
	fk := addTestNode(t, scene, "fk", model.NODE_KIND_CONTROL, -1, mmath.ZERO_VEC3)
	main := addTestNode(t, scene, "main", model.NODE_KIND_JOINT, -1, mmath.ZERO_VEC3)
	scene.MustGet(ik).Rotation = mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Z_VEC3, math.Pi/2)

	graph := NewGraph()
	inverse, err := NewExpressionOperator("reverse", "1 - ikFk",
		map[string]Source{"ikFk": AttrSource{Node: switchIndex, Attr: model.ATTR_IK_FK}},
		AttrSink{Node: reverse, Attr: model.ATTR_OUTPUT})
	if err != nil {
		t.Fatalf("expression failed: %v", err)
	}
	blend := &BlendOperator{
		Label:    "blend",
		Ik:       ik,
		Fk:       fk,
		Target:   main,
		IkWeight: AttrSource{Node: switchIndex, Attr: model.ATTR_IK_FK},
		FkWeight: AttrSource{Node: reverse, Attr: model.ATTR_OUTPUT},
	}
	if err := graph.Add(scene, blend); err != nil {
		t.Fatalf("add blend failed: %v", err)
	}
	if err := graph.Add(scene, inverse); err != nil {
		t.Fatalf("add reverse failed: %v", err)
	}

	for i := 0; i <= 20; i++ {
		value := float64(i) / 20
		attr, _ := scene.MustGet(switchIndex).Attribute(model.ATTR_IK_FK)
		attr.Set(value)
		if err := graph.Evaluate(scene); err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		wIk, wFk := blend.Weights(scene)
		if math.Abs(wIk+wFk-1) > 1e-12 {
			t.Fatalf("weights must sum to 1: value=%v ik=%v fk=%v", value, wIk, wFk)
		}
		if math.Abs(wIk-value) > 1e-12 {
			t.Fatalf("ik weight must follow switch: value=%v ik=%v", value, wIk)
		}
		angle := scene.MustGet(main).Rotation.TwistAngle(mmath.UNIT_Z_VEC3)
		if math.Abs(angle-value*math.Pi/2) > 1e-9 {
			t.Fatalf("blended angle mismatch: value=%v angle=%v", value, angle)
		}
	}
}

func TestExpressionOperatorRejectsUnboundVariable(t *testing.T) {
	_, err := NewExpressionOperator("bad", "max(1, live / rest)",
		map[string]Source{"live": ConstSource{V: 2}}, AttrSink{Node: 0, Attr: "out"})
	if err == nil {
		t.Fatalf("expected unbound variable error")
	}
}

func TestExpressionOperatorFunctions(t *testing.T) {
	scene := model.NewScene()
	cases := []struct {
		formula string
		want    float64
	}{
		{"max(1, live / rest)", 1},
		{"min(live, rest)", 0.5},
		{"clamp(live * 10, 0.2, 5.0)", 5},
		{"lerp(rest, live, 0.5)", 1.5},
		{"taper(0.5, 0.25)", 1},
		{"taper(0, 0.25)", 0.25},
	}
	for _, tc := range cases {
		op, err := NewExpressionOperator(tc.formula, tc.formula,
			map[string]Source{"live": ConstSource{V: 0.5}, "rest": ConstSource{V: 2.5}},
			AttrSink{Node: 0, Attr: "out"})
		if err != nil {
			t.Fatalf("expression failed: %s: %v", tc.formula, err)
		}
		got, err := op.Value(scene)
		if err != nil {
			t.Fatalf("evaluate failed: %s: %v", tc.formula, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("value mismatch: %s got=%v want=%v", tc.formula, got, tc.want)
		}
	}
}
