// 指示: miu200521358
package model

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// newSceneTestNodes は Y軸90度回転したルートグループと子ジョイントを持つシーンを作る。
func newSceneTestNodes(t *testing.T) (*Scene, int, int) {
	t.Helper()
	scene := NewScene()
	root := NewNode("root", NODE_KIND_GROUP)
	root.Translation = mmath.NewVec3(0, 1, 0)
	root.Rotation = mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Y_VEC3, math.Pi/2)
	rootIndex, err := scene.Add(root)
	if err != nil {
		t.Fatalf("add root failed: %v", err)
	}
	child := NewNode("child", NODE_KIND_JOINT)
	child.ParentIndex = rootIndex
	child.Translation = mmath.NewVec3(1, 0, 0)
	childIndex, err := scene.Add(child)
	if err != nil {
		t.Fatalf("add child failed: %v", err)
	}
	return scene, rootIndex, childIndex
}

func TestSceneWorldTransform(t *testing.T) {
	scene, rootIndex, childIndex := newSceneTestNodes(t)
	if got := scene.WorldPosition(childIndex); !got.NearEquals(mmath.NewVec3(0, 1, -1), 1e-9) {
		t.Fatalf("world position mismatch: got=%s", got)
	}
	if scene.Path(childIndex) != "|root|child" || scene.Depth(childIndex) != 1 {
		t.Fatalf("path mismatch: %s depth=%d", scene.Path(childIndex), scene.Depth(childIndex))
	}
	if children := scene.Children(rootIndex); len(children) != 1 || children[0] != childIndex {
		t.Fatalf("children mismatch: %v", children)
	}

	scene.SetWorldPosition(childIndex, mmath.NewVec3(2, 1, 0))
	if got := scene.WorldPosition(childIndex); !got.NearEquals(mmath.NewVec3(2, 1, 0), 1e-9) {
		t.Fatalf("set world position mismatch: got=%s", got)
	}
	rotation := mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Z_VEC3, 0.3)
	scene.SetWorldRotation(childIndex, rotation)
	if got := scene.WorldRotation(childIndex); !got.NearEquals(rotation, 1e-9) {
		t.Fatalf("set world rotation mismatch: got=%s", got)
	}
}

func TestSceneJointScaleIsNotInherited(t *testing.T) {
	scene := NewScene()
	parent := NewNode("parent", NODE_KIND_JOINT)
	parent.Scale = mmath.NewVec3(2, 2, 2)
	parentIndex, _ := scene.Add(parent)
	child := NewNode("child", NODE_KIND_JOINT)
	child.ParentIndex = parentIndex
	child.Translation = mmath.NewVec3(1, 0, 0)
	childIndex, _ := scene.Add(child)

	if got := scene.WorldPosition(childIndex); !got.NearEquals(mmath.NewVec3(2, 0, 0), 1e-9) {
		t.Fatalf("position must follow parent scale: got=%s", got)
	}
	if got := scene.WorldScale(childIndex); !got.NearEquals(mmath.ONE_VEC3, 1e-9) {
		t.Fatalf("joint scale must not be inherited: got=%s", got)
	}
}

func TestSceneAddAndParentErrors(t *testing.T) {
	scene, rootIndex, childIndex := newSceneTestNodes(t)
	if _, err := scene.Add(NewNode("child", NODE_KIND_GROUP)); !merrors.IsNameConflictError(err) {
		t.Fatalf("name conflict expected, got %v", err)
	}
	orphan := NewNode("orphan", NODE_KIND_GROUP)
	orphan.ParentIndex = 10
	if _, err := scene.Add(orphan); !merrors.IsNodeNotFoundError(err) {
		t.Fatalf("missing parent expected, got %v", err)
	}
	if err := scene.SetParent(rootIndex, childIndex, true); err == nil {
		t.Fatalf("cyclic parent should fail")
	}
	if _, err := scene.GetByName("missing"); !merrors.IsNodeNotFoundError(err) {
		t.Fatalf("missing name expected, got %v", err)
	}
}

func TestSceneSetParentKeepsWorld(t *testing.T) {
	scene, _, childIndex := newSceneTestNodes(t)
	other := NewNode("other", NODE_KIND_GROUP)
	other.Translation = mmath.NewVec3(5, 0, 0)
	otherIndex, _ := scene.Add(other)

	before := scene.WorldTransform(childIndex)
	if err := scene.SetParent(childIndex, otherIndex, true); err != nil {
		t.Fatalf("set parent failed: %v", err)
	}
	if got := scene.WorldTransform(childIndex); !got.NearEquals(before, 1e-9) {
		t.Fatalf("world transform must be kept: got=%+v want=%+v", got, before)
	}
	if scene.Path(childIndex) != "|other|child" {
		t.Fatalf("path mismatch: %s", scene.Path(childIndex))
	}
}

func TestSceneDuplicateCopiesAttributes(t *testing.T) {
	scene, rootIndex, childIndex := newSceneTestNodes(t)
	scene.MustGet(childIndex).AddAttribute(NewRangeAttribute(ATTR_FK_STRETCH, 1, FK_STRETCH_MIN, FK_STRETCH_MAX))

	copiedIndex, err := scene.Duplicate(childIndex, "child_copy", rootIndex)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	copied := scene.MustGet(copiedIndex)
	attr, ok := copied.Attribute(ATTR_FK_STRETCH)
	if !ok {
		t.Fatalf("attribute must be copied")
	}
	attr.Set(3)
	if got := scene.MustGet(childIndex).AttributeValue(ATTR_FK_STRETCH, 0); got != 1 {
		t.Fatalf("source attribute must not change: got=%f", got)
	}
	if !scene.WorldPosition(copiedIndex).NearEquals(scene.WorldPosition(childIndex), 1e-9) {
		t.Fatalf("duplicate must keep local transform")
	}
}

func TestAttributeClampAndNiceName(t *testing.T) {
	attr := NewRangeAttribute(ATTR_FK_STRETCH, 1, FK_STRETCH_MIN, FK_STRETCH_MAX)
	attr.Set(10)
	if attr.Value != FK_STRETCH_MAX {
		t.Fatalf("clamp max mismatch: %f", attr.Value)
	}
	attr.Set(0)
	if attr.Value != FK_STRETCH_MIN {
		t.Fatalf("clamp min mismatch: %f", attr.Value)
	}
	attr.Reset()
	if attr.Value != 1 {
		t.Fatalf("reset mismatch: %f", attr.Value)
	}

	enum := NewEnumAttribute(ATTR_POLE_POSITION, PolePositionNames, int(POLE_POSITION_ROOT))
	enum.Set(7)
	if enum.EnumIndex() != int(POLE_POSITION_LIMB) {
		t.Fatalf("enum clamp mismatch: %d", enum.EnumIndex())
	}
	if attr.NiceName != "Fk Stretch" || NiceName(ATTR_IK_FK) != "Ik Fk" {
		t.Fatalf("nice name mismatch: %s / %s", attr.NiceName, NiceName(ATTR_IK_FK))
	}
}
