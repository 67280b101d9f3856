// 指示: miu200521358
package minteractor

import (
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func mainPositions(rc *RigContext, chain *KinematicChain) []mmath.Vec3 {
	positions := make([]mmath.Vec3, len(chain.Main))
	for i, main := range chain.Main {
		positions[i] = rc.Scene.WorldPosition(main)
	}
	return positions
}

func assertSamePositions(t *testing.T, label string, got []mmath.Vec3, want []mmath.Vec3) {
	t.Helper()
	for i := range want {
		if !got[i].NearEquals(want[i], 1e-4) {
			t.Fatalf("%s: main joint moved: index=%d got=%s want=%s", label, i, got[i], want[i])
		}
	}
}

func TestSnapRoundTripKeepsPose(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, true, false)

	// 膝を曲げた姿勢にする
	ikControl := rc.Scene.MustGet(chain.IkControl)
	ikControl.Translation = ikControl.Translation.Added(mmath.NewVec3(0, 1.5, 0.5))
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	posed := mainPositions(rc, chain)

	tool := NewKinematicSnapTool(rc.Settings)
	direction, err := tool.Snap(rc, chain.Switch)
	if err != nil {
		t.Fatalf("snap to fk failed: %v", err)
	}
	if direction != SNAP_DIRECTION_IK_TO_FK {
		t.Fatalf("first snap must go to fk: got=%s", direction)
	}
	if got := rc.Scene.MustGet(chain.Switch).AttributeValue(model.ATTR_IK_FK, -1); got != 0 {
		t.Fatalf("ikFk must be 0 after snap to fk: got=%f", got)
	}
	assertSamePositions(t, "ik to fk", mainPositions(rc, chain), posed)

	direction, err = tool.Snap(rc, chain.Switch)
	if err != nil {
		t.Fatalf("snap to ik failed: %v", err)
	}
	if direction != SNAP_DIRECTION_FK_TO_IK {
		t.Fatalf("second snap must go to ik: got=%s", direction)
	}
	if got := rc.Scene.MustGet(chain.Switch).AttributeValue(model.ATTR_IK_FK, -1); got != 1 {
		t.Fatalf("ikFk must be 1 after snap to ik: got=%f", got)
	}
	assertSamePositions(t, "fk to ik", mainPositions(rc, chain), posed)
}

func TestSnapFromFkPose(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, false, false)
	ikFk, _ := rc.Scene.MustGet(chain.Switch).Attribute(model.ATTR_IK_FK)
	ikFk.Set(0)

	upper := rc.Scene.MustGet(chain.Fk[0])
	upper.Rotation = upper.Rotation.Muled(mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Z_VEC3, 0.3))
	lower := rc.Scene.MustGet(chain.Fk[1])
	lower.Rotation = lower.Rotation.Muled(mmath.NewQuaternionFromAxisAngle(mmath.UNIT_Z_VEC3, -0.6))
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	posed := mainPositions(rc, chain)

	direction, err := NewKinematicSnapTool(rc.Settings).Snap(rc, chain.Switch)
	if err != nil {
		t.Fatalf("snap failed: %v", err)
	}
	if direction != SNAP_DIRECTION_FK_TO_IK {
		t.Fatalf("snap from fk must go to ik: got=%s", direction)
	}
	assertSamePositions(t, "fk to ik", mainPositions(rc, chain), posed)
}

func TestSnapFailsWithoutMutation(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, false, false)
	before := mainPositions(rc, chain)

	_, err := NewKinematicSnapTool(rc.Settings).Snap(rc, chain.IkControl)
	if !merrors.IsSnapConsistencyError(err) {
		t.Fatalf("expected snap consistency error: got=%v", err)
	}

	// リンクが欠けた切替も変更せずに失敗する
	switchNode := rc.Scene.MustGet(chain.Switch)
	pole := switchNode.Links[LINK_POLE]
	delete(switchNode.Links, LINK_POLE)
	_, err = NewKinematicSnapTool(rc.Settings).Snap(rc, chain.Switch)
	if !merrors.IsSnapConsistencyError(err) {
		t.Fatalf("expected snap consistency error for missing pole: got=%v", err)
	}
	switchNode.Links[LINK_POLE] = pole
	if got := switchNode.AttributeValue(model.ATTR_IK_FK, -1); got != 1 {
		t.Fatalf("ikFk must be unchanged after failed snap: got=%f", got)
	}
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	assertSamePositions(t, "failed snap", mainPositions(rc, chain), before)
}
