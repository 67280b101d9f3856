// 指示: miu200521358
package minteractor

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func TestSplineFitCurveWithinTolerance(t *testing.T) {
	builder := NewSplineDriverBuilder(DefaultRigSettings())
	points := make([]mmath.Vec3, 0, 6)
	for i := 0; i < 6; i++ {
		y := float64(i)
		points = append(points, mmath.NewVec3(0, y, 0.3*math.Sin(y/5*math.Pi)))
	}
	curve, residual, _, err := builder.FitCurve(points)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if residual > 0.05 {
		t.Fatalf("residual exceeds tolerance: got=%f", residual)
	}
	if len(curve.CVs) != builder.Spans+builder.Degree {
		t.Fatalf("cv count mismatch: got=%d", len(curve.CVs))
	}
	if !curve.CVs[0].NearEquals(points[0], 1e-12) || !curve.CVs[len(curve.CVs)-1].NearEquals(points[len(points)-1], 1e-12) {
		t.Fatalf("end cvs must be pinned to end points")
	}
}

func TestSplineFitCurveRejectsSinglePoint(t *testing.T) {
	_, _, _, err := NewSplineDriverBuilder(DefaultRigSettings()).FitCurve([]mmath.Vec3{mmath.ZERO_VEC3})
	if !merrors.IsStructuralInvariantError(err) {
		t.Fatalf("expected structural invariant error: got=%v", err)
	}
}

func TestSplineBuildFollowsSpine(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	joints, err := NewZoneResolver(testCharacter).Require(rc.Scene, ZONE_SPINE, model.SIDE_NONE)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	rig, err := NewSplineDriverBuilder(rc.Settings).Build(rc, joints, ZONE_SPINE, rc.RootControl)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(rig.Joints) != len(joints) || len(rig.UpVectors) != len(joints)-1 {
		t.Fatalf("joint counts mismatch: joints=%d ups=%d", len(rig.Joints), len(rig.UpVectors))
	}
	if len(rig.Controls) != rc.Settings.CurveSpans+rc.Settings.CurveDegree {
		t.Fatalf("one control per cv expected: got=%d", len(rig.Controls))
	}
	for i, joint := range rig.Joints {
		got := rc.Scene.WorldPosition(joint)
		want := rc.Scene.WorldPosition(joints[i])
		if got.Distance(want) > rc.Settings.RelaxTolerance {
			t.Fatalf("spine joint too far from skin: index=%d got=%s want=%s", i, got, want)
		}
	}

	// 先端コントロールを動かすと曲線とジョイントが追従する
	top := rig.Joints[len(rig.Joints)-1]
	before := rc.Scene.WorldPosition(top)
	control := rc.Scene.MustGet(rig.Controls[len(rig.Controls)-1])
	control.Translation = control.Translation.Added(mmath.NewVec3(0, 0, 1))
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	after := rc.Scene.WorldPosition(top)
	if after.Z-before.Z < 0.5 {
		t.Fatalf("top joint must follow control: before=%s after=%s", before, after)
	}
}
