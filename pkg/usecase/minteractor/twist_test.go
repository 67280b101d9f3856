// 指示: miu200521358
package minteractor

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func TestTwistShare(t *testing.T) {
	testCases := []struct {
		name    string
		tracked float64
		j       int
		n       int
		want    float64
	}{
		{name: "first joint", tracked: 0.4, j: 0, n: 3, want: 0},
		{name: "middle joint", tracked: 0.4, j: 1, n: 3, want: 0.4},
		{name: "last joint carries full twist", tracked: 0.4, j: 2, n: 3, want: 0.8},
		{name: "four joints", tracked: -0.3, j: 2, n: 4, want: -0.4},
		{name: "single joint", tracked: 0.4, j: 0, n: 1, want: 0},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := TwistShare(tc.tracked, tc.j, tc.n); math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("twist share mismatch: got=%f want=%f", got, tc.want)
			}
		})
	}
}

func TestTwistDistributeBuildsJointsPerSegment(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, true, true)
	if len(chain.Twists) != 1 {
		t.Fatalf("one twist segment expected: got=%d", len(chain.Twists))
	}
	group := chain.Twists[0]
	if group.Segment != 0 || group.Start != chain.Main[0] || group.End != chain.Main[1] {
		t.Fatalf("twist segment mismatch: segment=%d start=%d end=%d", group.Segment, group.Start, group.End)
	}
	want := []string{
		"akona_leg_left_upperLeg_twist_01_main_joint",
		"akona_leg_left_upperLeg_twist_02_main_joint",
	}
	for i, name := range nodeNames(rc.Scene, group.Joints) {
		if name != want[i] {
			t.Fatalf("twist joint name mismatch: index=%d got=%s want=%s", i, name, want[i])
		}
	}
	if got := rc.Scene.MustGet(group.Tracker).Name; got != "akona_leg_left_upperLegTwist_util" {
		t.Fatalf("tracker name mismatch: got=%s", got)
	}
}

func TestTwistTrackerFollowsSegmentTwist(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, false, true)
	ikFk, _ := rc.Scene.MustGet(chain.Switch).Attribute(model.ATTR_IK_FK)
	ikFk.Set(0)

	const twist = 0.6
	lower := rc.Scene.MustGet(chain.Fk[1])
	lower.Rotation = lower.Rotation.Muled(mmath.NewQuaternionFromAxisAngle(mmath.UNIT_X_VEC3, twist))
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	group := chain.Twists[0]
	tracked := rc.Scene.MustGet(group.Tracker).AttributeValue(model.ATTR_TWIST, 0)
	if math.Abs(tracked-twist/2) > 1e-6 {
		t.Fatalf("tracker must hold half of the segment twist: got=%f want=%f", tracked, twist/2)
	}
	n := len(group.Joints)
	for j, joint := range group.Joints {
		got := rc.Scene.MustGet(joint).Rotation.TwistAngle(mmath.UNIT_X_VEC3)
		want := TwistShare(tracked, j, n)
		if math.Abs(got-want) > 1e-6 {
			t.Fatalf("twist joint share mismatch: j=%d got=%f want=%f", j, got, want)
		}
	}
}

func TestTwistScaleFollowsSegmentEnd(t *testing.T) {
	testCases := []struct {
		name    string
		stretch bool
	}{
		{name: "plain", stretch: false},
		{name: "stretch keeps volume on yz", stretch: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
			chain := buildTestLeg(t, rc, tc.stretch, true)
			group := chain.Twists[0]
			rc.Scene.MustGet(group.Start).Scale = mmath.NewVec3(0.5, 0.5, 0.5)
			end := rc.Scene.MustGet(group.End)
			end.Scale = mmath.NewVec3(1.4, 1.1, 0.9)
			if err := rc.Evaluate(); err != nil {
				t.Fatalf("evaluate failed: %v", err)
			}
			for j, joint := range group.Joints {
				got := rc.Scene.MustGet(joint).Scale
				if math.Abs(got.X-1.4) > 1e-9 {
					t.Fatalf("twist joint must follow segment end scale: j=%d got=%s", j, got)
				}
				if !tc.stretch && !got.NearEquals(end.Scale, 1e-9) {
					t.Fatalf("twist joint scale mismatch: j=%d got=%s want=%s", j, got, end.Scale)
				}
			}
		})
	}
}

func TestTwistDistributeRejectsInvalidSegments(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	chain := buildTestLeg(t, rc, false, false)
	twists := []int{
		mustLookup(t, rc.Scene, "akona_leg_left_upperLeg_twist_01_skin_joint"),
		mustLookup(t, rc.Scene, "akona_leg_left_upperLeg_twist_02_skin_joint"),
	}
	distributor := NewTwistDistributor()
	if _, err := distributor.Distribute(rc, chain, len(chain.Main)-1, twists, false); !merrors.IsStructuralInvariantError(err) {
		t.Fatalf("terminal segment must be rejected: got=%v", err)
	}
	if _, err := distributor.Distribute(rc, chain, 0, twists[:1], false); !merrors.IsStructuralInvariantError(err) {
		t.Fatalf("single twist joint must be rejected: got=%v", err)
	}
}

func TestTwistDistributeBending(t *testing.T) {
	settings := DefaultRigSettings()
	settings.BendingBones = true
	scene := newTestSkeleton(t, []testJoint{
		{name: "akona_arm_left_upperArm_skin_joint", position: mmath.NewVec3(2, 13, 0)},
		{name: "akona_arm_left_upperArm_twist_01_skin_joint", parent: "akona_arm_left_upperArm_skin_joint", position: mmath.NewVec3(2.5, 13, -0.03)},
		{name: "akona_arm_left_upperArm_twist_02_skin_joint", parent: "akona_arm_left_upperArm_skin_joint", position: mmath.NewVec3(3.5, 13, -0.1)},
		{name: "akona_arm_left_upperArm_twist_03_skin_joint", parent: "akona_arm_left_upperArm_skin_joint", position: mmath.NewVec3(4.5, 13, -0.17)},
		{name: "akona_arm_left_lowerArm_skin_joint", parent: "akona_arm_left_upperArm_skin_joint", position: mmath.NewVec3(5, 13, -0.2)},
		{name: "akona_arm_left_hand_skin_joint", parent: "akona_arm_left_lowerArm_skin_joint", position: mmath.NewVec3(8, 13, 0)},
	})
	rc := newOpenContext(t, scene, settings)
	resolver := NewZoneResolver(testCharacter)
	joints, err := resolver.Require(scene, ZONE_ARM, model.SIDE_LEFT)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	buckets, err := limbTwistJoints(rc, resolver, ZONE_ARM, model.SIDE_LEFT, joints)
	if err != nil {
		t.Fatalf("twist sync failed: %v", err)
	}
	chain, err := NewKinematicChainBuilder(settings).Build(rc, ChainRequest{
		SourceJoints: joints,
		Parent:       rc.RootControl,
		Zone:         ZONE_ARM,
		Side:         model.SIDE_LEFT,
		Stretch:      true,
		BendingBones: true,
		TwistJoints:  buckets,
		BendHint:     mmath.UNIT_Z_NEG_VEC3,
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	group := chain.Twists[0]
	if !group.Bending || len(group.BendControls) != 1 || len(group.Joints) != 3 {
		t.Fatalf("bending group mismatch: bending=%t controls=%d joints=%d", group.Bending, len(group.BendControls), len(group.Joints))
	}
	for i, joint := range group.Joints {
		got := scene.WorldPosition(joint)
		want := scene.WorldPosition(group.Sources[i])
		if !got.NearEquals(want, 1e-4) {
			t.Fatalf("bending joint must stay at rest: index=%d got=%s want=%s", i, got, want)
		}
	}
}
