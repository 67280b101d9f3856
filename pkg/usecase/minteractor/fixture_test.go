// 指示: miu200521358
package minteractor

import (
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const testCharacter = "akona"

type testJoint struct {
	name     string
	parent   string
	position mmath.Vec3
}

// newTestSkeleton はスキンジョイントだけのシーンを作る。親は先に定義されている必要がある。
func newTestSkeleton(t *testing.T, joints []testJoint) *model.Scene {
	t.Helper()
	scene := model.NewScene()
	indexes := map[string]int{}
	for _, joint := range joints {
		parent := -1
		if joint.parent != "" {
			index, ok := indexes[joint.parent]
			if !ok {
				t.Fatalf("parent not defined: %s -> %s", joint.name, joint.parent)
			}
			parent = index
		}
		node := model.NewNode(joint.name, model.NODE_KIND_JOINT)
		node.ParentIndex = parent
		index, err := scene.Add(node)
		if err != nil {
			t.Fatalf("add joint failed: %s: %v", joint.name, err)
		}
		scene.SetWorldPosition(index, joint.position)
		indexes[joint.name] = index
	}
	return scene
}

// akonaJoints は胴・首・左右の腕脚・足先と捩りジョイントを持つ人型スケルトン。
func akonaJoints() []testJoint {
	joints := []testJoint{
		{name: "akona_spine_spine_01_skin_joint", position: mmath.NewVec3(0, 10, 0)},
		{name: "akona_spine_spine_02_skin_joint", parent: "akona_spine_spine_01_skin_joint", position: mmath.NewVec3(0, 11, 0.1)},
		{name: "akona_spine_spine_03_skin_joint", parent: "akona_spine_spine_02_skin_joint", position: mmath.NewVec3(0, 12, 0.1)},
		{name: "akona_spine_spine_04_skin_joint", parent: "akona_spine_spine_03_skin_joint", position: mmath.NewVec3(0, 13, 0)},
		{name: "akona_neck_neck_01_skin_joint", parent: "akona_spine_spine_04_skin_joint", position: mmath.NewVec3(0, 14, 0)},
		{name: "akona_neck_head_skin_joint", parent: "akona_neck_neck_01_skin_joint", position: mmath.NewVec3(0, 15, 0.1)},
	}
	for _, side := range model.Sides() {
		sign := side.Sign()
		prefix := "akona_leg_" + string(side) + "_"
		armPrefix := "akona_arm_" + string(side) + "_"
		footPrefix := "akona_foot_" + string(side) + "_"
		joints = append(joints,
			testJoint{name: prefix + "upperLeg_skin_joint", parent: "akona_spine_spine_01_skin_joint", position: mmath.NewVec3(sign, 9.5, 0)},
			testJoint{name: prefix + "upperLeg_twist_01_skin_joint", parent: prefix + "upperLeg_skin_joint", position: mmath.NewVec3(sign, 8, 0.07)},
			testJoint{name: prefix + "upperLeg_twist_02_skin_joint", parent: prefix + "upperLeg_skin_joint", position: mmath.NewVec3(sign, 6.5, 0.13)},
			testJoint{name: prefix + "lowerLeg_skin_joint", parent: prefix + "upperLeg_skin_joint", position: mmath.NewVec3(sign, 5, 0.2)},
			testJoint{name: prefix + "foot_skin_joint", parent: prefix + "lowerLeg_skin_joint", position: mmath.NewVec3(sign, 1, 0)},
			testJoint{name: footPrefix + "ball_skin_joint", parent: prefix + "foot_skin_joint", position: mmath.NewVec3(sign, 0, 1)},
			testJoint{name: footPrefix + "heel_skin_joint", parent: prefix + "foot_skin_joint", position: mmath.NewVec3(sign, 0, -0.3)},
			testJoint{name: armPrefix + "upperArm_skin_joint", parent: "akona_spine_spine_04_skin_joint", position: mmath.NewVec3(2*sign, 13, 0)},
			testJoint{name: armPrefix + "upperArm_twist_01_skin_joint", parent: armPrefix + "upperArm_skin_joint", position: mmath.NewVec3(3*sign, 13, -0.07)},
			testJoint{name: armPrefix + "upperArm_twist_02_skin_joint", parent: armPrefix + "upperArm_skin_joint", position: mmath.NewVec3(4*sign, 13, -0.13)},
			testJoint{name: armPrefix + "lowerArm_skin_joint", parent: armPrefix + "upperArm_skin_joint", position: mmath.NewVec3(5*sign, 13, -0.2)},
			testJoint{name: armPrefix + "lowerArm_twist_01_skin_joint", parent: armPrefix + "lowerArm_skin_joint", position: mmath.NewVec3(6*sign, 13, -0.13)},
			testJoint{name: armPrefix + "lowerArm_twist_02_skin_joint", parent: armPrefix + "lowerArm_skin_joint", position: mmath.NewVec3(7*sign, 13, -0.07)},
			testJoint{name: armPrefix + "hand_skin_joint", parent: armPrefix + "lowerArm_skin_joint", position: mmath.NewVec3(8*sign, 13, 0)},
		)
	}
	return joints
}

func newAkonaScene(t *testing.T) *model.Scene {
	t.Helper()
	return newTestSkeleton(t, akonaJoints())
}

// newOpenContext は開いた構築コンテキストとルートを用意する。
func newOpenContext(t *testing.T, scene *model.Scene, settings RigSettings) *RigContext {
	t.Helper()
	rc := NewRigContext(testCharacter, scene, settings, nil)
	if err := rc.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() {
		if rc.IsOpen() {
			_ = rc.Close()
		}
	})
	if err := buildRoot(rc); err != nil {
		t.Fatalf("build root failed: %v", err)
	}
	return rc
}

func mustLookup(t *testing.T, scene *model.Scene, name string) int {
	t.Helper()
	node, ok := scene.Lookup(name)
	if !ok {
		t.Fatalf("node not found: %s", name)
	}
	return node.Index()
}

func nodeNames(scene *model.Scene, indexes []int) []string {
	names := make([]string, 0, len(indexes))
	for _, index := range indexes {
		names = append(names, scene.MustGet(index).Name)
	}
	return names
}

// buildTestLeg は左脚の3関節チェーンを構築する。
func buildTestLeg(t *testing.T, rc *RigContext, stretch bool, twists bool) *KinematicChain {
	t.Helper()
	resolver := NewZoneResolver(testCharacter)
	joints, err := resolver.Require(rc.Scene, ZONE_LEG, model.SIDE_LEFT)
	if err != nil {
		t.Fatalf("resolve leg failed: %v", err)
	}
	request := ChainRequest{
		SourceJoints: joints,
		Parent:       rc.RootControl,
		Zone:         ZONE_LEG,
		Side:         model.SIDE_LEFT,
		Stretch:      stretch,
		BendHint:     mmath.UNIT_Z_VEC3,
	}
	if twists {
		buckets, err := limbTwistJoints(rc, resolver, ZONE_LEG, model.SIDE_LEFT, joints)
		if err != nil {
			t.Fatalf("twist sync failed: %v", err)
		}
		request.TwistJoints = buckets
	}
	chain, err := NewKinematicChainBuilder(rc.Settings).Build(rc, request)
	if err != nil {
		t.Fatalf("chain build failed: %v", err)
	}
	if err := rc.Evaluate(); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	return chain
}
