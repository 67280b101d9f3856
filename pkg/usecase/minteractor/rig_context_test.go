// 指示: miu200521358
package minteractor

import (
	"errors"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

func TestRigContextOpenCloseLifecycle(t *testing.T) {
	rc := NewRigContext(testCharacter, nil, DefaultRigSettings(), nil)
	if rc.IsOpen() {
		t.Fatalf("new context must be closed")
	}
	if err := rc.Close(); err == nil {
		t.Fatalf("close before open should fail")
	}
	if err := rc.Open(); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if rc.RunID == "" {
		t.Fatalf("run id must be assigned")
	}
	if err := rc.Open(); err == nil {
		t.Fatalf("double open should fail")
	}
	rc.Cache.Put(BuildKey{Character: testCharacter, ZoneFunction: ZONE_SPINE}, &ZoneBuild{})
	if err := rc.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if rc.Cache.Len() != 0 {
		t.Fatalf("close must clear build cache: len=%d", rc.Cache.Len())
	}
}

func TestRigContextRequiresCharacter(t *testing.T) {
	rc := NewRigContext(" ", nil, DefaultRigSettings(), nil)
	if err := rc.Open(); err == nil {
		t.Fatalf("blank character should fail")
	}
}

func TestRigContextAddNodeRejectsDuplicateName(t *testing.T) {
	rc := newOpenContext(t, model.NewScene(), DefaultRigSettings())
	name := rc.Name(ZONE_LEG, model.SIDE_LEFT, "upperLeg", model.CHAIN_TYPE_MAIN_JOINT)
	if _, err := rc.AddNode(name, model.NODE_KIND_JOINT, -1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if _, err := rc.AddNode(name, model.NODE_KIND_JOINT, -1); err == nil {
		t.Fatalf("duplicate name should fail")
	}
	if got := name.String(); got != "akona_leg_left_upperLeg_main_joint" {
		t.Fatalf("name mismatch: got=%s", got)
	}
}

func TestRigContextConnectRejectsCycle(t *testing.T) {
	rc := newOpenContext(t, model.NewScene(), DefaultRigSettings())
	a, err := rc.AddNodeAt(rc.Name("test", model.SIDE_NONE, "a", model.CHAIN_TYPE_LOC), model.NODE_KIND_LOCATOR, -1, mmath.ZERO_VEC3, mmath.IdentityQuaternion())
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	b, err := rc.AddNodeAt(rc.Name("test", model.SIDE_NONE, "b", model.CHAIN_TYPE_LOC), model.NODE_KIND_LOCATOR, a, mmath.UNIT_X_VEC3, mmath.IdentityQuaternion())
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	err = rc.Connect(dataflow.NewOrientConstraint(rc.Scene, "b_to_a", b, a, false))
	if !merrors.IsCycleError(err) {
		t.Fatalf("expected cycle error: got=%v", err)
	}
}

func TestBuildCacheKeyedByZoneAndSide(t *testing.T) {
	cache := NewBuildCache()
	left := BuildKey{Character: testCharacter, ZoneFunction: ZONE_ARM, Side: model.SIDE_LEFT}
	right := BuildKey{Character: testCharacter, ZoneFunction: ZONE_ARM, Side: model.SIDE_RIGHT}
	build := &ZoneBuild{Zone: ZONE_ARM, Side: model.SIDE_LEFT}
	cache.Put(left, build)
	if got, ok := cache.Get(left); !ok || got != build {
		t.Fatalf("cached build must be returned")
	}
	if _, ok := cache.Get(right); ok {
		t.Fatalf("other side must not hit")
	}
	if got := left.String(); got != "akona/arm/left" {
		t.Fatalf("key string mismatch: got=%s", got)
	}
}

func TestAutoRigBuildZoneUsesCache(t *testing.T) {
	rc := newOpenContext(t, newAkonaScene(t), DefaultRigSettings())
	uc := NewAutoRigUsecase(AutoRigUsecaseDeps{})
	calls := 0
	build := func() (*ZoneBuild, error) {
		calls++
		return &ZoneBuild{}, nil
	}
	first, err := uc.buildZone(rc, ZONE_SPINE, model.SIDE_NONE, build)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := uc.buildZone(rc, ZONE_SPINE, model.SIDE_NONE, build)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if calls != 1 || first != second {
		t.Fatalf("second build must reuse cache: calls=%d", calls)
	}
	if !containsWarning(rc.Warnings(), model.RigWarningBuildCacheHit) {
		t.Fatalf("cache hit warning expected: got=%v", rc.Warnings())
	}

	failure := errors.New("boom")
	_, err = uc.buildZone(rc, ZONE_NECK, model.SIDE_NONE, func() (*ZoneBuild, error) { return nil, failure })
	if !errors.Is(err, failure) {
		t.Fatalf("build error must be wrapped: got=%v", err)
	}
	if _, ok := rc.Cache.Get(BuildKey{Character: testCharacter, ZoneFunction: ZONE_NECK}); ok {
		t.Fatalf("failed build must not be cached")
	}
}

func containsWarning(warnings []string, id string) bool {
	for _, warning := range warnings {
		if warning == id {
			return true
		}
	}
	return false
}
