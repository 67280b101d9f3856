// 指示: miu200521358
package model

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
)

func newLineCurve(t *testing.T) *SplineCurve {
	t.Helper()
	curve, err := NewClampedSplineCurve([]mmath.Vec3{
		mmath.NewVec3(0, 0, 0),
		mmath.NewVec3(1, 0, 0),
		mmath.NewVec3(2, 0, 0),
		mmath.NewVec3(3, 0, 0),
	}, 3)
	if err != nil {
		t.Fatalf("curve failed: %v", err)
	}
	return curve
}

func TestNewClampedSplineCurve(t *testing.T) {
	curve, err := NewClampedSplineCurve([]mmath.Vec3{
		mmath.NewVec3(0, 0, 0),
		mmath.NewVec3(0, 1, 0),
		mmath.NewVec3(1, 2, 0),
		mmath.NewVec3(1, 3, 0),
		mmath.NewVec3(0, 4, 0),
	}, 3)
	if err != nil {
		t.Fatalf("curve failed: %v", err)
	}
	if curve.Spans() != 2 || len(curve.Knots) != 9 || curve.Knots[4] != 0.5 {
		t.Fatalf("knots mismatch: spans=%d knots=%v", curve.Spans(), curve.Knots)
	}
	if !curve.Point(0).NearEquals(curve.CVs[0], 1e-12) || !curve.Point(1).NearEquals(curve.CVs[4], 1e-12) {
		t.Fatalf("clamped ends mismatch: start=%s end=%s", curve.Point(0), curve.Point(1))
	}

	if _, err := NewClampedSplineCurve(curve.CVs, 0); err == nil {
		t.Fatalf("degree 0 should fail")
	}
	if _, err := NewClampedSplineCurve(curve.CVs[:3], 3); err == nil {
		t.Fatalf("too few cvs should fail")
	}
}

func TestSplineCurveMeasures(t *testing.T) {
	curve := newLineCurve(t)
	if got := curve.ArcLength(1); math.Abs(got-3) > 1e-6 {
		t.Fatalf("arc length mismatch: got=%f", got)
	}
	if got := curve.NormalizedArcLength(0.5); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("normalized arc length mismatch: got=%f", got)
	}
	if got := curve.ClosestParameter(mmath.NewVec3(1.5, 1, 0)); math.Abs(got-0.5) > 1e-4 {
		t.Fatalf("closest parameter mismatch: got=%f", got)
	}
	if got := curve.DistanceTo(mmath.NewVec3(1.5, 1, 0)); math.Abs(got-1) > 1e-6 {
		t.Fatalf("distance mismatch: got=%f", got)
	}
	greville := curve.GrevilleParameters()
	for i, want := range []float64{0, 1.0 / 3, 2.0 / 3, 1} {
		if math.Abs(greville[i]-want) > 1e-12 {
			t.Fatalf("greville mismatch: got=%v", greville)
		}
	}

	copied := curve.Copy()
	copied.CVs[0] = mmath.NewVec3(9, 9, 9)
	if !curve.CVs[0].NearEquals(mmath.ZERO_VEC3, 1e-12) {
		t.Fatalf("copy must not share cvs")
	}
}
