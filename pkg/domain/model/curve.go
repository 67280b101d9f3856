// 指示: miu200521358
package model

import (
	"fmt"
	"math"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

const (
	curveClosestSampleCount   = 128
	curveClosestRefineSteps   = 48
	curveArcLengthSampleCount = 256
)

// SplineCurve は端点クランプの一様Bスプライン曲線を表す。パラメータ範囲は 0..1。
type SplineCurve struct {
	CVs    []mmath.Vec3
	Degree int
	Knots  []float64
}

// NewClampedSplineCurve はCV列と次数からクランプ一様ノットの曲線を生成する。
func NewClampedSplineCurve(cvs []mmath.Vec3, degree int) (*SplineCurve, error) {
	if degree < 1 {
		return nil, fmt.Errorf("曲線次数が不正です: %d", degree)
	}
	if len(cvs) < degree+1 {
		return nil, fmt.Errorf("CV数が次数に対して不足しています: cvs=%d degree=%d", len(cvs), degree)
	}
	spans := len(cvs) - degree
	knots := make([]float64, 0, len(cvs)+degree+1)
	for i := 0; i <= degree; i++ {
		knots = append(knots, 0)
	}
	for i := 1; i < spans; i++ {
		knots = append(knots, float64(i)/float64(spans))
	}
	for i := 0; i <= degree; i++ {
		knots = append(knots, 1)
	}
	return &SplineCurve{
		CVs:    append([]mmath.Vec3(nil), cvs...),
		Degree: degree,
		Knots:  knots,
	}, nil
}

// Spans はスパン数を返す。
func (c *SplineCurve) Spans() int {
	return len(c.CVs) - c.Degree
}

// GrevilleParameters は各CVのグレヴィル横座標を返す。
func (c *SplineCurve) GrevilleParameters() []float64 {
	params := make([]float64, len(c.CVs))
	for i := range c.CVs {
		sum := 0.0
		for k := 1; k <= c.Degree; k++ {
			sum += c.Knots[i+k]
		}
		params[i] = sum / float64(c.Degree)
	}
	return params
}

// Point はパラメータ u の曲線上の点を返す(de Boor)。
func (c *SplineCurve) Point(u float64) mmath.Vec3 {
	u = mmath.Clamped(u, 0, 1)
	p := c.Degree
	k := c.findSpan(u)
	d := make([]mmath.Vec3, p+1)
	for j := 0; j <= p; j++ {
		d[j] = c.CVs[j+k-p]
	}
	for r := 1; r <= p; r++ {
		for j := p; j >= r; j-- {
			denominator := c.Knots[j+1+k-r] - c.Knots[j+k-p]
			alpha := 0.0
			if denominator > 0 {
				alpha = (u - c.Knots[j+k-p]) / denominator
			}
			d[j] = d[j-1].Lerp(d[j], alpha)
		}
	}
	return d[p]
}

func (c *SplineCurve) findSpan(u float64) int {
	last := len(c.CVs) - 1
	for k := c.Degree; k < last; k++ {
		if u < c.Knots[k+1] {
			return k
		}
	}
	return last
}

// ClosestParameter は点 p に最も近い曲線上のパラメータを返す。
func (c *SplineCurve) ClosestParameter(p mmath.Vec3) float64 {
	distances := make([]float64, curveClosestSampleCount+1)
	for i := range distances {
		distances[i] = c.Point(float64(i) / curveClosestSampleCount).Distance(p)
	}
	best := floats.MinIdx(distances)

	// 最近サンプル前後の区間を黄金分割探索で詰める
	lo := math.Max(0, float64(best-1)/curveClosestSampleCount)
	hi := math.Min(1, float64(best+1)/curveClosestSampleCount)
	ratio := (math.Sqrt(5) - 1) / 2
	a := hi - ratio*(hi-lo)
	b := lo + ratio*(hi-lo)
	fa := c.Point(a).Distance(p)
	fb := c.Point(b).Distance(p)
	for i := 0; i < curveClosestRefineSteps; i++ {
		if fa < fb {
			hi, b, fb = b, a, fa
			a = hi - ratio*(hi-lo)
			fa = c.Point(a).Distance(p)
		} else {
			lo, a, fa = a, b, fb
			b = lo + ratio*(hi-lo)
			fb = c.Point(b).Distance(p)
		}
	}
	u := (lo + hi) / 2
	if c.Point(u).Distance(p) > distances[best] {
		return float64(best) / curveClosestSampleCount
	}
	return u
}

// DistanceTo は点 p と曲線の最短距離を返す。
func (c *SplineCurve) DistanceTo(p mmath.Vec3) float64 {
	return c.Point(c.ClosestParameter(p)).Distance(p)
}

// ArcLength は 0..u 区間の弧長を返す。
func (c *SplineCurve) ArcLength(u float64) float64 {
	u = mmath.Clamped(u, 0, 1)
	if u <= 0 {
		return 0
	}
	xs := make([]float64, curveArcLengthSampleCount+1)
	speeds := make([]float64, curveArcLengthSampleCount+1)
	h := u / curveArcLengthSampleCount
	for i := range xs {
		x := h * float64(i)
		xs[i] = x
		speeds[i] = c.speed(x, h/2)
	}
	return integrate.Trapezoidal(xs, speeds)
}

// NormalizedArcLength は全長に対する 0..u 区間の弧長比を返す。
func (c *SplineCurve) NormalizedArcLength(u float64) float64 {
	total := c.ArcLength(1)
	if total <= mmath.EPSILON {
		return 0
	}
	return c.ArcLength(u) / total
}

func (c *SplineCurve) speed(u float64, h float64) float64 {
	lo := math.Max(0, u-h)
	hi := math.Min(1, u+h)
	if hi-lo <= 0 {
		return 0
	}
	return c.Point(hi).Distance(c.Point(lo)) / (hi - lo)
}

// Copy は曲線を複製する。
func (c *SplineCurve) Copy() *SplineCurve {
	return &SplineCurve{
		CVs:    append([]mmath.Vec3(nil), c.CVs...),
		Degree: c.Degree,
		Knots:  append([]float64(nil), c.Knots...),
	}
}
