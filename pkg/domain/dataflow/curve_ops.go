// 指示: miu200521358
package dataflow

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// CvDriverOperator はドライバのワールド位置を曲線のCVへ一方向に書き込む。
// 曲線ノードは無変換(ワールド原点)に置く前提で、CVはワールド座標で保持する。
type CvDriverOperator struct {
	Label   string
	Curve   int
	Drivers []int
	scene   *model.Scene
}

// NewCvDriverOperator はCV数とドライバ数が一致するか検証して生成する。
func NewCvDriverOperator(scene *model.Scene, label string, curve int, drivers []int) (*CvDriverOperator, error) {
	node, err := scene.Get(curve)
	if err != nil {
		return nil, err
	}
	if node.Curve == nil {
		return nil, fmt.Errorf("曲線ノードではありません: %s", node.Name)
	}
	if len(node.Curve.CVs) != len(drivers) {
		return nil, fmt.Errorf("CV数とドライバ数が一致しません: %s cvs=%d drivers=%d", node.Name, len(node.Curve.CVs), len(drivers))
	}
	return &CvDriverOperator{Label: label, Curve: curve, Drivers: drivers, scene: scene}, nil
}

func (o *CvDriverOperator) Name() string { return o.Label }

func (o *CvDriverOperator) Kind() string { return "cvDriver" }

func (o *CvDriverOperator) Inputs() []Plug {
	inputs := make([]Plug, 0)
	for _, driver := range o.Drivers {
		inputs = append(inputs, positionPlugs(o.scene, driver)...)
	}
	return inputs
}

func (o *CvDriverOperator) Outputs() []Plug { return []Plug{ShapePlug(o.Curve)} }

func (o *CvDriverOperator) Evaluate(scene *model.Scene) error {
	curve := scene.MustGet(o.Curve).Curve
	for i, driver := range o.Drivers {
		curve.CVs[i] = scene.WorldPosition(driver)
	}
	return nil
}

// PointOnCurveOperator は固定パラメータの曲線上の点へ被拘束ノードを移動する。
type PointOnCurveOperator struct {
	Label     string
	Curve     int
	Parameter float64
	Driven    int
	scene     *model.Scene
}

// NewPointOnCurveOperator は曲線上の点拘束を生成する。
func NewPointOnCurveOperator(scene *model.Scene, label string, curve int, parameter float64, driven int) *PointOnCurveOperator {
	return &PointOnCurveOperator{Label: label, Curve: curve, Parameter: parameter, Driven: driven, scene: scene}
}

func (o *PointOnCurveOperator) Name() string { return o.Label }

func (o *PointOnCurveOperator) Kind() string { return "pointOnCurve" }

func (o *PointOnCurveOperator) Inputs() []Plug {
	return append([]Plug{ShapePlug(o.Curve)}, parentWorldPlugs(o.scene, o.Driven)...)
}

func (o *PointOnCurveOperator) Outputs() []Plug { return []Plug{TranslatePlug(o.Driven)} }

func (o *PointOnCurveOperator) Evaluate(scene *model.Scene) error {
	curve := scene.MustGet(o.Curve).Curve
	scene.SetWorldPosition(o.Driven, curve.Point(o.Parameter))
	return nil
}
