// 指示: miu200521358
package minteractor

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// StretchRig はチェーンの伸縮と体積維持の構築結果を表す。
type StretchRig struct {
	// Start は伸縮距離の始点ロケータ。
	Start int
	// Util は ATTR_STRETCH(IK伸縮率)を持つノード。
	Util int
	// RestLengths は各ジョイントの親からの初期長さ。先頭は0。
	RestLengths []float64
	// Positions は各ジョイントのチェーン上の正規化位置(0..1)。
	Positions []float64
	RestTotal float64
	// SnapToPole は中間ジョイントをポールへ吸着できる場合に真。
	SnapToPole bool

	chain      *KinematicChain
	scale      dataflow.Source
	taperFloor float64
}

// 伸縮まわりの式。グラフ上の演算子と下の関数は同じ式を評価する。
const (
	// ikStretchFormula は始点からIKハンドルまでの距離をルートスケールで割り、初期長との比を1以上で返す。
	ikStretchFormula = "max(1, distance / scale / rest)"
	// volumeFormula はIK/FKの伸縮率を補間し、位置 t の断面スケールを返す。
	volumeFormula = "1 / (1 + (lerp(fk, ik, blend) - 1) * taper(t, floor))"
	// twistStretchFormula は区間終点の伸び量を j 番目の捩りジョイントの位置へ按分する。
	twistStretchFormula = "rest + (end - restEnd) / count * j"
)

// evaluateFormula は定数入力で式を評価する。
func evaluateFormula(formula string, values map[string]float64) (float64, error) {
	vars := make(map[string]dataflow.Source, len(values))
	for name, v := range values {
		vars[name] = dataflow.ConstSource{V: v}
	}
	op, err := dataflow.NewExpressionOperator(formula, formula, vars, nil)
	if err != nil {
		return 0, err
	}
	return op.Value(nil)
}

// IkStretchFactor は実距離・ルートスケール・初期長からIK伸縮率を返す。1未満には縮まない。
func IkStretchFactor(live float64, rootScale float64, rest float64) float64 {
	if rootScale <= mmath.EPSILON || rest <= mmath.EPSILON {
		return 1
	}
	v, err := evaluateFormula(ikStretchFormula, map[string]float64{"distance": live, "scale": rootScale, "rest": rest})
	if err != nil {
		return 1
	}
	return v
}

// VolumeScale は伸縮率 stretch に対する正規化位置 t の断面スケールを返す。
func VolumeScale(stretch float64, t float64, floor float64) float64 {
	v, err := evaluateFormula(volumeFormula, map[string]float64{
		"ik": stretch, "fk": stretch, "blend": 1, "t": t, "floor": floor,
	})
	if err != nil || v <= 0 {
		return 1
	}
	return v
}

// TwistStretchPosition は区間終点の長さが restEnd から end へ伸びたときの、n個中 j 番目の捩りジョイントの位置を返す。
func TwistStretchPosition(rest float64, end float64, restEnd float64, j int, n int) float64 {
	if n < 2 {
		return rest
	}
	v, err := evaluateFormula(twistStretchFormula, map[string]float64{
		"rest": rest, "end": end, "restEnd": restEnd, "count": float64(n - 1), "j": float64(j),
	})
	if err != nil {
		return rest
	}
	return v
}

// StretchVolumePreserver はIK/FKの伸縮属性と体積維持を接続する。
type StretchVolumePreserver struct {
	FkMin      float64
	FkMax      float64
	TaperFloor float64
}

// NewStretchVolumePreserver は調整値からStretchVolumePreserverを生成する。
func NewStretchVolumePreserver(settings RigSettings) *StretchVolumePreserver {
	fkMin, fkMax := settings.FkStretchMin, settings.FkStretchMax
	if fkMin <= 0 || fkMax <= fkMin {
		fkMin, fkMax = model.FK_STRETCH_MIN, model.FK_STRETCH_MAX
	}
	return &StretchVolumePreserver{FkMin: fkMin, FkMax: fkMax, TaperFloor: settings.TaperFloor}
}

// Apply はチェーンに伸縮を接続する。メインの位置はブレンドで合成されている前提。
func (p *StretchVolumePreserver) Apply(rc *RigContext, chain *KinematicChain) (*StretchRig, error) {
	scene := rc.Scene
	n := len(chain.Ik)
	rig := &StretchRig{
		RestLengths: make([]float64, n),
		Positions:   make([]float64, n),
		chain:       chain,
		scale:       dataflow.ConstSource{V: 1},
		taperFloor:  p.TaperFloor,
	}
	if rc.RootControl >= 0 {
		rig.scale = dataflow.WorldScaleSource{Node: rc.RootControl}
	}
	for i := 1; i < n; i++ {
		rig.RestLengths[i] = scene.MustGet(chain.Ik[i]).Translation.X
		rig.RestTotal += rig.RestLengths[i]
	}
	if rig.RestTotal <= mmath.EPSILON {
		return nil, fmt.Errorf("伸縮の初期長が0です: zone=%s side=%s", chain.Zone, chain.Side)
	}
	run := 0.0
	for i := 1; i < n; i++ {
		run += rig.RestLengths[i]
		rig.Positions[i] = run / rig.RestTotal
	}
	_, rig.SnapToPole = scene.MustGet(chain.Switch).Attribute(model.ATTR_SNAP_TO_POLE)

	if err := p.connectIk(rc, rig); err != nil {
		return nil, err
	}
	if err := p.connectFk(rc, rig); err != nil {
		return nil, err
	}
	for i := range chain.Main {
		label := scene.MustGet(chain.Main[i]).Name + "_volume"
		sink := dataflow.ScaleAxesSink{Node: chain.Main[i], Axes: []dataflow.Axis{dataflow.AXIS_Y, dataflow.AXIS_Z}}
		if err := rig.connectVolume(rc, label, rig.Positions[i], i, sink); err != nil {
			return nil, err
		}
	}
	logRigDebug("伸縮接続: zone=%s side=%s rest=%.4f snapToPole=%t", chain.Zone, chain.Side, rig.RestTotal, rig.SnapToPole)
	return rig, nil
}

// connectIk は始点からIKハンドルまでの距離で伸縮率を求め、IKジョイントの長さへ反映する。
func (p *StretchVolumePreserver) connectIk(rc *RigContext, rig *StretchRig) error {
	scene := rc.Scene
	chain := rig.chain
	var err error
	rig.Start, err = rc.AddNodeAt(rc.Name(chain.Zone, chain.Side, "stretchStart", model.CHAIN_TYPE_LOC), model.NODE_KIND_LOCATOR,
		chain.Parent, scene.WorldPosition(chain.Ik[0]), mmath.IdentityQuaternion())
	if err != nil {
		return err
	}
	rig.Util, err = rc.AddNode(rc.Name(chain.Zone, chain.Side, "stretch", model.CHAIN_TYPE_UTIL), model.NODE_KIND_UTILITY, -1)
	if err != nil {
		return err
	}
	scene.MustGet(rig.Util).AddAttribute(model.NewFloatAttribute(model.ATTR_STRETCH, 1)).Keyable = false

	factor, err := dataflow.NewExpressionOperator(scene.MustGet(rig.Util).Name, ikStretchFormula,
		map[string]dataflow.Source{
			"distance": dataflow.DistanceSource{A: rig.Start, B: chain.IkHandle},
			"scale":    rig.scale,
			"rest":     dataflow.ConstSource{V: rig.RestTotal},
		}, dataflow.AttrSink{Node: rig.Util, Attr: model.ATTR_STRETCH})
	if err != nil {
		return err
	}
	if err := rc.Connect(factor); err != nil {
		return err
	}

	stretch := dataflow.AttrSource{Node: rig.Util, Attr: model.ATTR_STRETCH}
	for i := 1; i < len(chain.Ik); i++ {
		formula := "rest * stretch"
		vars := map[string]dataflow.Source{
			"rest":    dataflow.ConstSource{V: rig.RestLengths[i]},
			"stretch": stretch,
		}
		if rig.SnapToPole {
			// 中間ジョイントをポールへ吸着したときの長さ
			formula = "lerp(rest * stretch, pinned / scale, snap)"
			vars["scale"] = rig.scale
			vars["snap"] = dataflow.AttrSource{Node: chain.Switch, Attr: model.ATTR_SNAP_TO_POLE}
			if i == 1 {
				vars["pinned"] = dataflow.DistanceSource{A: rig.Start, B: chain.Pole}
			} else {
				vars["pinned"] = dataflow.DistanceSource{A: chain.Pole, B: chain.IkHandle}
			}
		}
		op, err := dataflow.NewExpressionOperator(scene.MustGet(chain.Ik[i]).Name+"_stretch", formula, vars,
			dataflow.TranslateAxisSink{Node: chain.Ik[i], Axis: dataflow.AXIS_X})
		if err != nil {
			return err
		}
		if err := rc.Connect(op); err != nil {
			return err
		}
	}
	return nil
}

// connectFk は各FKコントロールに伸縮属性を追加し、子のFKコントロールの長さへ反映する。
func (p *StretchVolumePreserver) connectFk(rc *RigContext, rig *StretchRig) error {
	scene := rc.Scene
	chain := rig.chain
	for i := 0; i+1 < len(chain.Fk); i++ {
		scene.MustGet(chain.Fk[i]).AddAttribute(model.NewRangeAttribute(model.ATTR_FK_STRETCH, 1, p.FkMin, p.FkMax))
		op, err := dataflow.NewExpressionOperator(scene.MustGet(chain.Fk[i+1]).Name+"_stretch", "rest * stretch",
			map[string]dataflow.Source{
				"rest":    dataflow.ConstSource{V: rig.RestLengths[i+1]},
				"stretch": dataflow.AttrSource{Node: chain.Fk[i], Attr: model.ATTR_FK_STRETCH},
			}, dataflow.TranslateAxisSink{Node: chain.Fk[i+1], Axis: dataflow.AXIS_X})
		if err != nil {
			return err
		}
		if err := rc.Connect(op); err != nil {
			return err
		}
	}
	return nil
}

// fkStretchSource は区間 segment のFK伸縮率を返す。末端は伸縮しない。
func (r *StretchRig) fkStretchSource(segment int) dataflow.Source {
	if segment+1 >= len(r.chain.Fk) {
		return dataflow.ConstSource{V: 1}
	}
	return dataflow.AttrSource{Node: r.chain.Fk[segment], Attr: model.ATTR_FK_STRETCH}
}

// connectVolume は区間 segment の伸縮率(IK/FKをikFkで補間)から位置 t の体積スケールを sink へ書き込む。
func (r *StretchRig) connectVolume(rc *RigContext, label string, t float64, segment int, sink dataflow.Sink) error {
	op, err := dataflow.NewExpressionOperator(label, volumeFormula,
		map[string]dataflow.Source{
			"ik":    dataflow.AttrSource{Node: r.Util, Attr: model.ATTR_STRETCH},
			"fk":    r.fkStretchSource(segment),
			"blend": r.chain.IkWeight(),
			"t":     dataflow.ConstSource{V: t},
			"floor": dataflow.ConstSource{V: r.taperFloor},
		}, sink)
	if err != nil {
		return err
	}
	return rc.Connect(op)
}

// PositionAt は区間 segment 内の割合 ratio をチェーン全体の正規化位置へ変換する。
func (r *StretchRig) PositionAt(segment int, ratio float64) float64 {
	if segment+1 >= len(r.Positions) {
		return 1
	}
	return r.Positions[segment] + (r.Positions[segment+1]-r.Positions[segment])*ratio
}
