// 指示: miu200521358
package dataflow

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// TwistTrackOperator は区間始点から見た終点のX軸周り捩りを追跡し、その半分を属性へ書き込む。
// 前回値に連続するよう 2π 単位で補正するため、±180° 付近で反転しない。
type TwistTrackOperator struct {
	Label    string
	Start    int
	End      int
	Sink     Sink
	rest     float64
	previous float64
}

// NewTwistTrackOperator は現在の捩りを0として追跡演算を生成する。
func NewTwistTrackOperator(scene *model.Scene, label string, start int, end int, sink Sink) *TwistTrackOperator {
	op := &TwistTrackOperator{Label: label, Start: start, End: end, Sink: sink}
	op.rest = op.rawTwist(scene)
	return op
}

func (o *TwistTrackOperator) Name() string { return o.Label }

func (o *TwistTrackOperator) Kind() string { return "twistTrack" }

func (o *TwistTrackOperator) Inputs() []Plug { return []Plug{WorldPlug(o.Start), WorldPlug(o.End)} }

func (o *TwistTrackOperator) Outputs() []Plug { return o.Sink.Plugs() }

func (o *TwistTrackOperator) rawTwist(scene *model.Scene) float64 {
	relative := scene.WorldRotation(o.Start).Inverted().Muled(scene.WorldRotation(o.End))
	return relative.TwistAngle(mmath.UNIT_X_VEC3)
}

// NetTwist は現在の区間全体の捩り(ラジアン、前回値に連続)を返す。状態は更新しない。
func (o *TwistTrackOperator) NetTwist(scene *model.Scene) float64 {
	return mmath.UnwrapAngle(mmath.WrapAngle(o.rawTwist(scene)-o.rest), o.previous)
}

func (o *TwistTrackOperator) Evaluate(scene *model.Scene) error {
	net := o.NetTwist(scene)
	o.previous = net
	o.Sink.Write(scene, net/2)
	return nil
}

// TwistScaleOperator は区間終点ジョイントのスケールを捩りジョイントへ一方向に伝える。
// UseVolume が真の場合、YZは体積属性で置き換える。
type TwistScaleOperator struct {
	Label     string
	Source    int
	Driven    int
	UseVolume bool
}

func (o *TwistScaleOperator) Name() string { return o.Label }

func (o *TwistScaleOperator) Kind() string { return "twistScale" }

func (o *TwistScaleOperator) Inputs() []Plug {
	inputs := []Plug{ScalePlug(o.Source)}
	if o.UseVolume {
		inputs = append(inputs, AttrPlug(o.Driven, model.ATTR_VOLUME))
	}
	return inputs
}

func (o *TwistScaleOperator) Outputs() []Plug { return []Plug{ScalePlug(o.Driven)} }

func (o *TwistScaleOperator) Evaluate(scene *model.Scene) error {
	source := scene.MustGet(o.Source)
	driven := scene.MustGet(o.Driven)
	scale := source.Scale
	if o.UseVolume {
		volume := driven.AttributeValue(model.ATTR_VOLUME, 1)
		scale = mmath.NewVec3(source.Scale.X, volume, volume)
	}
	driven.Scale = scale
	return nil
}
