// 指示: miu200521358
package dataflow

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// Source はオペレーターが読むスカラー値を表す。
type Source interface {
	Plugs(scene *model.Scene) []Plug
	Value(scene *model.Scene) float64
	Describe(scene *model.Scene) string
}

// Sink はオペレーターが書くスカラー値の書き込み先を表す。
type Sink interface {
	Plugs() []Plug
	Write(scene *model.Scene, value float64)
	Describe(scene *model.Scene) string
}

// ConstSource は定数値を表す。
type ConstSource struct {
	V float64
}

func (s ConstSource) Plugs(*model.Scene) []Plug    { return nil }
func (s ConstSource) Value(*model.Scene) float64   { return s.V }
func (s ConstSource) Describe(*model.Scene) string { return fmt.Sprintf("%g", s.V) }

// AttrSource はノード属性値を表す。
type AttrSource struct {
	Node int
	Attr string
}

func (s AttrSource) Plugs(*model.Scene) []Plug { return []Plug{AttrPlug(s.Node, s.Attr)} }

func (s AttrSource) Value(scene *model.Scene) float64 {
	node, err := scene.Get(s.Node)
	if err != nil {
		return 0
	}
	return node.AttributeValue(s.Attr, 0)
}

func (s AttrSource) Describe(scene *model.Scene) string {
	return AttrPlug(s.Node, s.Attr).Describe(scene)
}

// DistanceSource は2ノード間のワールド距離を表す。
type DistanceSource struct {
	A int
	B int
}

func (s DistanceSource) Plugs(*model.Scene) []Plug { return []Plug{WorldPlug(s.A), WorldPlug(s.B)} }

func (s DistanceSource) Value(scene *model.Scene) float64 {
	return scene.WorldPosition(s.A).Distance(scene.WorldPosition(s.B))
}

func (s DistanceSource) Describe(scene *model.Scene) string {
	return fmt.Sprintf("distance(%s, %s)", WorldPlug(s.A).Describe(scene), WorldPlug(s.B).Describe(scene))
}

// WorldScaleSource はノードの一様ワールドスケールを表す。
type WorldScaleSource struct {
	Node int
}

func (s WorldScaleSource) Plugs(*model.Scene) []Plug { return []Plug{WorldPlug(s.Node)} }

func (s WorldScaleSource) Value(scene *model.Scene) float64 {
	return scene.WorldTransform(s.Node).UniformScale()
}

func (s WorldScaleSource) Describe(scene *model.Scene) string {
	return fmt.Sprintf("worldScale(%s)", WorldPlug(s.Node).Describe(scene))
}

// TranslateAxisSource はローカル位置の軸成分を表す。
type TranslateAxisSource struct {
	Node int
	Axis Axis
}

func (s TranslateAxisSource) Plugs(*model.Scene) []Plug { return []Plug{TranslatePlug(s.Node)} }

func (s TranslateAxisSource) Value(scene *model.Scene) float64 {
	node, err := scene.Get(s.Node)
	if err != nil {
		return 0
	}
	return s.Axis.Component(node.Translation)
}

func (s TranslateAxisSource) Describe(scene *model.Scene) string {
	return TranslatePlug(s.Node).Describe(scene) + s.Axis.String()
}

// AttrSink はノード属性への書き込みを表す。
type AttrSink struct {
	Node int
	Attr string
}

func (s AttrSink) Plugs() []Plug { return []Plug{AttrPlug(s.Node, s.Attr)} }

func (s AttrSink) Write(scene *model.Scene, value float64) {
	node, err := scene.Get(s.Node)
	if err != nil {
		return
	}
	if attr, ok := node.Attribute(s.Attr); ok {
		attr.Set(value)
		return
	}
	node.AddAttribute(model.NewFloatAttribute(s.Attr, value)).Keyable = false
}

func (s AttrSink) Describe(scene *model.Scene) string {
	return AttrPlug(s.Node, s.Attr).Describe(scene)
}

// TranslateAxisSink はローカル位置の軸成分への書き込みを表す。
type TranslateAxisSink struct {
	Node int
	Axis Axis
}

func (s TranslateAxisSink) Plugs() []Plug { return []Plug{TranslatePlug(s.Node)} }

func (s TranslateAxisSink) Write(scene *model.Scene, value float64) {
	node, err := scene.Get(s.Node)
	if err != nil {
		return
	}
	node.Translation = s.Axis.WithComponent(node.Translation, value)
}

func (s TranslateAxisSink) Describe(scene *model.Scene) string {
	return TranslatePlug(s.Node).Describe(scene) + s.Axis.String()
}

// ScaleAxesSink はローカルスケールの複数軸への同値書き込みを表す。
type ScaleAxesSink struct {
	Node int
	Axes []Axis
}

func (s ScaleAxesSink) Plugs() []Plug { return []Plug{ScalePlug(s.Node)} }

func (s ScaleAxesSink) Write(scene *model.Scene, value float64) {
	node, err := scene.Get(s.Node)
	if err != nil {
		return
	}
	for _, axis := range s.Axes {
		node.Scale = axis.WithComponent(node.Scale, value)
	}
}

func (s ScaleAxesSink) Describe(scene *model.Scene) string {
	return ScalePlug(s.Node).Describe(scene)
}

// RotateAxisSink はローカル回転を軸周りの角度(ラジアン)として書き込む。
type RotateAxisSink struct {
	Node int
	Axis Axis
}

func (s RotateAxisSink) Plugs() []Plug { return []Plug{RotatePlug(s.Node)} }

func (s RotateAxisSink) Write(scene *model.Scene, value float64) {
	node, err := scene.Get(s.Node)
	if err != nil {
		return
	}
	node.Rotation = mmath.NewQuaternionFromAxisAngle(s.Axis.Vector(), value)
}

func (s RotateAxisSink) Describe(scene *model.Scene) string {
	return RotatePlug(s.Node).Describe(scene) + s.Axis.String()
}
