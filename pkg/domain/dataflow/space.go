// 指示: miu200521358
package dataflow

import (
	"fmt"
	"math"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// SpaceSwitchOperator は列挙属性で選んだ空間ノードに被拘束ノードを追従させる。
type SpaceSwitchOperator struct {
	Label    string
	Driven   int
	Spaces   []int
	Offsets  []mmath.Transform
	Selector Source
	scene    *model.Scene
}

// NewSpaceSwitchOperator は現在の相対変換を各空間のオフセットとして保持して生成する。
func NewSpaceSwitchOperator(scene *model.Scene, label string, driven int, spaces []int, selector Source) (*SpaceSwitchOperator, error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("空間が未指定です: %s", label)
	}
	drivenWorld := scene.WorldTransform(driven)
	offsets := make([]mmath.Transform, len(spaces))
	for i, space := range spaces {
		offsets[i] = scene.WorldTransform(space).Localized(drivenWorld)
	}
	return &SpaceSwitchOperator{
		Label:    label,
		Driven:   driven,
		Spaces:   spaces,
		Offsets:  offsets,
		Selector: selector,
		scene:    scene,
	}, nil
}

func (o *SpaceSwitchOperator) Name() string { return o.Label }

func (o *SpaceSwitchOperator) Kind() string { return "spaceSwitch" }

func (o *SpaceSwitchOperator) Inputs() []Plug {
	inputs := make([]Plug, 0)
	for _, space := range o.Spaces {
		inputs = append(inputs, WorldPlug(space))
	}
	inputs = append(inputs, o.Selector.Plugs(o.scene)...)
	return append(inputs, parentWorldPlugs(o.scene, o.Driven)...)
}

func (o *SpaceSwitchOperator) Outputs() []Plug {
	return []Plug{TranslatePlug(o.Driven), RotatePlug(o.Driven)}
}

// Active は選択中の空間の添字を返す。
func (o *SpaceSwitchOperator) Active(scene *model.Scene) int {
	index := int(math.Round(o.Selector.Value(scene)))
	if index < 0 {
		return 0
	}
	if index >= len(o.Spaces) {
		return len(o.Spaces) - 1
	}
	return index
}

func (o *SpaceSwitchOperator) Evaluate(scene *model.Scene) error {
	active := o.Active(scene)
	world := scene.WorldTransform(o.Spaces[active]).Composed(o.Offsets[active])
	world.Scale = scene.WorldScale(o.Driven)
	scene.SetWorldTransform(o.Driven, world)
	return nil
}

// IsolateOperator は追従元(首など)とワールド側空間(ルート)の間で回転と位置を別々に補間する。
// 重み0で追従元に完全追従し、重み1で追従元の動きから切り離される。
type IsolateOperator struct {
	Label        string
	Driven       int
	Follow       int
	Space        int
	OrientWeight Source
	PointWeight  Source
	followOffset mmath.Transform
	spaceOffset  mmath.Transform
	scene        *model.Scene
}

// NewIsolateOperator は現在の相対変換をオフセットとして保持して生成する。
func NewIsolateOperator(scene *model.Scene, label string, driven int, follow int, space int, orientWeight Source, pointWeight Source) *IsolateOperator {
	drivenWorld := scene.WorldTransform(driven)
	return &IsolateOperator{
		Label:        label,
		Driven:       driven,
		Follow:       follow,
		Space:        space,
		OrientWeight: orientWeight,
		PointWeight:  pointWeight,
		followOffset: scene.WorldTransform(follow).Localized(drivenWorld),
		spaceOffset:  scene.WorldTransform(space).Localized(drivenWorld),
		scene:        scene,
	}
}

func (o *IsolateOperator) Name() string { return o.Label }

func (o *IsolateOperator) Kind() string { return "isolate" }

func (o *IsolateOperator) Inputs() []Plug {
	inputs := []Plug{WorldPlug(o.Follow), WorldPlug(o.Space)}
	inputs = append(inputs, o.OrientWeight.Plugs(o.scene)...)
	inputs = append(inputs, o.PointWeight.Plugs(o.scene)...)
	return append(inputs, parentWorldPlugs(o.scene, o.Driven)...)
}

func (o *IsolateOperator) Outputs() []Plug {
	return []Plug{TranslatePlug(o.Driven), RotatePlug(o.Driven)}
}

func (o *IsolateOperator) Evaluate(scene *model.Scene) error {
	follow := scene.WorldTransform(o.Follow).Composed(o.followOffset)
	isolated := scene.WorldTransform(o.Space).Composed(o.spaceOffset)
	wOrient := mmath.Clamped(o.OrientWeight.Value(scene), 0, 1)
	wPoint := mmath.Clamped(o.PointWeight.Value(scene), 0, 1)
	scene.SetWorldPosition(o.Driven, follow.Position.Lerp(isolated.Position, wPoint))
	scene.SetWorldRotation(o.Driven, follow.Rotation.Slerp(isolated.Rotation, wOrient))
	return nil
}
