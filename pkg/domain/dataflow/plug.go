// 指示: miu200521358
// Package dataflow はリグの毎フレーム評価グラフ(オペレーターのDAG)を提供する。
package dataflow

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// Channel はプラグが指すノードのチャンネルを表す。
type Channel int

const (
	CHANNEL_TRANSLATE Channel = iota
	CHANNEL_ROTATE
	CHANNEL_SCALE
	CHANNEL_WORLD
	CHANNEL_SHAPE
	CHANNEL_ATTR
)

// String はチャンネル名を返す。
func (c Channel) String() string {
	switch c {
	case CHANNEL_TRANSLATE:
		return "translate"
	case CHANNEL_ROTATE:
		return "rotate"
	case CHANNEL_SCALE:
		return "scale"
	case CHANNEL_WORLD:
		return "worldMatrix"
	case CHANNEL_SHAPE:
		return "shape"
	default:
		return "attr"
	}
}

// Plug はノードの1チャンネル(または属性)を表す。
type Plug struct {
	Node    int
	Channel Channel
	Attr    string
}

// TranslatePlug はローカル位置プラグを返す。
func TranslatePlug(node int) Plug { return Plug{Node: node, Channel: CHANNEL_TRANSLATE} }

// RotatePlug はローカル回転プラグを返す。
func RotatePlug(node int) Plug { return Plug{Node: node, Channel: CHANNEL_ROTATE} }

// ScalePlug はローカルスケールプラグを返す。
func ScalePlug(node int) Plug { return Plug{Node: node, Channel: CHANNEL_SCALE} }

// WorldPlug はワールド行列プラグを返す。
func WorldPlug(node int) Plug { return Plug{Node: node, Channel: CHANNEL_WORLD} }

// ShapePlug は形状(曲線CV)プラグを返す。
func ShapePlug(node int) Plug { return Plug{Node: node, Channel: CHANNEL_SHAPE} }

// AttrPlug は属性プラグを返す。
func AttrPlug(node int, attr string) Plug { return Plug{Node: node, Channel: CHANNEL_ATTR, Attr: attr} }

// Describe はシーン上の名前でプラグを表示する。
func (p Plug) Describe(scene *model.Scene) string {
	name := fmt.Sprintf("#%d", p.Node)
	if scene != nil {
		if node, err := scene.Get(p.Node); err == nil {
			name = node.Name
		}
	}
	if p.Channel == CHANNEL_ATTR {
		return name + "." + p.Attr
	}
	return name + "." + p.Channel.String()
}

// parentWorldPlugs は親のワールドプラグを返す。ルートの場合は空。
func parentWorldPlugs(scene *model.Scene, node int) []Plug {
	n, err := scene.Get(node)
	if err != nil || n.ParentIndex < 0 {
		return nil
	}
	return []Plug{WorldPlug(n.ParentIndex)}
}

// Axis はローカル軸を表す。
type Axis int

const (
	AXIS_X Axis = iota
	AXIS_Y
	AXIS_Z
)

// Vector は軸の単位ベクトルを返す。
func (a Axis) Vector() mmath.Vec3 {
	switch a {
	case AXIS_Y:
		return mmath.UNIT_Y_VEC3
	case AXIS_Z:
		return mmath.UNIT_Z_VEC3
	default:
		return mmath.UNIT_X_VEC3
	}
}

// Component はベクトルの軸成分を返す。
func (a Axis) Component(v mmath.Vec3) float64 {
	switch a {
	case AXIS_Y:
		return v.Y
	case AXIS_Z:
		return v.Z
	default:
		return v.X
	}
}

// WithComponent は軸成分を差し替えたベクトルを返す。
func (a Axis) WithComponent(v mmath.Vec3, value float64) mmath.Vec3 {
	switch a {
	case AXIS_Y:
		v.Y = value
	case AXIS_Z:
		v.Z = value
	default:
		v.X = value
	}
	return v
}

// String は軸名を返す。
func (a Axis) String() string {
	switch a {
	case AXIS_Y:
		return "Y"
	case AXIS_Z:
		return "Z"
	default:
		return "X"
	}
}
