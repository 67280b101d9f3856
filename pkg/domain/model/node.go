// 指示: miu200521358
package model

import (
	"fmt"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/tiendc/go-deepcopy"
)

// NodeKind はシーンノードの種別を表す。
type NodeKind int

const (
	NODE_KIND_JOINT NodeKind = iota
	NODE_KIND_CONTROL
	NODE_KIND_DRIVER
	NODE_KIND_LOCATOR
	NODE_KIND_GROUP
	NODE_KIND_CURVE
	NODE_KIND_IK_HANDLE
	NODE_KIND_UTILITY
)

// String は種別名を返す。
func (k NodeKind) String() string {
	switch k {
	case NODE_KIND_JOINT:
		return "joint"
	case NODE_KIND_CONTROL:
		return "control"
	case NODE_KIND_DRIVER:
		return "driver"
	case NODE_KIND_LOCATOR:
		return "locator"
	case NODE_KIND_GROUP:
		return "group"
	case NODE_KIND_CURVE:
		return "curve"
	case NODE_KIND_IK_HANDLE:
		return "ikHandle"
	case NODE_KIND_UTILITY:
		return "utility"
	default:
		return "unknown"
	}
}

// IsTransform はTRSを持つ種別か判定する。
func (k NodeKind) IsTransform() bool {
	return k != NODE_KIND_UTILITY
}

// ChannelMask はチャンネルのロック/非表示マスクを表す。
type ChannelMask uint16

const (
	CHANNEL_TRANSLATE_X ChannelMask = 1 << iota
	CHANNEL_TRANSLATE_Y
	CHANNEL_TRANSLATE_Z
	CHANNEL_ROTATE_X
	CHANNEL_ROTATE_Y
	CHANNEL_ROTATE_Z
	CHANNEL_SCALE_X
	CHANNEL_SCALE_Y
	CHANNEL_SCALE_Z
	CHANNEL_VISIBILITY
)

const (
	CHANNEL_NONE      ChannelMask = 0
	CHANNEL_TRANSLATE             = CHANNEL_TRANSLATE_X | CHANNEL_TRANSLATE_Y | CHANNEL_TRANSLATE_Z
	CHANNEL_ROTATE                = CHANNEL_ROTATE_X | CHANNEL_ROTATE_Y | CHANNEL_ROTATE_Z
	CHANNEL_SCALE                 = CHANNEL_SCALE_X | CHANNEL_SCALE_Y | CHANNEL_SCALE_Z
	CHANNEL_ALL                   = CHANNEL_TRANSLATE | CHANNEL_ROTATE | CHANNEL_SCALE | CHANNEL_VISIBILITY
)

// Has は指定チャンネルを全て含むか判定する。
func (m ChannelMask) Has(channels ChannelMask) bool {
	return m&channels == channels
}

// Node はシーン上のノード(ジョイント/コントロール/ドライバ等)を表す。
type Node struct {
	index       int
	Name        string
	Kind        NodeKind
	ParentIndex int
	Translation mmath.Vec3
	Rotation    mmath.Quaternion
	Scale       mmath.Vec3
	Attributes  map[string]*Attribute
	LockMask    ChannelMask
	HideMask    ChannelMask
	ColorIndex  int
	Shape       *ControlShape
	Curve       *SplineCurve
	Links       map[string][]int
}

// NewNode は名前と種別からノードを生成する。
func NewNode(name string, kind NodeKind) *Node {
	return &Node{
		index:       -1,
		Name:        name,
		Kind:        kind,
		ParentIndex: -1,
		Translation: mmath.ZERO_VEC3,
		Rotation:    mmath.IdentityQuaternion(),
		Scale:       mmath.ONE_VEC3,
		Attributes:  map[string]*Attribute{},
		Links:       map[string][]int{},
	}
}

// Index はシーン上のindexを返す。
func (n *Node) Index() int {
	return n.index
}

// LocalTransform はローカル変換を返す。
func (n *Node) LocalTransform() mmath.Transform {
	return mmath.Transform{Position: n.Translation, Rotation: n.Rotation.Normalized(), Scale: n.Scale}
}

// SetLocalTransform はローカル変換を設定する。
func (n *Node) SetLocalTransform(t mmath.Transform) {
	n.Translation = t.Position
	n.Rotation = t.Rotation.Normalized()
	n.Scale = t.Scale
}

// ResetTransform はローカル変換を初期値へ戻す。
func (n *Node) ResetTransform() {
	n.SetLocalTransform(mmath.IdentityTransform())
}

// AddAttribute は属性を追加する。同名属性がある場合は既存を返す。
func (n *Node) AddAttribute(attr *Attribute) *Attribute {
	if existing, ok := n.Attributes[attr.Name]; ok {
		return existing
	}
	n.Attributes[attr.Name] = attr
	return attr
}

// Attribute は属性を返す。
func (n *Node) Attribute(name string) (*Attribute, bool) {
	attr, ok := n.Attributes[name]
	return attr, ok
}

// AttributeValue は属性値を返す。未定義の場合は fallback を返す。
func (n *Node) AttributeValue(name string, fallback float64) float64 {
	if attr, ok := n.Attributes[name]; ok {
		return attr.Value
	}
	return fallback
}

// AttributeNames は属性名を名前順で返す。
func (n *Node) AttributeNames() []string {
	names := make([]string, 0, len(n.Attributes))
	for name := range n.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Link はメッセージ接続を追加する。
func (n *Node) Link(name string, targets ...int) {
	n.Links[name] = append(n.Links[name], targets...)
}

// Linked はメッセージ接続先を返す。
func (n *Node) Linked(name string) []int {
	return n.Links[name]
}

// LinkedOne は単一のメッセージ接続先を返す。
func (n *Node) LinkedOne(name string) (int, bool) {
	targets := n.Links[name]
	if len(targets) != 1 {
		return -1, false
	}
	return targets[0], true
}

// Copy は属性・マスク・形状を含めて複製する。シーン上のindexと親は引き継がない。
func (n *Node) Copy() (*Node, error) {
	copied := &Node{}
	if err := deepcopy.Copy(copied, n); err != nil {
		return nil, fmt.Errorf("ノード複製に失敗しました: %s: %w", n.Name, err)
	}
	copied.index = -1
	copied.ParentIndex = -1
	// Quaternion は非公開フィールドのため値で引き継ぐ
	copied.Rotation = n.Rotation
	if copied.Attributes == nil {
		copied.Attributes = map[string]*Attribute{}
	}
	copied.Links = map[string][]int{}
	return copied, nil
}
