// 指示: miu200521358
package dataflow

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// positionPlugs はノードのワールド位置が依存するプラグを返す(ローカル位置と親ワールド)。
// 自身の回転・スケールには依存しないため、位置だけを読む接続で偽の循環を作らない。
func positionPlugs(scene *model.Scene, node int) []Plug {
	return append([]Plug{TranslatePlug(node)}, parentWorldPlugs(scene, node)...)
}

// PointConstraint は複数ターゲットのワールド位置の重み付き平均へ被拘束ノードを移動する。
type PointConstraint struct {
	Label   string
	Targets []int
	Weights []Source
	Driven  int
	Offset  mmath.Vec3
	scene   *model.Scene
}

// NewPointConstraint は位置拘束を生成する。重みはターゲット数と一致しなければならない。
func NewPointConstraint(scene *model.Scene, label string, targets []int, weights []Source, driven int) (*PointConstraint, error) {
	if len(targets) == 0 || len(targets) != len(weights) {
		return nil, fmt.Errorf("位置拘束のターゲットと重みの数が一致しません: %s targets=%d weights=%d", label, len(targets), len(weights))
	}
	return &PointConstraint{Label: label, Targets: targets, Weights: weights, Driven: driven, scene: scene}, nil
}

func (c *PointConstraint) Name() string { return c.Label }

func (c *PointConstraint) Kind() string { return "pointConstraint" }

func (c *PointConstraint) Inputs() []Plug {
	inputs := make([]Plug, 0)
	for i, target := range c.Targets {
		inputs = append(inputs, positionPlugs(c.scene, target)...)
		inputs = append(inputs, c.Weights[i].Plugs(c.scene)...)
	}
	return append(inputs, parentWorldPlugs(c.scene, c.Driven)...)
}

func (c *PointConstraint) Outputs() []Plug { return []Plug{TranslatePlug(c.Driven)} }

// Position は拘束後のワールド位置を返す。
func (c *PointConstraint) Position(scene *model.Scene) mmath.Vec3 {
	sum := mmath.ZERO_VEC3
	total := 0.0
	for i, target := range c.Targets {
		w := c.Weights[i].Value(scene)
		sum = sum.Added(scene.WorldPosition(target).MuledScalar(w))
		total += w
	}
	if total <= mmath.EPSILON {
		return scene.WorldPosition(c.Driven)
	}
	return sum.MuledScalar(1 / total).Added(c.Offset)
}

func (c *PointConstraint) Evaluate(scene *model.Scene) error {
	scene.SetWorldPosition(c.Driven, c.Position(scene))
	return nil
}

// OrientConstraint はターゲットのワールド回転にオフセットを掛けた回転へ被拘束ノードを向ける。
type OrientConstraint struct {
	Label  string
	Target int
	Driven int
	Offset mmath.Quaternion
	scene  *model.Scene
}

// NewOrientConstraint は回転拘束を生成する。keepOffset が真なら現在の相対回転を維持する。
func NewOrientConstraint(scene *model.Scene, label string, target int, driven int, keepOffset bool) *OrientConstraint {
	offset := mmath.IdentityQuaternion()
	if keepOffset {
		offset = scene.WorldRotation(target).Inverted().Muled(scene.WorldRotation(driven))
	}
	return &OrientConstraint{Label: label, Target: target, Driven: driven, Offset: offset, scene: scene}
}

func (c *OrientConstraint) Name() string { return c.Label }

func (c *OrientConstraint) Kind() string { return "orientConstraint" }

func (c *OrientConstraint) Inputs() []Plug {
	return append([]Plug{WorldPlug(c.Target)}, parentWorldPlugs(c.scene, c.Driven)...)
}

func (c *OrientConstraint) Outputs() []Plug { return []Plug{RotatePlug(c.Driven)} }

func (c *OrientConstraint) Evaluate(scene *model.Scene) error {
	scene.SetWorldRotation(c.Driven, scene.WorldRotation(c.Target).Muled(c.Offset))
	return nil
}

// ParentConstraint はターゲットのワールド変換にオフセット変換を合成した姿勢へ被拘束ノードを置く。
type ParentConstraint struct {
	Label     string
	Target    int
	Driven    int
	Offset    mmath.Transform
	CopyScale bool
	scene     *model.Scene
}

// NewParentConstraint は親子拘束を生成する。現在の相対変換をオフセットとして保持する。
func NewParentConstraint(scene *model.Scene, label string, target int, driven int, copyScale bool) *ParentConstraint {
	offset := scene.WorldTransform(target).Localized(scene.WorldTransform(driven))
	return &ParentConstraint{Label: label, Target: target, Driven: driven, Offset: offset, CopyScale: copyScale, scene: scene}
}

func (c *ParentConstraint) Name() string { return c.Label }

func (c *ParentConstraint) Kind() string { return "parentConstraint" }

func (c *ParentConstraint) Inputs() []Plug {
	return append([]Plug{WorldPlug(c.Target)}, parentWorldPlugs(c.scene, c.Driven)...)
}

func (c *ParentConstraint) Outputs() []Plug {
	if c.CopyScale {
		return []Plug{TranslatePlug(c.Driven), RotatePlug(c.Driven), ScalePlug(c.Driven)}
	}
	return []Plug{TranslatePlug(c.Driven), RotatePlug(c.Driven)}
}

func (c *ParentConstraint) Evaluate(scene *model.Scene) error {
	world := scene.WorldTransform(c.Target).Composed(c.Offset)
	if !c.CopyScale {
		world.Scale = scene.WorldScale(c.Driven)
	}
	scene.SetWorldTransform(c.Driven, world)
	return nil
}

// UpMode はエイム拘束のアップベクトルの決め方を表す。
type UpMode int

const (
	// UP_MODE_VECTOR は固定のワールドベクトルを使う
	UP_MODE_VECTOR UpMode = iota
	// UP_MODE_OBJECT はアップオブジェクトへの方向を使う
	UP_MODE_OBJECT
	// UP_MODE_OBJECT_ROTATION はアップオブジェクトの回転軸を使う
	UP_MODE_OBJECT_ROTATION
)

// AimConstraint は被拘束ノードのX軸をターゲットへ向け、アップ軸をアップ参照へ合わせる。
type AimConstraint struct {
	Label    string
	Target   int
	Driven   int
	UpAxis   Axis
	UpMode   UpMode
	UpObject int
	UpVector mmath.Vec3
	// Roll はエイム軸周りの追加回転(ラジアン)。未設定なら0。
	Roll  Source
	scene *model.Scene
}

// NewAimConstraint はエイム拘束を生成する。
func NewAimConstraint(scene *model.Scene, label string, target int, driven int, upAxis Axis, upMode UpMode, upObject int, upVector mmath.Vec3) *AimConstraint {
	return &AimConstraint{
		Label:    label,
		Target:   target,
		Driven:   driven,
		UpAxis:   upAxis,
		UpMode:   upMode,
		UpObject: upObject,
		UpVector: upVector,
		scene:    scene,
	}
}

func (c *AimConstraint) Name() string { return c.Label }

func (c *AimConstraint) Kind() string { return "aimConstraint" }

func (c *AimConstraint) Inputs() []Plug {
	inputs := append(positionPlugs(c.scene, c.Target), positionPlugs(c.scene, c.Driven)...)
	switch c.UpMode {
	case UP_MODE_OBJECT:
		inputs = append(inputs, positionPlugs(c.scene, c.UpObject)...)
	case UP_MODE_OBJECT_ROTATION:
		inputs = append(inputs, WorldPlug(c.UpObject))
	}
	if c.Roll != nil {
		inputs = append(inputs, c.Roll.Plugs(c.scene)...)
	}
	return inputs
}

func (c *AimConstraint) Outputs() []Plug { return []Plug{RotatePlug(c.Driven)} }

// WorldRotation は拘束後のワールド回転を返す。
func (c *AimConstraint) WorldRotation(scene *model.Scene) mmath.Quaternion {
	origin := scene.WorldPosition(c.Driven)
	aim := scene.WorldPosition(c.Target).Subed(origin).Normalized()
	if aim.IsZero() {
		return scene.WorldRotation(c.Driven)
	}
	up := c.UpVector
	switch c.UpMode {
	case UP_MODE_OBJECT:
		up = scene.WorldPosition(c.UpObject).Subed(origin)
	case UP_MODE_OBJECT_ROTATION:
		up = scene.WorldRotation(c.UpObject).Rotated(c.UpVector)
	}
	up = up.Rejected(aim).Normalized()
	if up.IsZero() {
		up = aim.AnyPerpendicular()
	}
	var rotation mmath.Quaternion
	if c.UpAxis == AXIS_Z {
		rotation = mmath.NewQuaternionFromBasis(aim, up.Cross(aim), up)
	} else {
		rotation = mmath.NewQuaternionFromBasis(aim, up, aim.Cross(up))
	}
	if c.Roll != nil {
		rotation = rotation.Muled(mmath.NewQuaternionFromAxisAngle(mmath.UNIT_X_VEC3, c.Roll.Value(scene)))
	}
	return rotation
}

func (c *AimConstraint) Evaluate(scene *model.Scene) error {
	scene.SetWorldRotation(c.Driven, c.WorldRotation(scene))
	return nil
}
