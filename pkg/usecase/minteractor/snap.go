// 指示: miu200521358
package minteractor

import (
	"fmt"
	"math"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// SnapDirection はスナップの向きを表す。
type SnapDirection string

const (
	// SNAP_DIRECTION_IK_TO_FK はIKの姿勢をFKへ写してFKへ切り替える。
	SNAP_DIRECTION_IK_TO_FK SnapDirection = "ikToFk"
	// SNAP_DIRECTION_FK_TO_IK はFKの姿勢をIKへ写してIKへ切り替える。
	SNAP_DIRECTION_FK_TO_IK SnapDirection = "fkToIk"
)

// snapTriple はブレンドで結ばれた (IK, FK, メイン) の組を表す。
type snapTriple struct {
	Ik   int
	Fk   int
	Main int
}

// snapDriver はIKジョイントを回転拘束で駆動するIK側コントロールを表す。
type snapDriver struct {
	Control    int
	Constraint *dataflow.OrientConstraint
	Triple     snapTriple
}

// snapStructure は切替コントロールからグラフを辿って得たチェーン構造を表す。
type snapStructure struct {
	Switch     int
	Blend      *model.Attribute
	Chain      []snapTriple
	Extra      []snapTriple
	IkControl  int
	IkTerminal int
	Pole       int
	// Terminal は末端IKジョイントを駆動する回転拘束。
	Terminal *dataflow.OrientConstraint
	Drivers  []snapDriver
	// IkOnly はスナップ時に初期化するIK専用コントロール。
	IkOnly []int
}

// KinematicSnapTool はIK/FK間でワールド姿勢を保ったまま切り替える。
type KinematicSnapTool struct {
	PoleDistance float64
	// PlaneTolerance は既存ポールを曲げ平面上とみなす許容値(ポール距離に対する比)。
	PlaneTolerance float64
}

// NewKinematicSnapTool は調整値からKinematicSnapToolを生成する。
func NewKinematicSnapTool(settings RigSettings) *KinematicSnapTool {
	return &KinematicSnapTool{PoleDistance: settings.PoleDistance, PlaneTolerance: 1e-3}
}

// Snap は切替コントロールのikFkを見て向きを決め、姿勢を写してからikFkを反転する。
// 構造を辿れない場合は何も変更せず SnapConsistencyError を返す。
func (t *KinematicSnapTool) Snap(rc *RigContext, switchIndex int) (SnapDirection, error) {
	structure, err := t.discover(rc, switchIndex)
	if err != nil {
		return "", err
	}
	if err := rc.Evaluate(); err != nil {
		return "", err
	}
	direction := SNAP_DIRECTION_FK_TO_IK
	target := 1.0
	if structure.Blend.Value >= 0.5 {
		direction = SNAP_DIRECTION_IK_TO_FK
		target = 0.0
	}
	switch direction {
	case SNAP_DIRECTION_IK_TO_FK:
		t.snapIkToFk(rc, structure)
	default:
		t.snapFkToIk(rc, structure)
	}
	if err := rc.Evaluate(); err != nil {
		return "", fmt.Errorf("スナップ後の評価に失敗しました: %w", err)
	}

	previous := structure.Blend.Value
	structure.Blend.Set(target)
	if err := rc.Evaluate(); err != nil {
		structure.Blend.Set(previous)
		return "", fmt.Errorf("切替後の評価に失敗しました: %w", err)
	}
	logRigInfo("スナップ: switch=%s direction=%s", rc.Scene.MustGet(switchIndex).Name, direction)
	return direction, nil
}

// discover は切替属性の利用先からブレンド・IKコントロール・ポールを辿る。シーンは変更しない。
func (t *KinematicSnapTool) discover(rc *RigContext, switchIndex int) (*snapStructure, error) {
	scene := rc.Scene
	switchNode, err := scene.Get(switchIndex)
	if err != nil {
		return nil, err
	}
	fail := func(format string, params ...any) (*snapStructure, error) {
		return nil, merrors.NewSnapConsistencyError(switchNode.Name, format, params...)
	}
	blend, ok := switchNode.Attribute(model.ATTR_IK_FK)
	if !ok {
		return fail("ikFk属性がありません")
	}
	structure := &snapStructure{Switch: switchIndex, Blend: blend}

	consumers := rc.Graph.Consumers(dataflow.AttrPlug(switchIndex, model.ATTR_IK_FK))
	if reverse, ok := switchNode.LinkedOne(LINK_REVERSE); ok {
		consumers = append(consumers, rc.Graph.Consumers(dataflow.AttrPlug(reverse, model.ATTR_OUTPUT))...)
	}
	mains := switchNode.Linked(LINK_MAIN)
	mainOrder := map[int]int{}
	for i, main := range mains {
		mainOrder[main] = i
	}
	chain := make([]snapTriple, len(mains))
	found := make([]bool, len(mains))
	seen := map[*dataflow.BlendOperator]struct{}{}
	for _, op := range consumers {
		blendOp, ok := op.(*dataflow.BlendOperator)
		if !ok {
			continue
		}
		if _, ok := seen[blendOp]; ok {
			continue
		}
		seen[blendOp] = struct{}{}
		triple := snapTriple{Ik: blendOp.Ik, Fk: blendOp.Fk, Main: blendOp.Target}
		if i, ok := mainOrder[blendOp.Target]; ok {
			chain[i] = triple
			found[i] = true
			continue
		}
		structure.Extra = append(structure.Extra, triple)
	}
	if len(mains) < 2 {
		return fail("メインジョイントが2つ未満です: main=%d", len(mains))
	}
	for i, ok := range found {
		if !ok {
			return fail("メインジョイントに対応するブレンドがありません: %s", scene.MustGet(mains[i]).Name)
		}
	}
	structure.Chain = chain
	sort.SliceStable(structure.Extra, func(i, j int) bool {
		return scene.Depth(structure.Extra[i].Main) < scene.Depth(structure.Extra[j].Main)
	})

	links := []struct {
		name string
		dest *int
	}{
		{LINK_IK_CONTROL, &structure.IkControl},
		{LINK_IK_TERMINAL, &structure.IkTerminal},
		{LINK_POLE, &structure.Pole},
	}
	for _, link := range links {
		index, ok := switchNode.LinkedOne(link.name)
		if !ok {
			return fail("%s の接続がありません", link.name)
		}
		*link.dest = index
	}
	ikGroup, ok := switchNode.LinkedOne(LINK_IK_GROUP)
	if !ok {
		return fail("%s の接続がありません", LINK_IK_GROUP)
	}

	ikMembers := map[int]snapTriple{}
	for _, triple := range append(append([]snapTriple(nil), structure.Chain...), structure.Extra...) {
		ikMembers[triple.Ik] = triple
	}
	terminalIk := structure.Chain[len(structure.Chain)-1].Ik
	drivers := map[int]struct{}{}
	for _, op := range rc.Graph.Operators() {
		orient, ok := op.(*dataflow.OrientConstraint)
		if !ok {
			continue
		}
		triple, ok := ikMembers[orient.Driven]
		if !ok {
			continue
		}
		if orient.Driven == terminalIk && orient.Target == structure.IkTerminal {
			structure.Terminal = orient
			continue
		}
		if scene.MustGet(orient.Target).Kind != model.NODE_KIND_CONTROL {
			continue
		}
		structure.Drivers = append(structure.Drivers, snapDriver{Control: orient.Target, Constraint: orient, Triple: triple})
		drivers[orient.Target] = struct{}{}
	}
	if structure.Terminal == nil {
		return fail("末端IKジョイントの回転拘束がありません: %s", scene.MustGet(terminalIk).Name)
	}
	for _, descendant := range scene.Descendants(ikGroup) {
		if scene.MustGet(descendant).Kind != model.NODE_KIND_CONTROL {
			continue
		}
		if descendant == structure.IkControl || descendant == structure.Pole {
			continue
		}
		if _, ok := drivers[descendant]; ok {
			continue
		}
		structure.IkOnly = append(structure.IkOnly, descendant)
	}
	return structure, nil
}

// snapIkToFk はメインジョイントのワールド回転をFKコントロールへ根元から順に写し、IK専用コントロールを初期化する。
// 末端はIK目標ロケータの回転から求める。
func (t *KinematicSnapTool) snapIkToFk(rc *RigContext, s *snapStructure) {
	scene := rc.Scene
	last := len(s.Chain) - 1
	rotations := make(map[int]mmath.Quaternion, len(s.Chain)+len(s.Extra))
	for i, triple := range s.Chain {
		rotations[triple.Fk] = scene.WorldRotation(triple.Main)
		if i == last && s.Blend.Value >= 1-mmath.EPSILON {
			rotations[triple.Fk] = scene.WorldRotation(s.IkTerminal).Muled(s.Terminal.Offset)
		}
	}
	for _, triple := range s.Extra {
		rotations[triple.Fk] = scene.WorldRotation(triple.Main)
	}
	// FKの長さをメインに合わせる
	for i := 0; i < last; i++ {
		fk := scene.MustGet(s.Chain[i].Fk)
		attr, ok := fk.Attribute(model.ATTR_FK_STRETCH)
		child := scene.MustGet(s.Chain[i+1].Fk)
		if !ok || child.Translation.X <= mmath.EPSILON || attr.Value <= mmath.EPSILON {
			continue
		}
		rest := child.Translation.X / attr.Value
		attr.Set(scene.MustGet(s.Chain[i+1].Main).Translation.Length() / rest)
	}

	ordered := make([]snapTriple, 0, len(s.Chain)+len(s.Extra))
	ordered = append(append(ordered, s.Chain...), s.Extra...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return scene.Depth(ordered[i].Fk) < scene.Depth(ordered[j].Fk)
	})
	for _, triple := range ordered {
		scene.SetWorldRotation(triple.Fk, rotations[triple.Fk])
	}
	// IK専用コントロールはFKへ写した後に初期化する
	for _, control := range s.IkOnly {
		scene.MustGet(control).ResetTransform()
	}
}

// snapFkToIk はIK専用コントロールを初期化し、IKコントロールをFK末端へ合わせ、ポールを置き直す。
func (t *KinematicSnapTool) snapFkToIk(rc *RigContext, s *snapStructure) {
	scene := rc.Scene
	for _, control := range s.IkOnly {
		scene.MustGet(control).ResetTransform()
	}
	terminal := s.Chain[len(s.Chain)-1]
	fkWorld := scene.WorldTransform(terminal.Fk)
	// 末端ロケータの拘束オフセットを打ち消すようにIKコントロールを置く
	desired := fkWorld.Rotation.Muled(s.Terminal.Offset.Inverted())
	relative := scene.WorldTransform(s.IkControl).Localized(scene.WorldTransform(s.IkTerminal))
	controlRotation := desired.Muled(relative.Rotation.Inverted())
	scene.SetWorldRotation(s.IkControl, controlRotation)
	offset := scene.WorldPosition(s.IkTerminal).Subed(scene.WorldPosition(s.IkControl))
	scene.SetWorldPosition(s.IkControl, fkWorld.Position.Subed(offset))

	for _, driver := range s.Drivers {
		rotation := scene.WorldRotation(driver.Triple.Fk).Muled(driver.Constraint.Offset.Inverted())
		scene.SetWorldRotation(driver.Control, rotation)
	}

	if len(s.Chain) < 3 {
		return
	}
	first := scene.WorldPosition(s.Chain[0].Fk)
	mid := scene.WorldPosition(s.Chain[len(s.Chain)/2].Fk)
	end := scene.WorldPosition(terminal.Fk)
	pole := scene.WorldPosition(s.Pole)
	if t.poleInPlane(first, mid, end, pole) {
		logRigDebug("スナップ: 既存ポールを維持します: %s", scene.MustGet(s.Pole).Name)
		return
	}
	distance := pole.Distance(mid)
	if distance <= mmath.EPSILON {
		distance = t.PoleDistance
	}
	if position, ok := PolePosition(first, mid, end, distance); ok {
		scene.SetWorldPosition(s.Pole, position)
	}
}

// poleInPlane はポールがFKの曲げ平面上で、かつ中間ジョイントの曲がる側にあるか判定する。
func (t *KinematicSnapTool) poleInPlane(first mmath.Vec3, mid mmath.Vec3, end mmath.Vec3, pole mmath.Vec3) bool {
	axis := end.Subed(first)
	bend := mid.Subed(first).Rejected(axis)
	if bend.Length() <= mmath.EPSILON {
		// 直線のFKでは平面が決まらないため既存ポールを使う
		return true
	}
	normal := axis.Cross(bend).Normalized()
	offset := pole.Subed(first).Rejected(axis)
	tolerance := t.PlaneTolerance * math.Max(1, offset.Length())
	return math.Abs(offset.Dot(normal)) <= tolerance && offset.Dot(bend) > 0
}
