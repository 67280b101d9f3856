// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// 切替コントロールのメッセージ接続名。
const (
	LINK_IK          = "ik"
	LINK_FK          = "fk"
	LINK_MAIN        = "main"
	LINK_IK_GROUP    = "ikGroup"
	LINK_FK_GROUP    = "fkGroup"
	LINK_IK_CONTROL  = "ikControl"
	LINK_IK_TERMINAL = "ikTerminal"
	LINK_IK_HANDLE   = "ikHandle"
	LINK_POLE        = "pole"
	LINK_REVERSE     = "reverse"
)

// ChainCallback はチェーン構築の末尾で呼ばれ、追加のIK側/FK側コントロールを返す。
type ChainCallback func(rc *RigContext, chain *KinematicChain) (extraIk []int, extraFk []int, err error)

// ChainRequest はIK/FKチェーン構築要求を表す。
type ChainRequest struct {
	// SourceJoints はルートから先端のスキンジョイント。
	SourceJoints []int
	// Parent はチェーンの親ノード。
	Parent       int
	Zone         string
	Side         model.Side
	Stretch      bool
	BendingBones bool
	// TwistJoints は SourceJoints と同じ長さの捩りジョイント割当。nil なら捩り分配なし。
	TwistJoints [][]int
	// BendHint は直線チェーンで曲げる側のワールド方向。ゼロなら +Z。
	BendHint  mmath.Vec3
	Callbacks []ChainCallback
}

// KinematicChain はIK/FK/メインの3系列と切替属性の構築結果を表す。
type KinematicChain struct {
	Zone    string
	Side    model.Side
	Parent  int
	Sources []int
	Ik      []int
	Fk      []int
	Main    []int
	// Switch はIK/FK切替属性(ikFk)を持つコントロール。
	Switch int
	// Reverse は 1-ikFk を出力する共有反転ノード。
	Reverse    int
	IkGroup    int
	FkGroup    int
	IkControl  int
	IkTerminal int
	IkHandle   int
	Pole       int
	PoleSpace  int
	// Normal はチェーンの曲げ平面の法線。
	Normal     mmath.Vec3
	IkControls []int
	FkControls []int
	Stretch    *StretchRig
	Twists     []*TwistGroup
	Blends     []*dataflow.BlendOperator
	IkSolver   *dataflow.IkSolveOperator
}

// Controls は (IK側コントロール, FK側コントロール) を返す。
func (c *KinematicChain) Controls() ([]int, []int) {
	return append([]int(nil), c.IkControls...), append([]int(nil), c.FkControls...)
}

// IkWeight はチェーン共通のIK重みを返す。
func (c *KinematicChain) IkWeight() dataflow.Source {
	return dataflow.AttrSource{Node: c.Switch, Attr: model.ATTR_IK_FK}
}

// FkWeight は共有反転ノードのFK重みを返す。
func (c *KinematicChain) FkWeight() dataflow.Source {
	return dataflow.AttrSource{Node: c.Reverse, Attr: model.ATTR_OUTPUT}
}

// connectBlend はIK側とFK側をチェーン共通の重みで target へ合成する。
func (c *KinematicChain) connectBlend(rc *RigContext, ik int, fk int, target int, translate bool) error {
	blend := &dataflow.BlendOperator{
		Label:     rc.Scene.MustGet(target).Name + "_blend",
		Ik:        ik,
		Fk:        fk,
		Target:    target,
		IkWeight:  c.IkWeight(),
		FkWeight:  c.FkWeight(),
		Translate: translate,
	}
	if err := rc.Connect(blend); err != nil {
		return err
	}
	c.Blends = append(c.Blends, blend)
	return nil
}

// validate はIK/FK/メインの長さが一致するか検証する。
func (c *KinematicChain) validate() error {
	if len(c.Ik) != len(c.Sources) || len(c.Fk) != len(c.Sources) || len(c.Main) != len(c.Sources) {
		return merrors.NewStructuralInvariantError("チェーン長が一致しません: zone=%s side=%s sources=%d ik=%d fk=%d main=%d",
			c.Zone, c.Side, len(c.Sources), len(c.Ik), len(c.Fk), len(c.Main))
	}
	return nil
}

// KinematicChainBuilder はジョイント列をIK/FK/メインに複製して切替付きチェーンを構築する。
type KinematicChainBuilder struct {
	PoleDistance float64
	stretch      *StretchVolumePreserver
	twist        *TwistDistributor
}

// NewKinematicChainBuilder は調整値からKinematicChainBuilderを生成する。
func NewKinematicChainBuilder(settings RigSettings) *KinematicChainBuilder {
	return &KinematicChainBuilder{
		PoleDistance: settings.PoleDistance,
		stretch:      NewStretchVolumePreserver(settings),
		twist:        NewTwistDistributor(),
	}
}

// Build はチェーンを構築して (IK側, FK側) コントロールを持つ結果を返す。
func (b *KinematicChainBuilder) Build(rc *RigContext, request ChainRequest) (*KinematicChain, error) {
	if err := rc.ensureOpen(); err != nil {
		return nil, err
	}
	if len(request.SourceJoints) == 0 {
		return nil, merrors.NewStructuralInvariantError("チェーンのジョイントが空です: zone=%s side=%s", request.Zone, request.Side)
	}
	if len(request.SourceJoints) < 2 {
		return nil, merrors.NewStructuralInvariantError("IK/FKチェーンには2つ以上のジョイントが必要です: zone=%s side=%s joints=%d",
			request.Zone, request.Side, len(request.SourceJoints))
	}
	if request.TwistJoints != nil && len(request.TwistJoints) != len(request.SourceJoints) {
		return nil, merrors.NewStructuralInvariantError("捩り割当の区間数が一致しません: zone=%s side=%s joints=%d buckets=%d",
			request.Zone, request.Side, len(request.SourceJoints), len(request.TwistJoints))
	}

	scene := rc.Scene
	positions := make([]mmath.Vec3, len(request.SourceJoints))
	for i, joint := range request.SourceJoints {
		positions[i] = scene.WorldPosition(joint)
	}
	hint := request.BendHint
	if hint.IsZero() {
		hint = mmath.UNIT_Z_VEC3
	}
	normal, degenerate := chainBendNormal(positions, hint)
	if degenerate {
		rc.Warn(model.RigWarningDegeneratePolePlane, "チェーンが直線のため曲げ方向に補助軸を使います: zone=%s side=%s", request.Zone, request.Side)
	}

	chain := &KinematicChain{
		Zone:      request.Zone,
		Side:      request.Side,
		Parent:    request.Parent,
		Sources:   append([]int(nil), request.SourceJoints...),
		Normal:    normal,
		PoleSpace: -1,
	}
	if err := b.buildGroups(rc, chain); err != nil {
		return nil, err
	}
	if err := b.buildDuplicates(rc, chain, positions); err != nil {
		return nil, err
	}
	if err := b.buildSwitch(rc, chain, request.Stretch); err != nil {
		return nil, err
	}
	for i := range chain.Sources {
		if err := chain.connectBlend(rc, chain.Ik[i], chain.Fk[i], chain.Main[i], request.Stretch); err != nil {
			return nil, err
		}
	}
	if err := b.buildIk(rc, chain, positions, hint); err != nil {
		return nil, err
	}
	if request.Stretch {
		stretch, err := b.stretch.Apply(rc, chain)
		if err != nil {
			return nil, err
		}
		chain.Stretch = stretch
	}
	for segment, twists := range request.TwistJoints {
		if len(twists) == 0 {
			continue
		}
		group, err := b.twist.Distribute(rc, chain, segment, twists, request.BendingBones)
		if err != nil {
			return nil, err
		}
		chain.Twists = append(chain.Twists, group)
	}

	chain.IkControls = []int{chain.IkControl, chain.Pole}
	chain.FkControls = append([]int(nil), chain.Fk...)
	for _, callback := range request.Callbacks {
		extraIk, extraFk, err := callback(rc, chain)
		if err != nil {
			return nil, err
		}
		chain.IkControls = append(chain.IkControls, extraIk...)
		chain.FkControls = append(chain.FkControls, extraFk...)
	}
	if err := chain.validate(); err != nil {
		return nil, err
	}
	logRigInfo("チェーン構築: zone=%s side=%s joints=%d ikControls=%d fkControls=%d twists=%d",
		chain.Zone, chain.Side, len(chain.Sources), len(chain.IkControls), len(chain.FkControls), len(chain.Twists))
	return chain, nil
}

// chainBendNormal は最初に退化しない3点の曲げ平面法線を返す。直線の場合は hint 側へ曲がる法線を返す。
func chainBendNormal(positions []mmath.Vec3, hint mmath.Vec3) (mmath.Vec3, bool) {
	for i := 1; i+1 < len(positions); i++ {
		normal := positions[i].Subed(positions[i-1]).Cross(positions[i+1].Subed(positions[i])).Normalized()
		if normal.Length() > 0.5 {
			return normal, false
		}
	}
	x := positions[len(positions)-1].Subed(positions[0]).Normalized()
	forward := hint.Rejected(x).Normalized()
	if forward.IsZero() {
		forward = x.AnyPerpendicular()
	}
	// IKは x×normal 側へ曲げるため normal = forward×x
	return forward.Cross(x).Normalized(), len(positions) > 2
}

// PolePosition は中間ジョイントから両端への単位ベクトルの平均の逆側、距離 distance の位置を返す。
// 3点が一直線の場合は false を返す。
func PolePosition(first mmath.Vec3, mid mmath.Vec3, last mmath.Vec3, distance float64) (mmath.Vec3, bool) {
	toFirst := first.Subed(mid).Normalized()
	toLast := last.Subed(mid).Normalized()
	average := toFirst.Added(toLast)
	if average.Length() < 1e-6 || toFirst.Cross(toLast).Length() < 1e-6 {
		return mid, false
	}
	return mid.Subed(average.Normalized().MuledScalar(distance)), true
}

// controlRoot はコントロールを置く最上位(ルートコントロール、なければリググループ)を返す。
func (rc *RigContext) controlRoot() int {
	if rc.RootControl >= 0 {
		return rc.RootControl
	}
	return rc.TopGroup
}

func (b *KinematicChainBuilder) buildGroups(rc *RigContext, chain *KinematicChain) error {
	var err error
	chain.IkGroup, err = rc.AddNode(rc.Name(chain.Zone, chain.Side, "ik", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP, rc.controlRoot())
	if err != nil {
		return err
	}
	chain.FkGroup, err = rc.AddNode(rc.Name(chain.Zone, chain.Side, "fk", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP, chain.Parent)
	return err
}

// buildDuplicates はメイン/IKジョイントとFKコントロールを同じ位置・向きで作る。
// X軸は子へ向け、Z軸は曲げ平面の法線に合わせる。末端は親と同じ向き。
func (b *KinematicChainBuilder) buildDuplicates(rc *RigContext, chain *KinematicChain, positions []mmath.Vec3) error {
	scene := rc.Scene
	mainParent, ikParent, fkParent := chain.Parent, chain.Parent, chain.FkGroup
	for i, source := range chain.Sources {
		rotation := chainRotation(positions, i, chain.Normal)
		mainName, err := derivedName(scene, source, model.CHAIN_TYPE_MAIN_JOINT)
		if err != nil {
			return err
		}
		main, err := rc.AddNodeAt(mainName, model.NODE_KIND_JOINT, mainParent, positions[i], rotation)
		if err != nil {
			return err
		}
		ik, err := rc.AddNodeAt(mainName.With(model.CHAIN_TYPE_IK_JOINT), model.NODE_KIND_JOINT, ikParent, positions[i], rotation)
		if err != nil {
			return err
		}
		fk, err := rc.Controllers.Create(rc, ControllerSpec{
			Name:       mainName.With(model.CHAIN_TYPE_FK_CTR),
			Type:       SHAPE_CIRCLE,
			Parent:     fkParent,
			Position:   positions[i],
			Rotation:   rotation,
			Scale:      1.5,
			ColorIndex: COLOR_INDEX_SIDE,
			LockMask:   model.CHANNEL_TRANSLATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return err
		}
		if i > 0 {
			// 子は親のX軸上に置く
			length := positions[i].Distance(positions[i-1])
			for _, node := range []int{main, ik, fk} {
				scene.MustGet(node).Translation = mmath.NewVec3(length, 0, 0)
			}
		}
		chain.Main = append(chain.Main, main)
		chain.Ik = append(chain.Ik, ik)
		chain.Fk = append(chain.Fk, fk)
		mainParent, ikParent, fkParent = main, ik, fk
	}
	return nil
}

// buildSwitch はikFk属性を持つ切替コントロールと共有反転ノード、表示切替を作る。
func (b *KinematicChainBuilder) buildSwitch(rc *RigContext, chain *KinematicChain, stretch bool) error {
	scene := rc.Scene
	last := chain.Main[len(chain.Main)-1]
	var err error
	chain.Switch, err = rc.Controllers.Create(rc, ControllerSpec{
		Name:       rc.Name(chain.Zone, chain.Side, "switch", model.CHAIN_TYPE_CTR),
		Type:       SHAPE_SWITCH,
		Parent:     last,
		Position:   scene.WorldPosition(last).Added(chain.Normal.MuledScalar(1.5 * rc.Settings.ControlScale)),
		Rotation:   scene.WorldRotation(last),
		Scale:      0.5,
		ColorIndex: COLOR_INDEX_SIDE,
		LockMask:   model.CHANNEL_TRANSLATE | model.CHANNEL_ROTATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
	})
	if err != nil {
		return err
	}
	switchNode := scene.MustGet(chain.Switch)
	switchNode.AddAttribute(model.NewRangeAttribute(model.ATTR_IK_FK, 1, 0, 1))
	switchNode.AddAttribute(model.NewEnumAttribute(model.ATTR_POLE_POSITION, model.PolePositionNames, int(model.POLE_POSITION_ROOT)))
	if stretch && len(chain.Sources) == 3 {
		switchNode.AddAttribute(model.NewRangeAttribute(model.ATTR_SNAP_TO_POLE, 0, 0, 1))
	}

	chain.Reverse, err = rc.AddNode(rc.Name(chain.Zone, chain.Side, "ikFkReverse", model.CHAIN_TYPE_UTIL), model.NODE_KIND_UTILITY, -1)
	if err != nil {
		return err
	}
	scene.MustGet(chain.Reverse).AddAttribute(model.NewFloatAttribute(model.ATTR_OUTPUT, 0)).Keyable = false
	reverse, err := dataflow.NewExpressionOperator(scene.MustGet(chain.Reverse).Name, "1 - ikFk",
		map[string]dataflow.Source{"ikFk": chain.IkWeight()}, dataflow.AttrSink{Node: chain.Reverse, Attr: model.ATTR_OUTPUT})
	if err != nil {
		return err
	}
	if err := rc.Connect(reverse); err != nil {
		return err
	}

	visibilities := []struct {
		group   int
		formula string
	}{
		{chain.IkGroup, "ikFk > 0 ? 1 : 0"},
		{chain.FkGroup, "ikFk < 1 ? 1 : 0"},
	}
	for _, v := range visibilities {
		scene.MustGet(v.group).AddAttribute(model.NewRangeAttribute(model.ATTR_VISIBILITY, 1, 0, 1)).Keyable = false
		op, err := dataflow.NewExpressionOperator(scene.MustGet(v.group).Name+"_visibility", v.formula,
			map[string]dataflow.Source{"ikFk": chain.IkWeight()}, dataflow.AttrSink{Node: v.group, Attr: model.ATTR_VISIBILITY})
		if err != nil {
			return err
		}
		if err := rc.Connect(op); err != nil {
			return err
		}
	}

	switchNode.Link(LINK_IK, chain.Ik...)
	switchNode.Link(LINK_FK, chain.Fk...)
	switchNode.Link(LINK_MAIN, chain.Main...)
	switchNode.Link(LINK_IK_GROUP, chain.IkGroup)
	switchNode.Link(LINK_FK_GROUP, chain.FkGroup)
	switchNode.Link(LINK_REVERSE, chain.Reverse)
	return nil
}

// buildIk はIKコントロール・末端ロケータ・IKハンドル・ポールを作り、IK解を接続する。
func (b *KinematicChainBuilder) buildIk(rc *RigContext, chain *KinematicChain, positions []mmath.Vec3, hint mmath.Vec3) error {
	scene := rc.Scene
	last := len(chain.Sources) - 1
	terminalName, err := derivedName(scene, chain.Sources[last], model.CHAIN_TYPE_IK_CTR)
	if err != nil {
		return err
	}
	terminalRotation := scene.WorldRotation(chain.Ik[last])

	chain.IkControl, err = rc.Controllers.Create(rc, ControllerSpec{
		Name:       terminalName,
		Type:       SHAPE_BOX,
		Parent:     chain.IkGroup,
		Position:   positions[last],
		Rotation:   terminalRotation,
		ColorIndex: COLOR_INDEX_SIDE,
		LockMask:   model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
	})
	if err != nil {
		return err
	}
	chain.IkTerminal, err = rc.AddNodeAt(terminalName.WithRole(terminalName.Role+"Terminal").With(model.CHAIN_TYPE_LOC),
		model.NODE_KIND_LOCATOR, chain.IkControl, positions[last], terminalRotation)
	if err != nil {
		return err
	}
	chain.IkHandle, err = rc.AddNodeAt(terminalName.With(model.CHAIN_TYPE_IK_HANDLE), model.NODE_KIND_IK_HANDLE, chain.IkTerminal, positions[last], terminalRotation)
	if err != nil {
		return err
	}

	mid := len(positions) / 2
	pole, ok := PolePosition(positions[0], positions[mid], positions[last], b.PoleDistance)
	if !ok {
		forward := hint.Rejected(positions[last].Subed(positions[0])).Normalized()
		if forward.IsZero() {
			forward = chain.Normal.Cross(positions[last].Subed(positions[0])).Normalized()
		}
		pole = positions[mid].Added(forward.MuledScalar(b.PoleDistance))
	}
	chain.PoleSpace, err = rc.AddNodeAt(rc.Name(chain.Zone, chain.Side, "pole", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP, chain.IkGroup, pole, mmath.IdentityQuaternion())
	if err != nil {
		return err
	}
	chain.Pole, err = rc.Controllers.Create(rc, ControllerSpec{
		Name:       rc.Name(chain.Zone, chain.Side, "pole", model.CHAIN_TYPE_IK_CTR),
		Type:       SHAPE_SPHERE,
		Parent:     chain.PoleSpace,
		Position:   pole,
		Rotation:   mmath.IdentityQuaternion(),
		Scale:      0.5,
		ColorIndex: COLOR_INDEX_SIDE,
		LockMask:   model.CHANNEL_ROTATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
	})
	if err != nil {
		return err
	}
	if err := b.connectPoleSpace(rc, chain); err != nil {
		return err
	}

	solver, err := dataflow.NewIkSolveOperator(scene, rc.Name(chain.Zone, chain.Side, "ikSolve", model.CHAIN_TYPE_UTIL).String(), chain.Ik, chain.IkHandle, chain.Pole)
	if err != nil {
		return err
	}
	if err := rc.Connect(solver); err != nil {
		return err
	}
	chain.IkSolver = solver
	orient := dataflow.NewOrientConstraint(scene, scene.MustGet(chain.Ik[last]).Name+"_orient", chain.IkTerminal, chain.Ik[last], true)
	if err := rc.Connect(orient); err != nil {
		return err
	}

	switchNode := scene.MustGet(chain.Switch)
	switchNode.Link(LINK_IK_CONTROL, chain.IkControl)
	switchNode.Link(LINK_IK_TERMINAL, chain.IkTerminal)
	switchNode.Link(LINK_IK_HANDLE, chain.IkHandle)
	switchNode.Link(LINK_POLE, chain.Pole)
	logRigDebug("ポール配置: zone=%s side=%s pole=%s", chain.Zone, chain.Side, pole)
	return nil
}

// connectPoleSpace はpolePosition(world/root/limb)でポールの追従空間を切り替える。
func (b *KinematicChainBuilder) connectPoleSpace(rc *RigContext, chain *KinematicChain) error {
	spaces := []int{rc.TopGroup, rc.RootControl, chain.Parent}
	for _, space := range spaces {
		if space < 0 {
			logRigDebug("ポール空間切替を省略します: zone=%s side=%s", chain.Zone, chain.Side)
			return nil
		}
	}
	op, err := dataflow.NewSpaceSwitchOperator(rc.Scene, rc.Scene.MustGet(chain.PoleSpace).Name+"_space", chain.PoleSpace, spaces,
		dataflow.AttrSource{Node: chain.Switch, Attr: model.ATTR_POLE_POSITION})
	if err != nil {
		return err
	}
	return rc.Connect(op)
}
