// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// twistShareFormula は追跡値(区間捩りの半分)を j 番目の捩りジョイントの回転量へ按分する。
const twistShareFormula = "tracked * 2 * j / count"

// TwistShare は追跡値から n 個中 j 番目の捩りジョイントの回転量を返す。
func TwistShare(tracked float64, j int, n int) float64 {
	if n < 2 {
		return 0
	}
	v, err := evaluateFormula(twistShareFormula, map[string]float64{"tracked": tracked, "j": float64(j), "count": float64(n - 1)})
	if err != nil {
		return 0
	}
	return v
}

// TwistGroup は1区間の捩り分配の構築結果を表す。
type TwistGroup struct {
	Segment int
	Start   int
	End     int
	// Sources は捩りスキンジョイント(区間上の順)。
	Sources []int
	Joints  []int
	// Tracker は ATTR_TWIST を持つノード。
	Tracker      int
	Bending      bool
	BendGroups   []int
	BendControls []int
	Track        *dataflow.TwistTrackOperator
}

// TwistDistributor はメインジョイント区間の捩りを複数の捩りジョイントへ分配する。
type TwistDistributor struct{}

// NewTwistDistributor はTwistDistributorを生成する。
func NewTwistDistributor() *TwistDistributor {
	return &TwistDistributor{}
}

// Distribute は区間 segment(Main[segment]→Main[segment+1])に捩りジョイントを作る。
func (d *TwistDistributor) Distribute(rc *RigContext, chain *KinematicChain, segment int, twists []int, bending bool) (*TwistGroup, error) {
	if segment < 0 || segment+1 >= len(chain.Main) {
		return nil, merrors.NewStructuralInvariantError("末端ジョイントには捩りを分配できません: zone=%s side=%s segment=%d twists=%d",
			chain.Zone, chain.Side, segment, len(twists))
	}
	if len(twists) < 2 {
		return nil, merrors.NewStructuralInvariantError("捩りジョイントは区間に2つ以上必要です: zone=%s side=%s segment=%d twists=%d",
			chain.Zone, chain.Side, segment, len(twists))
	}
	scene := rc.Scene
	group := &TwistGroup{
		Segment: segment,
		Start:   chain.Main[segment],
		End:     chain.Main[segment+1],
		Sources: append([]int(nil), twists...),
		Bending: bending,
	}
	startName, err := model.ParseRigName(scene.MustGet(group.Start).Name)
	if err != nil {
		return nil, err
	}
	group.Tracker, err = rc.AddNode(startName.WithRole(startName.Role+"Twist").With(model.CHAIN_TYPE_UTIL), model.NODE_KIND_UTILITY, -1)
	if err != nil {
		return nil, err
	}
	scene.MustGet(group.Tracker).AddAttribute(model.NewFloatAttribute(model.ATTR_TWIST, 0)).Keyable = false
	group.Track = dataflow.NewTwistTrackOperator(scene, scene.MustGet(group.Tracker).Name, group.Start, group.End,
		dataflow.AttrSink{Node: group.Tracker, Attr: model.ATTR_TWIST})
	if err := rc.Connect(group.Track); err != nil {
		return nil, err
	}

	if bending {
		err = d.buildBending(rc, chain, group)
	} else {
		err = d.buildSimple(rc, chain, group)
	}
	if err != nil {
		return nil, err
	}
	for j, joint := range group.Joints {
		if err := d.connectScale(rc, chain, group, j, joint); err != nil {
			return nil, err
		}
	}
	logRigDebug("捩り分配: zone=%s side=%s segment=%d twists=%d bending=%t", chain.Zone, chain.Side, segment, len(twists), bending)
	return group, nil
}

// segmentRatio は区間上の投影位置の割合を返す。
func segmentRatio(start mmath.Vec3, end mmath.Vec3, p mmath.Vec3) float64 {
	axis := end.Subed(start)
	length := axis.Length()
	if length <= mmath.EPSILON {
		return 0
	}
	return mmath.Clamped(p.Subed(start).Dot(axis)/(length*length), 0, 1)
}

// shareOperator は j 番目の捩り量を sink へ書き込む式を作る。
func shareOperator(scene *model.Scene, group *TwistGroup, label string, j int, sink dataflow.Sink) (*dataflow.ExpressionOperator, error) {
	return dataflow.NewExpressionOperator(label, twistShareFormula, map[string]dataflow.Source{
		"tracked": dataflow.AttrSource{Node: group.Tracker, Attr: model.ATTR_TWIST},
		"j":       dataflow.ConstSource{V: float64(j)},
		"count":   dataflow.ConstSource{V: float64(len(group.Sources) - 1)},
	}, sink)
}

// buildSimple は捩りジョイントを区間始点の子としてX軸上に並べ、X軸回転で捩りを分配する。
func (d *TwistDistributor) buildSimple(rc *RigContext, chain *KinematicChain, group *TwistGroup) error {
	scene := rc.Scene
	n := len(group.Sources)
	startWorld := scene.WorldTransform(group.Start)
	restEnd := scene.MustGet(group.End).Translation.X
	for j, source := range group.Sources {
		name, err := derivedName(scene, source, model.CHAIN_TYPE_MAIN_JOINT)
		if err != nil {
			return err
		}
		joint, err := rc.AddNode(name, model.NODE_KIND_JOINT, group.Start)
		if err != nil {
			return err
		}
		local := startWorld.InverseTransformPoint(scene.WorldPosition(source))
		restTx := local.X
		scene.MustGet(joint).Translation = mmath.NewVec3(restTx, 0, 0)
		group.Joints = append(group.Joints, joint)

		share, err := shareOperator(scene, group, name.String()+"_twist", j, dataflow.RotateAxisSink{Node: joint, Axis: dataflow.AXIS_X})
		if err != nil {
			return err
		}
		if err := rc.Connect(share); err != nil {
			return err
		}
		if chain.Stretch == nil || j == 0 {
			continue
		}
		// 区間の伸び量を位置に応じて按分する
		op, err := dataflow.NewExpressionOperator(name.String()+"_stretch", twistStretchFormula,
			map[string]dataflow.Source{
				"rest":    dataflow.ConstSource{V: restTx},
				"end":     dataflow.TranslateAxisSource{Node: group.End, Axis: dataflow.AXIS_X},
				"restEnd": dataflow.ConstSource{V: restEnd},
				"count":   dataflow.ConstSource{V: float64(n - 1)},
				"j":       dataflow.ConstSource{V: float64(j)},
			}, dataflow.TranslateAxisSink{Node: joint, Axis: dataflow.AXIS_X})
		if err != nil {
			return err
		}
		if err := rc.Connect(op); err != nil {
			return err
		}
	}
	return nil
}

// buildBending は両端を区間の始点/終点に固定し、内側の捩りジョイントを曲げコントロールで動かせるようにする。
// 内側は次の曲げコントロールへ向き、捩り量をエイム軸周りのロールで受ける。
func (d *TwistDistributor) buildBending(rc *RigContext, chain *KinematicChain, group *TwistGroup) error {
	scene := rc.Scene
	n := len(group.Sources)
	start := scene.WorldPosition(group.Start)
	end := scene.WorldPosition(group.End)
	startRotation := scene.WorldRotation(group.Start)

	names := make([]model.RigName, n)
	for j, source := range group.Sources {
		name, err := derivedName(scene, source, model.CHAIN_TYPE_MAIN_JOINT)
		if err != nil {
			return err
		}
		names[j] = name
	}

	// 両端と曲げコントロールを先に作り、内側はその後でエイム先を決める
	group.Joints = make([]int, n)
	for _, index := range []int{0, n - 1} {
		parent, rotation := group.Start, startRotation
		if index == n-1 {
			parent, rotation = group.End, scene.WorldRotation(group.End)
		}
		joint, err := rc.AddNodeAt(names[index], model.NODE_KIND_JOINT, parent, scene.WorldPosition(group.Sources[index]), rotation)
		if err != nil {
			return err
		}
		group.Joints[index] = joint
	}
	bendControls := make([]int, n)
	for j := 1; j < n-1; j++ {
		position := scene.WorldPosition(group.Sources[j])
		f := segmentRatio(start, end, position)
		bendGroup, err := rc.AddNodeAt(names[j].WithRole(names[j].Role+"Bend").With(model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP,
			group.Start, position, startRotation)
		if err != nil {
			return err
		}
		point, err := dataflow.NewPointConstraint(scene, scene.MustGet(bendGroup).Name+"_point", []int{group.Start, group.End},
			[]dataflow.Source{dataflow.ConstSource{V: 1 - f}, dataflow.ConstSource{V: f}}, bendGroup)
		if err != nil {
			return err
		}
		point.Offset = position.Subed(point.Position(scene))
		if err := rc.Connect(point); err != nil {
			return err
		}
		control, err := rc.Controllers.Create(rc, ControllerSpec{
			Name:       names[j].WithRole(names[j].Role + "Bend").With(model.CHAIN_TYPE_CTR),
			Type:       SHAPE_CIRCLE,
			Parent:     bendGroup,
			Position:   position,
			Rotation:   startRotation,
			Scale:      0.8,
			ColorIndex: COLOR_INDEX_SIDE,
			LockMask:   model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return err
		}
		bendControls[j] = control
		group.BendGroups = append(group.BendGroups, bendGroup)
		group.BendControls = append(group.BendControls, control)
	}

	for j := 1; j < n-1; j++ {
		joint, err := rc.AddNodeAt(names[j], model.NODE_KIND_JOINT, group.Start, scene.WorldPosition(group.Sources[j]), startRotation)
		if err != nil {
			return err
		}
		group.Joints[j] = joint
		scene.MustGet(joint).AddAttribute(model.NewFloatAttribute(model.ATTR_TWIST_SHARE, 0)).Keyable = false
		share, err := shareOperator(scene, group, names[j].String()+"_twist", j, dataflow.AttrSink{Node: joint, Attr: model.ATTR_TWIST_SHARE})
		if err != nil {
			return err
		}
		if err := rc.Connect(share); err != nil {
			return err
		}

		point, err := dataflow.NewPointConstraint(scene, names[j].String()+"_point", []int{bendControls[j]},
			[]dataflow.Source{dataflow.ConstSource{V: 1}}, joint)
		if err != nil {
			return err
		}
		if err := rc.Connect(point); err != nil {
			return err
		}
		target := group.Joints[n-1]
		if j+1 < n-1 {
			target = bendControls[j+1]
		}
		aim := dataflow.NewAimConstraint(scene, names[j].String()+"_aim", target, joint, dataflow.AXIS_Z,
			dataflow.UP_MODE_OBJECT_ROTATION, group.Start, mmath.UNIT_Z_VEC3)
		aim.Roll = dataflow.AttrSource{Node: joint, Attr: model.ATTR_TWIST_SHARE}
		scene.SetWorldRotation(joint, aim.WorldRotation(scene))
		if err := rc.Connect(aim); err != nil {
			return err
		}
	}
	return nil
}

// connectScale は区間終点のスケール(伸縮時は体積)を捩りジョイントへ伝える。
func (d *TwistDistributor) connectScale(rc *RigContext, chain *KinematicChain, group *TwistGroup, j int, joint int) error {
	scene := rc.Scene
	useVolume := chain.Stretch != nil
	if useVolume {
		ratio := float64(j) / float64(len(group.Joints)-1)
		sink := dataflow.AttrSink{Node: joint, Attr: model.ATTR_VOLUME}
		scene.MustGet(joint).AddAttribute(model.NewFloatAttribute(model.ATTR_VOLUME, 1)).Keyable = false
		if err := chain.Stretch.connectVolume(rc, scene.MustGet(joint).Name+"_volume", chain.Stretch.PositionAt(group.Segment, ratio), group.Segment, sink); err != nil {
			return err
		}
	}
	return rc.Connect(&dataflow.TwistScaleOperator{
		Label:     scene.MustGet(joint).Name + "_scale",
		Source:    group.End,
		Driven:    joint,
		UseVolume: useVolume,
	})
}
