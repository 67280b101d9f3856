// 指示: miu200521358
package minteractor

import (
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// HEEL_KEYWORD は踵の位置を示すスキンジョイントの役割名に含まれる語。
const HEEL_KEYWORD = "heel"

// FootRig は足先コールバックの構築結果を表す。
type FootRig struct {
	Ball       int
	MainBall   int
	IkBall     int
	FkBall     int
	IkBallCtrl int
	HeelGroup  int
	HeelPivot  int
}

// splitFootJoints は足ゾーンのジョイントを (つま先の付け根, 踵) に分ける。踵がない場合は -1。
func splitFootJoints(scene *model.Scene, footJoints []int) (int, int, error) {
	ball, heel := -1, -1
	for _, joint := range footJoints {
		name, err := model.ParseRigName(scene.MustGet(joint).Name)
		if err != nil {
			return -1, -1, err
		}
		if strings.Contains(strings.ToLower(name.Role), HEEL_KEYWORD) {
			if heel < 0 {
				heel = joint
			}
			continue
		}
		if ball < 0 {
			ball = joint
		}
	}
	if ball < 0 {
		return -1, -1, merrors.NewStructuralInvariantError("足先ジョイントがありません: joints=%d", len(footJoints))
	}
	return ball, heel, nil
}

// FootCallback は脚チェーンに足先(ボール)の3系列と逆足ピボットを追加するコールバックを返す。
// 構築結果は out が非nilの場合に書き込む。
func FootCallback(footJoints []int, out *FootRig) ChainCallback {
	return func(rc *RigContext, chain *KinematicChain) ([]int, []int, error) {
		scene := rc.Scene
		ball, heel, err := splitFootJoints(scene, footJoints)
		if err != nil {
			return nil, nil, err
		}
		last := len(chain.Main) - 1
		ankle := scene.WorldPosition(chain.Main[last])
		ballPosition := scene.WorldPosition(ball)
		heelPosition := mmath.NewVec3(ankle.X, ballPosition.Y, ankle.Z)
		if heel >= 0 {
			heelPosition = scene.WorldPosition(heel)
		}
		rotation := mmath.NewQuaternionFromDirection(ballPosition.Subed(ankle), chain.Normal)

		foot := &FootRig{Ball: ball}
		mainName, err := derivedName(scene, ball, model.CHAIN_TYPE_MAIN_JOINT)
		if err != nil {
			return nil, nil, err
		}
		if foot.MainBall, err = rc.AddNodeAt(mainName, model.NODE_KIND_JOINT, chain.Main[last], ballPosition, rotation); err != nil {
			return nil, nil, err
		}
		if foot.IkBall, err = rc.AddNodeAt(mainName.With(model.CHAIN_TYPE_IK_JOINT), model.NODE_KIND_JOINT, chain.Ik[last], ballPosition, rotation); err != nil {
			return nil, nil, err
		}
		foot.FkBall, err = rc.Controllers.Create(rc, ControllerSpec{
			Name:       mainName.With(model.CHAIN_TYPE_FK_CTR),
			Type:       SHAPE_CIRCLE,
			Parent:     chain.Fk[last],
			Position:   ballPosition,
			Rotation:   rotation,
			Scale:      1.2,
			ColorIndex: COLOR_INDEX_SIDE,
			LockMask:   model.CHANNEL_TRANSLATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := chain.connectBlend(rc, foot.IkBall, foot.FkBall, foot.MainBall, false); err != nil {
			return nil, nil, err
		}

		// 踵ピボットはゼロ化用のグループの下に置き、スナップ時に初期化できるようにする
		ikRotation := scene.WorldRotation(chain.IkControl)
		if foot.HeelGroup, err = rc.AddNodeAt(rc.Name(ZONE_FOOT, chain.Side, "heelPivot", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP,
			chain.IkControl, heelPosition, ikRotation); err != nil {
			return nil, nil, err
		}
		foot.HeelPivot, err = rc.Controllers.Create(rc, ControllerSpec{
			Name:       rc.Name(ZONE_FOOT, chain.Side, "heelPivot", model.CHAIN_TYPE_CTR),
			Type:       SHAPE_PIVOT,
			Parent:     foot.HeelGroup,
			Position:   heelPosition,
			Rotation:   ikRotation,
			Scale:      0.6,
			ColorIndex: COLOR_INDEX_SIDE,
			LockMask:   model.CHANNEL_TRANSLATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return nil, nil, err
		}
		scene.MustGet(foot.HeelPivot).ResetTransform()

		foot.IkBallCtrl, err = rc.Controllers.Create(rc, ControllerSpec{
			Name:       mainName.With(model.CHAIN_TYPE_IK_CTR),
			Type:       SHAPE_CIRCLE,
			Parent:     foot.HeelPivot,
			Position:   ballPosition,
			Rotation:   rotation,
			Scale:      1.2,
			ColorIndex: COLOR_INDEX_SIDE,
			LockMask:   model.CHANNEL_TRANSLATE | model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return nil, nil, err
		}
		orient := dataflow.NewOrientConstraint(scene, scene.MustGet(foot.IkBall).Name+"_orient", foot.IkBallCtrl, foot.IkBall, true)
		if err := rc.Connect(orient); err != nil {
			return nil, nil, err
		}
		// IK目標を踵ピボットの下へ移し、踵を軸に足首が回るようにする
		if err := scene.SetParent(chain.IkTerminal, foot.HeelPivot, true); err != nil {
			return nil, nil, err
		}

		if out != nil {
			*out = *foot
		}
		logRigDebug("足先構築: side=%s ball=%s heel=%t", chain.Side, scene.MustGet(ball).Name, heel >= 0)
		return []int{foot.IkBallCtrl, foot.HeelPivot}, []int{foot.FkBall}, nil
	}
}
