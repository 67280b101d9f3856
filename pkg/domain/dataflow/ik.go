// 指示: miu200521358
package dataflow

import (
	"fmt"
	"math"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const (
	fabrikIterations = 16
	fabrikTolerance  = 1e-6
)

// IkSolveOperator はIKジョイント列を目標位置へ解く。計算はチェーン親の空間で行う。
// 2ジョイントはエイム、3ジョイントは解析的2ボーン解、それ以上はFABRIKで解く。
// 末端ジョイントの回転は出力しない(IKコントロールへの回転拘束で決める)。
type IkSolveOperator struct {
	Label  string
	Joints []int
	Target int
	// Pole は曲げ平面を決めるポール。-1 の場合は初期の曲げ平面を維持する。
	Pole          int
	restRotations []mmath.Quaternion
	restFrames    []mmath.Quaternion
	restNormal    mmath.Vec3
	scene         *model.Scene
}

// NewIkSolveOperator は現在の姿勢を初期姿勢として記録したIK演算を生成する。
func NewIkSolveOperator(scene *model.Scene, label string, joints []int, target int, pole int) (*IkSolveOperator, error) {
	if len(joints) < 2 {
		return nil, fmt.Errorf("IKには2つ以上のジョイントが必要です: %s joints=%d", label, len(joints))
	}
	for i := 1; i < len(joints); i++ {
		node, err := scene.Get(joints[i])
		if err != nil {
			return nil, err
		}
		if node.ParentIndex != joints[i-1] {
			return nil, fmt.Errorf("IKジョイントが連続した親子になっていません: %s", node.Name)
		}
	}
	op := &IkSolveOperator{Label: label, Joints: joints, Target: target, Pole: pole, scene: scene}
	positions, rotations := op.parentSpacePose(scene)
	op.restRotations = rotations
	op.restNormal = restBendNormal(positions, rotations[0])
	op.restFrames = make([]mmath.Quaternion, len(joints)-1)
	for i := 0; i < len(joints)-1; i++ {
		op.restFrames[i] = mmath.NewQuaternionFromDirection(positions[i+1].Subed(positions[i]), op.restNormal)
	}
	return op, nil
}

func restBendNormal(positions []mmath.Vec3, rootRotation mmath.Quaternion) mmath.Vec3 {
	for i := 1; i+1 < len(positions); i++ {
		normal := positions[i].Subed(positions[i-1]).Cross(positions[i+1].Subed(positions[i])).Normalized()
		if !normal.IsZero() {
			return normal
		}
	}
	return rootRotation.AxisZ()
}

func (o *IkSolveOperator) Name() string { return o.Label }

func (o *IkSolveOperator) Kind() string { return "ikSolve" }

func (o *IkSolveOperator) Inputs() []Plug {
	inputs := append([]Plug{}, parentWorldPlugs(o.scene, o.Joints[0])...)
	for _, joint := range o.Joints {
		inputs = append(inputs, TranslatePlug(joint))
	}
	inputs = append(inputs, positionPlugs(o.scene, o.Target)...)
	if o.Pole >= 0 {
		inputs = append(inputs, positionPlugs(o.scene, o.Pole)...)
	}
	return inputs
}

func (o *IkSolveOperator) Outputs() []Plug {
	outputs := make([]Plug, 0, len(o.Joints)-1)
	for _, joint := range o.Joints[:len(o.Joints)-1] {
		outputs = append(outputs, RotatePlug(joint))
	}
	return outputs
}

// parentSpacePose はチェーン親空間でのジョイント位置と回転を返す。
func (o *IkSolveOperator) parentSpacePose(scene *model.Scene) ([]mmath.Vec3, []mmath.Quaternion) {
	positions := make([]mmath.Vec3, len(o.Joints))
	rotations := make([]mmath.Quaternion, len(o.Joints))
	root := scene.MustGet(o.Joints[0])
	positions[0] = root.Translation
	rotations[0] = root.Rotation.Normalized()
	for i := 1; i < len(o.Joints); i++ {
		node := scene.MustGet(o.Joints[i])
		positions[i] = positions[i-1].Added(rotations[i-1].Rotated(node.Translation))
		rotations[i] = rotations[i-1].Muled(node.Rotation)
	}
	return positions, rotations
}

func (o *IkSolveOperator) lengths(scene *model.Scene) []float64 {
	lengths := make([]float64, len(o.Joints)-1)
	for i := 1; i < len(o.Joints); i++ {
		lengths[i-1] = scene.MustGet(o.Joints[i]).Translation.Length()
	}
	return lengths
}

// Solve はチェーン親空間での解の位置列と曲げ平面の法線を返す。
func (o *IkSolveOperator) Solve(scene *model.Scene) ([]mmath.Vec3, mmath.Vec3) {
	parent := scene.ParentWorldTransform(o.Joints[0])
	origin := scene.MustGet(o.Joints[0]).Translation
	target := parent.InverseTransformPoint(scene.WorldPosition(o.Target))
	lengths := o.lengths(scene)
	normal := o.bendNormal(scene, parent, origin, target)

	axis := target.Subed(origin)
	distance := axis.Length()
	x := axis.Normalized()
	if x.IsZero() {
		x = o.restFrames[0].AxisX()
		distance = 0
	}
	// y は曲げ側(中間ジョイントが出る側)
	y := x.Cross(normal).Normalized()
	if y.IsZero() {
		y = x.AnyPerpendicular()
	}

	switch len(o.Joints) {
	case 2:
		return []mmath.Vec3{origin, origin.Added(x.MuledScalar(lengths[0]))}, normal
	case 3:
		return solveTwoBone(origin, x, y, distance, lengths[0], lengths[1]), normal
	default:
		return solveFabrik(origin, target, x, y, lengths), normal
	}
}

// bendNormal はポール(なければ初期平面)から曲げ平面の法線を返す。
func (o *IkSolveOperator) bendNormal(scene *model.Scene, parent mmath.Transform, origin mmath.Vec3, target mmath.Vec3) mmath.Vec3 {
	x := target.Subed(origin).Normalized()
	if o.Pole >= 0 && !x.IsZero() {
		pole := parent.InverseTransformPoint(scene.WorldPosition(o.Pole))
		y := pole.Subed(origin).Rejected(x).Normalized()
		if !y.IsZero() {
			return y.Cross(x).Normalized()
		}
	}
	normal := o.restNormal.Rejected(x).Normalized()
	if normal.IsZero() {
		return o.restNormal
	}
	return normal
}

func solveTwoBone(origin, x, y mmath.Vec3, distance, upper, lower float64) []mmath.Vec3 {
	reach := upper + lower
	distance = mmath.Clamped(distance, math.Abs(upper-lower), reach)
	a := 0.0
	if distance > mmath.EPSILON {
		a = (upper*upper - lower*lower + distance*distance) / (2 * distance)
	}
	h := math.Sqrt(math.Max(0, upper*upper-a*a))
	mid := origin.Added(x.MuledScalar(a)).Added(y.MuledScalar(h))
	end := mid.Added(origin.Added(x.MuledScalar(distance)).Subed(mid).Normalized().MuledScalar(lower))
	return []mmath.Vec3{origin, mid, end}
}

func solveFabrik(origin, target, x, y mmath.Vec3, lengths []float64) []mmath.Vec3 {
	total := 0.0
	for _, l := range lengths {
		total += l
	}
	// 曲げ平面上の弧で初期化する
	positions := make([]mmath.Vec3, len(lengths)+1)
	positions[0] = origin
	run := 0.0
	for i, l := range lengths {
		run += l
		s := run / total
		positions[i+1] = origin.Added(x.MuledScalar(run * 0.9)).Added(y.MuledScalar(math.Sin(math.Pi*s) * total * 0.1))
	}
	if origin.Distance(target) >= total {
		dir := target.Subed(origin).Normalized()
		for i, l := range lengths {
			positions[i+1] = positions[i].Added(dir.MuledScalar(l))
		}
		return positions
	}
	last := len(positions) - 1
	for iteration := 0; iteration < fabrikIterations; iteration++ {
		positions[last] = target
		for i := last - 1; i >= 0; i-- {
			dir := positions[i].Subed(positions[i+1]).Normalized()
			positions[i] = positions[i+1].Added(dir.MuledScalar(lengths[i]))
		}
		positions[0] = origin
		for i := 0; i < last; i++ {
			dir := positions[i+1].Subed(positions[i]).Normalized()
			positions[i+1] = positions[i].Added(dir.MuledScalar(lengths[i]))
		}
		if positions[last].Distance(target) <= fabrikTolerance {
			break
		}
	}
	return positions
}

func (o *IkSolveOperator) Evaluate(scene *model.Scene) error {
	positions, normal := o.Solve(scene)
	previous := mmath.IdentityQuaternion()
	for i := 0; i < len(o.Joints)-1; i++ {
		frame := mmath.NewQuaternionFromDirection(positions[i+1].Subed(positions[i]), normal)
		rotation := frame.Muled(o.restFrames[i].Inverted()).Muled(o.restRotations[i])
		node := scene.MustGet(o.Joints[i])
		if i == 0 {
			node.Rotation = rotation
		} else {
			node.Rotation = previous.Inverted().Muled(rotation)
		}
		previous = rotation
	}
	return nil
}
