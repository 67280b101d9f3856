// 指示: miu200521358
package minteractor

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// SplineRig はスプライン駆動ゾーンの構築結果を表す。
type SplineRig struct {
	Zone string
	// Curve は駆動曲線ノード。
	Curve int
	// Drivers はCVごとのドライバ(CVと同じ順)。
	Drivers []int
	// Controls はドライバの親コントロール(CVと同じ順)。
	Controls []int
	// Sources は元のスキンジョイント(ルートから先端)。
	Sources []int
	// Joints は曲線に拘束されたメインジョイント。
	Joints []int
	// Locators はジョイントごとの曲線上ロケータ。
	Locators []int
	// UpVectors はジョイントごとのアップベクトル(末端を除く)。
	UpVectors []int
	// Parameters はジョイントごとの固定曲線パラメータ。
	Parameters []float64
	// Residual はフィット後の最大残差。
	Residual float64
}

// SplineDriverBuilder はジョイント列に沿う駆動曲線とドライバを構築する。
type SplineDriverBuilder struct {
	Spans          int
	Degree         int
	Iterations     int
	Tolerance      float64
	UpVectorOffset float64
}

// NewSplineDriverBuilder は調整値からSplineDriverBuilderを生成する。
func NewSplineDriverBuilder(settings RigSettings) *SplineDriverBuilder {
	return &SplineDriverBuilder{
		Spans:          settings.CurveSpans,
		Degree:         settings.CurveDegree,
		Iterations:     settings.RelaxIterations,
		Tolerance:      settings.RelaxTolerance,
		UpVectorOffset: settings.UpVectorOffset,
	}
}

// FitCurve は点列を通る曲線を固定スパン数・次数で作り、内側CVの緩和で点列へ寄せる。
// 端のCVは最初と最後の点に固定する。戻り値は曲線、最大残差、実行した緩和回数。
func (b *SplineDriverBuilder) FitCurve(points []mmath.Vec3) (*model.SplineCurve, float64, int, error) {
	if len(points) < 2 {
		return nil, 0, 0, merrors.NewStructuralInvariantError("曲線フィットには2点以上が必要です: points=%d", len(points))
	}
	cvCount := b.Spans + b.Degree
	curve, err := model.NewClampedSplineCurve(make([]mmath.Vec3, cvCount), b.Degree)
	if err != nil {
		return nil, 0, 0, err
	}
	// 補間曲線(折れ線)を弧長で再標本化して初期CVにする
	polyline := newPolyline(points)
	for i, u := range curve.GrevilleParameters() {
		curve.CVs[i] = polyline.At(u)
	}
	curve.CVs[0] = points[0]
	curve.CVs[cvCount-1] = points[len(points)-1]

	residual := maxResidual(curve, points)
	iterations := 0
	for iterations < b.Iterations && residual > b.Tolerance {
		iterations++
		for _, p := range points {
			onCurve := curve.Point(curve.ClosestParameter(p))
			nearest := nearestInteriorCV(curve, p)
			if nearest < 0 {
				break
			}
			curve.CVs[nearest] = curve.CVs[nearest].Added(p.Subed(onCurve))
		}
		residual = maxResidual(curve, points)
		logRigDebug("曲線緩和: iteration=%d residual=%.5f", iterations, residual)
	}
	return curve, residual, iterations, nil
}

func maxResidual(curve *model.SplineCurve, points []mmath.Vec3) float64 {
	worst := 0.0
	for _, p := range points {
		if d := curve.DistanceTo(p); d > worst {
			worst = d
		}
	}
	return worst
}

// nearestInteriorCV は端を除いて点 p に最も近いCVのindexを返す。
func nearestInteriorCV(curve *model.SplineCurve, p mmath.Vec3) int {
	best := -1
	bestDistance := 0.0
	for i := 1; i < len(curve.CVs)-1; i++ {
		d := curve.CVs[i].Distance(p)
		if best < 0 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	return best
}

// polyline は弧長で引ける折れ線を表す。
type polyline struct {
	points []mmath.Vec3
	runs   []float64
}

func newPolyline(points []mmath.Vec3) *polyline {
	runs := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		runs[i] = runs[i-1] + points[i].Distance(points[i-1])
	}
	return &polyline{points: points, runs: runs}
}

// At は正規化弧長 t の位置を返す。
func (p *polyline) At(t float64) mmath.Vec3 {
	total := p.runs[len(p.runs)-1]
	if total <= mmath.EPSILON {
		return p.points[0]
	}
	target := mmath.Clamped(t, 0, 1) * total
	for i := 1; i < len(p.points); i++ {
		if target <= p.runs[i] || i == len(p.points)-1 {
			span := p.runs[i] - p.runs[i-1]
			if span <= mmath.EPSILON {
				return p.points[i]
			}
			return p.points[i-1].Lerp(p.points[i], (target-p.runs[i-1])/span)
		}
	}
	return p.points[len(p.points)-1]
}

// Build はゾーンのジョイント列から駆動曲線・CVドライバ・コントロール・メインジョイントを構築する。
// コントロールとメインジョイントの先頭は parent の下に置く。
func (b *SplineDriverBuilder) Build(rc *RigContext, zoneJoints []int, zone string, parent int) (*SplineRig, error) {
	if err := rc.ensureOpen(); err != nil {
		return nil, err
	}
	if len(zoneJoints) < 2 {
		return nil, merrors.NewStructuralInvariantError("スプラインゾーンには2つ以上のジョイントが必要です: zone=%s joints=%d", zone, len(zoneJoints))
	}
	scene := rc.Scene
	positions := make([]mmath.Vec3, len(zoneJoints))
	for i, joint := range zoneJoints {
		positions[i] = scene.WorldPosition(joint)
	}
	curve, residual, iterations, err := b.FitCurve(positions)
	if err != nil {
		return nil, err
	}
	if residual > b.Tolerance {
		rc.Warn(model.RigWarningCurveFitResidual, "曲線フィットが許容値に収まりません: zone=%s residual=%.4f tolerance=%.4f", zone, residual, b.Tolerance)
	}
	logRigInfo("曲線フィット: zone=%s cvs=%d iterations=%d residual=%.4f", zone, len(curve.CVs), iterations, residual)

	rig := &SplineRig{Zone: zone, Sources: append([]int(nil), zoneJoints...), Residual: residual}
	rig.Curve, err = rc.AddNode(rc.Name(zone, model.SIDE_NONE, "spline", model.CHAIN_TYPE_CRV), model.NODE_KIND_CURVE, rc.NoTransform)
	if err != nil {
		return nil, err
	}
	scene.MustGet(rig.Curve).Curve = curve

	lateral := lateralAxis(positions[len(positions)-1].Subed(positions[0]))
	if err := b.buildDrivers(rc, rig, curve, zone, parent); err != nil {
		return nil, err
	}
	if err := b.buildJoints(rc, rig, curve, lateral, parent); err != nil {
		return nil, err
	}
	if err := b.buildUpVectors(rc, rig, curve, lateral); err != nil {
		return nil, err
	}
	if err := b.bindJoints(rc, rig); err != nil {
		return nil, err
	}
	return rig, nil
}

// lateralAxis は鎖方向に直交する横方向(ワールドX優先)を返す。
func lateralAxis(chain mmath.Vec3) mmath.Vec3 {
	direction := chain.Normalized()
	if direction.IsZero() {
		return mmath.UNIT_X_VEC3
	}
	lateral := mmath.UNIT_X_VEC3.Rejected(direction).Normalized()
	if lateral.IsZero() {
		return direction.AnyPerpendicular()
	}
	return lateral
}

// buildDrivers はCVごとにコントロールとドライバを作り、ドライバ→CVの一方向接続を張る。
func (b *SplineDriverBuilder) buildDrivers(rc *RigContext, rig *SplineRig, curve *model.SplineCurve, zone string, parent int) error {
	for i, cv := range curve.CVs {
		control, err := rc.Controllers.Create(rc, ControllerSpec{
			Name:       rc.Name(zone, model.SIDE_NONE, "spline", model.CHAIN_TYPE_CTR).WithIndex(i + 1),
			Type:       SHAPE_CIRCLE,
			Parent:     parent,
			Position:   cv,
			Rotation:   mmath.IdentityQuaternion(),
			Scale:      2,
			ColorIndex: COLOR_INDEX_CENTER,
			LockMask:   model.CHANNEL_SCALE | model.CHANNEL_VISIBILITY,
		})
		if err != nil {
			return err
		}
		driver, err := rc.AddNode(rc.Name(zone, model.SIDE_NONE, "spline", model.CHAIN_TYPE_DRIVER).WithIndex(i+1), model.NODE_KIND_DRIVER, control)
		if err != nil {
			return err
		}
		rig.Controls = append(rig.Controls, control)
		rig.Drivers = append(rig.Drivers, driver)
	}
	op, err := dataflow.NewCvDriverOperator(rc.Scene, rc.Scene.MustGet(rig.Curve).Name+"_cvDriver", rig.Curve, rig.Drivers)
	if err != nil {
		return err
	}
	return rc.Connect(op)
}

// buildJoints は曲線上の固定パラメータ位置にメインジョイント列を作る。
func (b *SplineDriverBuilder) buildJoints(rc *RigContext, rig *SplineRig, curve *model.SplineCurve, lateral mmath.Vec3, parent int) error {
	scene := rc.Scene
	points := make([]mmath.Vec3, len(rig.Sources))
	for i, source := range rig.Sources {
		u := curve.ClosestParameter(scene.WorldPosition(source))
		rig.Parameters = append(rig.Parameters, u)
		points[i] = curve.Point(u)
	}
	jointParent := parent
	for i, source := range rig.Sources {
		name, err := derivedName(scene, source, model.CHAIN_TYPE_MAIN_JOINT)
		if err != nil {
			return err
		}
		rotation := chainRotation(points, i, lateral)
		joint, err := rc.AddNodeAt(name, model.NODE_KIND_JOINT, jointParent, points[i], rotation)
		if err != nil {
			return err
		}
		locator, err := rc.AddNodeAt(name.WithRole(name.Role+"Curve").With(model.CHAIN_TYPE_LOC), model.NODE_KIND_LOCATOR, rc.NoTransform, points[i], rotation)
		if err != nil {
			return err
		}
		op := dataflow.NewPointOnCurveOperator(scene, scene.MustGet(locator).Name+"_pointOnCurve", rig.Curve, rig.Parameters[i], locator)
		if err := rc.Connect(op); err != nil {
			return err
		}
		rig.Joints = append(rig.Joints, joint)
		rig.Locators = append(rig.Locators, locator)
		jointParent = joint
	}
	return nil
}

// chainRotation は i 番目の点の向き(X軸を次の点、Z軸を normal 側)を返す。末端は直前と同じ向き。
func chainRotation(points []mmath.Vec3, i int, normal mmath.Vec3) mmath.Quaternion {
	if i+1 < len(points) {
		return mmath.NewQuaternionFromDirection(points[i+1].Subed(points[i]), normal)
	}
	if i > 0 {
		return mmath.NewQuaternionFromDirection(points[i].Subed(points[i-1]), normal)
	}
	return mmath.IdentityQuaternion()
}

// buildUpVectors は末端を除く各ジョイントのアップベクトルを作る。先頭と最後は端のコントロールに付け、
// 内側は正規化弧長で両端のアップベクトルを補間する。
func (b *SplineDriverBuilder) buildUpVectors(rc *RigContext, rig *SplineRig, curve *model.SplineCurve, lateral mmath.Vec3) error {
	scene := rc.Scene
	count := len(rig.Joints) - 1
	offset := lateral.MuledScalar(b.UpVectorOffset)
	for i := 0; i < count; i++ {
		name, err := model.ParseRigName(scene.MustGet(rig.Joints[i]).Name)
		if err != nil {
			return err
		}
		parent := rc.NoTransform
		switch i {
		case 0:
			parent = rig.Controls[0]
		case count - 1:
			parent = rig.Controls[len(rig.Controls)-1]
		}
		up, err := rc.AddNodeAt(name.WithRole(name.Role+"Up").With(model.CHAIN_TYPE_LOC), model.NODE_KIND_LOCATOR, parent,
			scene.WorldPosition(rig.Joints[i]).Added(offset), mmath.IdentityQuaternion())
		if err != nil {
			return err
		}
		rig.UpVectors = append(rig.UpVectors, up)
	}
	if count < 3 {
		return nil
	}

	first, last := rig.UpVectors[0], rig.UpVectors[count-1]
	s0 := curve.NormalizedArcLength(rig.Parameters[0])
	s1 := curve.NormalizedArcLength(rig.Parameters[count-1])
	for i := 1; i < count-1; i++ {
		w := 0.0
		if s1-s0 > mmath.EPSILON {
			w = (curve.NormalizedArcLength(rig.Parameters[i]) - s0) / (s1 - s0)
		}
		constraint, err := dataflow.NewPointConstraint(scene, scene.MustGet(rig.UpVectors[i]).Name+"_blend",
			[]int{first, last}, []dataflow.Source{dataflow.ConstSource{V: 1 - w}, dataflow.ConstSource{V: w}}, rig.UpVectors[i])
		if err != nil {
			return err
		}
		constraint.Offset = scene.WorldPosition(rig.UpVectors[i]).Subed(constraint.Position(scene))
		if err := rc.Connect(constraint); err != nil {
			return err
		}
	}
	return nil
}

// bindJoints は各ジョイントを曲線上ロケータへ位置拘束し、次のロケータへアップベクトル付きでエイムさせる。
// 末端ジョイントは最後のコントロールの回転に従う。
func (b *SplineDriverBuilder) bindJoints(rc *RigContext, rig *SplineRig) error {
	scene := rc.Scene
	last := len(rig.Joints) - 1
	for i, joint := range rig.Joints {
		name := scene.MustGet(joint).Name
		point, err := dataflow.NewPointConstraint(scene, name+"_point", []int{rig.Locators[i]}, []dataflow.Source{dataflow.ConstSource{V: 1}}, joint)
		if err != nil {
			return err
		}
		if err := rc.Connect(point); err != nil {
			return err
		}
		if i == last {
			orient := dataflow.NewOrientConstraint(scene, name+"_orient", rig.Controls[len(rig.Controls)-1], joint, true)
			if err := rc.Connect(orient); err != nil {
				return err
			}
			continue
		}
		aim := dataflow.NewAimConstraint(scene, name+"_aim", rig.Locators[i+1], joint, dataflow.AXIS_Z, dataflow.UP_MODE_OBJECT, rig.UpVectors[i], mmath.ZERO_VEC3)
		if err := rc.Connect(aim); err != nil {
			return err
		}
	}
	return nil
}

// derivedName はスキンジョイント名の系列種別を差し替えた名前を返す。
func derivedName(scene *model.Scene, source int, chainType model.ChainType) (model.RigName, error) {
	node, err := scene.Get(source)
	if err != nil {
		return model.RigName{}, err
	}
	name, err := model.ParseRigName(node.Name)
	if err != nil {
		return model.RigName{}, fmt.Errorf("スキンジョイント名を解析できません: %w", err)
	}
	return name.With(chainType), nil
}
