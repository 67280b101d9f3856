// 指示: miu200521358
package minteractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

// AutoRigUsecaseDeps はリグ構築ユースケースの依存を表す。
type AutoRigUsecaseDeps struct {
	SkeletonReader moutput.ISkeletonReader
	RigWriter      moutput.IRigWriter
	ShapeLibrary   moutput.IShapeLibrary
}

// AutoRigUsecase はスケルトンからIK/FKリグを構築するユースケースを表す。
type AutoRigUsecase struct {
	skeletonReader moutput.ISkeletonReader
	rigWriter      moutput.IRigWriter
	shapeLibrary   moutput.IShapeLibrary
}

// NewAutoRigUsecase はリグ構築ユースケースを生成する。
func NewAutoRigUsecase(deps AutoRigUsecaseDeps) *AutoRigUsecase {
	return &AutoRigUsecase{
		skeletonReader: deps.SkeletonReader,
		rigWriter:      deps.RigWriter,
		shapeLibrary:   deps.ShapeLibrary,
	}
}

// LoadSkeleton はスケルトンを読み込む。
func (uc *AutoRigUsecase) LoadSkeleton(rep moutput.ISkeletonReader, path string) (*moutput.SkeletonData, error) {
	reader := rep
	if reader == nil {
		reader = uc.skeletonReader
	}
	if reader == nil {
		return nil, fmt.Errorf("スケルトン読み込みリポジトリが設定されていません")
	}
	if !reader.CanLoad(path) {
		return nil, fmt.Errorf("読み込めないスケルトン形式です: %s", path)
	}
	return reader.Load(path)
}

// SaveReport は構築結果を書き出す。
func (uc *AutoRigUsecase) SaveReport(rep moutput.IRigWriter, path string, report *RigReport) error {
	writer := rep
	if writer == nil {
		writer = uc.rigWriter
	}
	if writer == nil {
		return fmt.Errorf("構築結果保存リポジトリが設定されていません")
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("保存先パスが未指定です")
	}
	if report == nil {
		return fmt.Errorf("保存対象の構築結果が未設定です")
	}
	return writer.Save(path, report)
}

// BuildRig はスケルトンの各ゾーンを構築し、スキンジョイントを拘束して構築結果を返す。
func (uc *AutoRigUsecase) BuildRig(request BuildRigRequest) (*BuildRigResult, error) {
	skeleton := request.Skeleton
	if skeleton == nil {
		if strings.TrimSpace(request.InputPath) == "" {
			return nil, fmt.Errorf("入力スケルトンパスが未指定です")
		}
		loaded, err := uc.LoadSkeleton(nil, request.InputPath)
		if err != nil {
			return nil, err
		}
		skeleton = loaded
	}
	if skeleton == nil || skeleton.Scene == nil {
		return nil, fmt.Errorf("スケルトン読み込み結果が空です")
	}
	reportRigProgress(request.ProgressReporter, RigProgressEvent{
		Type:      RigProgressEventTypeSkeletonLoaded,
		NodeCount: skeleton.Scene.Len(),
	})

	settings := request.Settings
	if settings.CurveSpans <= 0 {
		settings = DefaultRigSettings()
	}
	rc := NewRigContext(skeleton.Character, skeleton.Scene, settings, uc.shapeLibrary)
	if err := rc.Open(); err != nil {
		return nil, err
	}
	defer func() {
		if rc.IsOpen() {
			_ = rc.Close()
		}
	}()
	reportRigProgress(request.ProgressReporter, RigProgressEvent{Type: RigProgressEventTypeContextOpened})
	logRigInfo("リグ構築開始: character=%s run=%s joints=%d", rc.Character, rc.RunID, skeleton.Scene.Len())

	zones, err := uc.BuildZones(rc, request.ProgressReporter)
	if err != nil {
		return nil, err
	}
	bound, err := uc.BindSkin(rc)
	if err != nil {
		return nil, err
	}
	reportRigProgress(request.ProgressReporter, RigProgressEvent{
		Type:          RigProgressEventTypeSkinBound,
		NodeCount:     bound,
		OperatorCount: rc.Graph.Len(),
	})
	if err := rc.Evaluate(); err != nil {
		return nil, err
	}
	reportRigProgress(request.ProgressReporter, RigProgressEvent{
		Type:          RigProgressEventTypeGraphEvaluated,
		NodeCount:     rc.Scene.Len(),
		OperatorCount: rc.Graph.Len(),
	})

	result := &BuildRigResult{
		RunID:    rc.RunID,
		Context:  rc,
		Zones:    zones,
		Warnings: rc.Warnings(),
	}
	result.Report = NewRigReport(rc, zones)
	if outputPath := strings.TrimSpace(request.OutputPath); outputPath != "" {
		if err := uc.SaveReport(nil, outputPath, result.Report); err != nil {
			return nil, err
		}
		result.OutputPath = outputPath
		reportRigProgress(request.ProgressReporter, RigProgressEvent{Type: RigProgressEventTypeReportSaved})
	}
	if err := rc.Close(); err != nil {
		return nil, err
	}
	logRigInfo("リグ構築完了: character=%s nodes=%d operators=%d warnings=%d",
		rc.Character, rc.Scene.Len(), rc.Graph.Len(), len(result.Warnings))
	return result, nil
}

// Snap は構築済みリグのIK/FK切替を姿勢を保ったまま反転する。
func (uc *AutoRigUsecase) Snap(rc *RigContext, switchIndex int) (SnapDirection, error) {
	if rc == nil {
		return "", fmt.Errorf("構築コンテキストが未設定です")
	}
	return NewKinematicSnapTool(rc.Settings).Snap(rc, switchIndex)
}

// BuildZones はルート、胴、首、左右の脚と腕を順に構築する。開いたコンテキストが必要。
func (uc *AutoRigUsecase) BuildZones(rc *RigContext, reporter IRigProgressReporter) ([]*ZoneBuild, error) {
	if err := rc.ensureOpen(); err != nil {
		return nil, err
	}
	if err := buildRoot(rc); err != nil {
		return nil, err
	}
	reportRigProgress(reporter, RigProgressEvent{Type: RigProgressEventTypeRootBuilt, NodeCount: rc.Scene.Len()})

	resolver := NewZoneResolver(rc.Character)
	zones := make([]*ZoneBuild, 0)
	appendZone := func(build *ZoneBuild) {
		zones = append(zones, build)
		eventType := RigProgressEventTypeZoneBuilt
		if build.Skipped {
			eventType = RigProgressEventTypeZoneSkipped
		}
		reportRigProgress(reporter, RigProgressEvent{
			Type:          eventType,
			Zone:          build.Zone,
			Side:          build.Side,
			NodeCount:     rc.Scene.Len(),
			OperatorCount: rc.Graph.Len(),
		})
	}

	spine, err := uc.buildZone(rc, ZONE_SPINE, model.SIDE_NONE, func() (*ZoneBuild, error) {
		return buildSplineZone(rc, resolver, ZONE_SPINE, rc.RootControl)
	})
	if err != nil {
		return nil, err
	}
	appendZone(spine)
	if spine.Spline == nil {
		return nil, fmt.Errorf("胴の構築結果がありません: %s", rc.Character)
	}
	spineTop := spine.Spline.Joints[len(spine.Spline.Joints)-1]
	spineBase := spine.Spline.Joints[0]

	neck, err := uc.buildZone(rc, ZONE_NECK, model.SIDE_NONE, func() (*ZoneBuild, error) {
		build, err := buildSplineZone(rc, resolver, ZONE_NECK, spineTop)
		if err != nil || build.Skipped {
			return build, err
		}
		return build, isolateHead(rc, build.Spline, spineTop)
	})
	if err != nil {
		return nil, err
	}
	appendZone(neck)

	for _, side := range model.Sides() {
		leg, err := uc.buildZone(rc, ZONE_LEG, side, func() (*ZoneBuild, error) {
			return buildLimbZone(rc, resolver, ZONE_LEG, side, spineBase, mmath.UNIT_Z_VEC3, true)
		})
		if err != nil {
			return nil, err
		}
		appendZone(leg)
		arm, err := uc.buildZone(rc, ZONE_ARM, side, func() (*ZoneBuild, error) {
			return buildLimbZone(rc, resolver, ZONE_ARM, side, spineTop, mmath.UNIT_Z_NEG_VEC3, false)
		})
		if err != nil {
			return nil, err
		}
		appendZone(arm)
	}
	return zones, nil
}

// buildZone は構築キャッシュを引き、未構築の場合のみ build を実行して保持する。
func (uc *AutoRigUsecase) buildZone(rc *RigContext, zone string, side model.Side, build func() (*ZoneBuild, error)) (*ZoneBuild, error) {
	key := BuildKey{Character: rc.Character, ZoneFunction: zone, Side: side}
	if cached, ok := rc.Cache.Get(key); ok {
		rc.Warn(model.RigWarningBuildCacheHit, "構築済みのゾーンを再利用します: %s", key)
		return cached, nil
	}
	built, err := build()
	if err != nil {
		return nil, fmt.Errorf("ゾーン構築に失敗しました: %s: %w", key, err)
	}
	built.Key = key
	built.Zone = zone
	built.Side = side
	rc.Cache.Put(key, built)
	return built, nil
}

// resolveZone はゾーンを解決し、任意ゾーンが見つからない場合は警告して nil を返す。
func resolveZone(rc *RigContext, resolver *ZoneResolver, zone string, side model.Side) ([]int, error) {
	if rc.Settings.IsOptionalZone(zone) {
		joints, err := resolver.Resolve(rc.Scene, zone, side)
		if err != nil {
			return nil, err
		}
		if len(joints) == 0 {
			rc.Warn(model.RigWarningOptionalZoneAbsent, "任意ゾーンが見つからないため省略します: zone=%s side=%s", zone, side)
			return nil, nil
		}
		return joints, nil
	}
	return resolver.Require(rc.Scene, zone, side)
}

// buildRoot はリグ最上位グループ、無変換グループ、ルートコントロールを作る。
func buildRoot(rc *RigContext) error {
	var err error
	if rc.TopGroup, err = rc.AddNode(rc.Name("rig", model.SIDE_NONE, "top", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP, -1); err != nil {
		return err
	}
	if rc.NoTransform, err = rc.AddNode(rc.Name("rig", model.SIDE_NONE, "noTransform", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP, rc.TopGroup); err != nil {
		return err
	}
	rc.RootControl, err = rc.Controllers.Create(rc, ControllerSpec{
		Name:       rc.Name(ZONE_ROOT, model.SIDE_NONE, "main", model.CHAIN_TYPE_CTR),
		Type:       SHAPE_CIRCLE,
		Parent:     rc.TopGroup,
		Position:   mmath.ZERO_VEC3,
		Rotation:   mmath.IdentityQuaternion(),
		Scale:      8,
		ColorIndex: COLOR_INDEX_CENTER,
		LockMask:   model.CHANNEL_VISIBILITY,
	})
	if err != nil {
		return err
	}
	logRigDebug("ルート構築: top=%s root=%s", rc.Scene.MustGet(rc.TopGroup).Name, rc.Scene.MustGet(rc.RootControl).Name)
	return nil
}

// buildSplineZone は胴・首のようなスプライン駆動ゾーンを構築する。
func buildSplineZone(rc *RigContext, resolver *ZoneResolver, zone string, parent int) (*ZoneBuild, error) {
	joints, err := resolveZone(rc, resolver, zone, model.SIDE_NONE)
	if err != nil {
		return nil, err
	}
	if joints == nil {
		return &ZoneBuild{Skipped: true}, nil
	}
	rig, err := NewSplineDriverBuilder(rc.Settings).Build(rc, joints, zone, parent)
	if err != nil {
		return nil, err
	}
	return &ZoneBuild{Spline: rig}, nil
}

// isolateHead は首の先端コントロールを隔離グループの下へ移し、首の動きからの切り離し属性を付ける。
func isolateHead(rc *RigContext, neck *SplineRig, follow int) error {
	scene := rc.Scene
	head := neck.Controls[len(neck.Controls)-1]
	world := scene.WorldTransform(head)
	group, err := rc.AddNodeAt(rc.Name(ZONE_NECK, model.SIDE_NONE, "headIsolate", model.CHAIN_TYPE_GRP), model.NODE_KIND_GROUP,
		rc.TopGroup, world.Position, world.Rotation)
	if err != nil {
		return err
	}
	headNode := scene.MustGet(head)
	headNode.AddAttribute(model.NewRangeAttribute(model.ATTR_ISOLATE_ORIENT, 0, 0, 1))
	headNode.AddAttribute(model.NewRangeAttribute(model.ATTR_ISOLATE_POINT, 0, 0, 1))
	op := dataflow.NewIsolateOperator(scene, scene.MustGet(group).Name+"_isolate", group, follow, rc.controlRoot(),
		dataflow.AttrSource{Node: head, Attr: model.ATTR_ISOLATE_ORIENT},
		dataflow.AttrSource{Node: head, Attr: model.ATTR_ISOLATE_POINT})
	if err := rc.Connect(op); err != nil {
		return err
	}
	return scene.SetParent(head, group, true)
}

// buildLimbZone は脚・腕のIK/FKチェーンを構築する。脚は足先ゾーンがあれば足先コールバックを付ける。
func buildLimbZone(rc *RigContext, resolver *ZoneResolver, zone string, side model.Side, parent int, bendHint mmath.Vec3, withFoot bool) (*ZoneBuild, error) {
	joints, err := resolveZone(rc, resolver, zone, side)
	if err != nil {
		return nil, err
	}
	if joints == nil {
		return &ZoneBuild{Skipped: true}, nil
	}
	twists, err := limbTwistJoints(rc, resolver, zone, side, joints)
	if err != nil {
		return nil, err
	}
	request := ChainRequest{
		SourceJoints: joints,
		Parent:       parent,
		Zone:         zone,
		Side:         side,
		Stretch:      rc.Settings.Stretch,
		BendingBones: rc.Settings.BendingBones,
		TwistJoints:  twists,
		BendHint:     bendHint,
	}
	if withFoot {
		footJoints, err := resolveZone(rc, resolver, ZONE_FOOT, side)
		if err != nil {
			return nil, err
		}
		if footJoints != nil {
			request.Callbacks = append(request.Callbacks, FootCallback(footJoints, nil))
		}
	}
	chain, err := NewKinematicChainBuilder(rc.Settings).Build(rc, request)
	if err != nil {
		return nil, err
	}
	return &ZoneBuild{Chain: chain}, nil
}

// limbTwistJoints は捩りジョイントを主ジョイントの区間へ割り当てる。捩りジョイントがない場合は nil。
func limbTwistJoints(rc *RigContext, resolver *ZoneResolver, zone string, side model.Side, joints []int) ([][]int, error) {
	twists, err := resolver.ResolveWithKeyword(rc.Scene, zone, side, TWIST_KEYWORD)
	if err != nil || len(twists) == 0 {
		return nil, err
	}
	buckets, err := SyncTwistJoints(rc.Scene, joints, twists)
	if err != nil {
		return nil, err
	}
	for i, bucket := range buckets[:len(buckets)-1] {
		if len(bucket) == 0 {
			rc.Warn(model.RigWarningTwistBucketEmpty, "捩りジョイントが割り当てられない区間があります: zone=%s side=%s joint=%s",
				zone, side, rc.Scene.MustGet(joints[i]).Name)
		}
	}
	return buckets, nil
}

// BindSkin は全スキンジョイントを同名のメインジョイントへ親子拘束し、拘束した数を返す。
func (uc *AutoRigUsecase) BindSkin(rc *RigContext) (int, error) {
	scene := rc.Scene
	bound := 0
	var errs []error
	for _, node := range scene.Values() {
		if node.Kind != model.NODE_KIND_JOINT {
			continue
		}
		name, err := model.ParseRigName(node.Name)
		if err != nil || name.ChainType != model.CHAIN_TYPE_SKIN_JOINT || name.Character != rc.Character {
			continue
		}
		main, ok := rc.Registry.Lookup(name.With(model.CHAIN_TYPE_MAIN_JOINT).Key())
		if !ok {
			logRigDebug("メインジョイントがないため拘束しません: %s", node.Name)
			continue
		}
		op := dataflow.NewParentConstraint(scene, node.Name+"_parent", main, node.Index(), true)
		if err := rc.Connect(op); err != nil {
			errs = append(errs, err)
			continue
		}
		bound++
	}
	if len(errs) > 0 {
		return bound, errors.Join(errs...)
	}
	logRigInfo("スキン拘束: character=%s bound=%d", rc.Character, bound)
	return bound, nil
}
