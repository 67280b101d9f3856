// 指示: miu200521358
package minteractor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

// RigSettings はリグ構築の調整値を表す。
type RigSettings struct {
	CurveSpans       int
	CurveDegree      int
	RelaxIterations  int
	RelaxTolerance   float64
	PoleDistance     float64
	UpVectorOffset   float64
	FkStretchMin     float64
	FkStretchMax     float64
	TaperFloor       float64
	ControlScale     float64
	ShapeLibraryPath string
	Stretch          bool
	BendingBones     bool
	OptionalZones    []string
}

// DefaultRigSettings は既定の調整値を返す。
func DefaultRigSettings() RigSettings {
	return RigSettings{
		CurveSpans:      2,
		CurveDegree:     3,
		RelaxIterations: 4,
		RelaxTolerance:  0.05,
		PoleDistance:    5.0,
		UpVectorOffset:  5.0,
		FkStretchMin:    model.FK_STRETCH_MIN,
		FkStretchMax:    model.FK_STRETCH_MAX,
		TaperFloor:      0.25,
		ControlScale:    1.0,
		Stretch:         true,
		OptionalZones:   []string{ZONE_NECK, ZONE_FOOT},
	}
}

// IsOptionalZone はゾーンが任意か判定する。
func (s RigSettings) IsOptionalZone(zone string) bool {
	for _, optional := range s.OptionalZones {
		if strings.EqualFold(strings.TrimSpace(optional), zone) {
			return true
		}
	}
	return false
}

// BuildKey はゾーン構築キャッシュのキーを表す。
type BuildKey struct {
	Character    string
	ZoneFunction string
	Side         model.Side
}

// String は表示用文字列を返す。
func (k BuildKey) String() string {
	if k.Side == model.SIDE_NONE {
		return k.Character + "/" + k.ZoneFunction
	}
	return k.Character + "/" + k.ZoneFunction + "/" + string(k.Side)
}

// ZoneBuild はゾーン構築結果を表す。
type ZoneBuild struct {
	Key     BuildKey
	Zone    string
	Side    model.Side
	Spline  *SplineRig
	Chain   *KinematicChain
	Skipped bool
}

// BuildCache はゾーン構築結果を (character, zoneFunction, side) で保持する。
type BuildCache struct {
	mu      sync.Mutex
	entries map[BuildKey]*ZoneBuild
}

// NewBuildCache はBuildCacheを生成する。
func NewBuildCache() *BuildCache {
	return &BuildCache{entries: map[BuildKey]*ZoneBuild{}}
}

// Get はキャッシュ済みの構築結果を返す。
func (c *BuildCache) Get(key BuildKey) (*ZoneBuild, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	build, ok := c.entries[key]
	return build, ok
}

// Put は構築結果を保持する。
func (c *BuildCache) Put(key BuildKey, build *ZoneBuild) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = build
}

// Len は保持件数を返す。
func (c *BuildCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear は保持内容を破棄する。
func (c *BuildCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[BuildKey]*ZoneBuild{}
}

// RigContext は1体分のリグ構築で共有する状態を表す。
// Open から Close までの間だけ構築操作を受け付ける。
type RigContext struct {
	Character   string
	Scene       *model.Scene
	Graph       *dataflow.Graph
	Registry    *model.Registry
	Cache       *BuildCache
	Settings    RigSettings
	Controllers *ControllerFactory
	RunID       string

	// TopGroup はリグ最上位グループ。
	TopGroup int
	// NoTransform は曲線やロケータを置く無変換グループ。
	NoTransform int
	// RootControl はキャラクター全体のルートコントロール。
	RootControl int

	open     bool
	warnings []string
}

// NewRigContext は構築コンテキストを生成する。
func NewRigContext(character string, scene *model.Scene, settings RigSettings, shapes moutput.IShapeLibrary) *RigContext {
	if scene == nil {
		scene = model.NewScene()
	}
	return &RigContext{
		Character:   character,
		Scene:       scene,
		Graph:       dataflow.NewGraph(),
		Registry:    model.NewRegistry(),
		Cache:       NewBuildCache(),
		Settings:    settings,
		Controllers: NewControllerFactory(shapes, settings.ShapeLibraryPath),
		TopGroup:    -1,
		NoTransform: -1,
		RootControl: -1,
	}
}

// Open は構築を開始し、実行IDを採番する。
func (rc *RigContext) Open() error {
	if rc.open {
		return fmt.Errorf("構築コンテキストは既に開いています: %s", rc.Character)
	}
	if strings.TrimSpace(rc.Character) == "" {
		return fmt.Errorf("キャラクター名が未指定です")
	}
	rc.RunID = uuid.NewString()
	rc.open = true
	logRigDebug("構築コンテキスト開始: character=%s run=%s", rc.Character, rc.RunID)
	return nil
}

// Close は構築を終了し、構築キャッシュを破棄する。
func (rc *RigContext) Close() error {
	if !rc.open {
		return fmt.Errorf("構築コンテキストは開いていません: %s", rc.Character)
	}
	rc.open = false
	rc.Cache.Clear()
	logRigDebug("構築コンテキスト終了: character=%s run=%s", rc.Character, rc.RunID)
	return nil
}

// IsOpen は構築中か判定する。
func (rc *RigContext) IsOpen() bool {
	return rc.open
}

func (rc *RigContext) ensureOpen() error {
	if !rc.open {
		return fmt.Errorf("構築コンテキストが開かれていません: %s", rc.Character)
	}
	return nil
}

// Warn は警告IDを記録してWARNログを出力する。
func (rc *RigContext) Warn(id string, format string, params ...any) {
	rc.warnings = append(rc.warnings, id)
	logRigWarn("["+id+"] "+format, params...)
}

// Warnings は記録済みの警告ID一覧を返す。
func (rc *RigContext) Warnings() []string {
	return append([]string(nil), rc.warnings...)
}

// Name は命名規約の名前を組み立てる。
func (rc *RigContext) Name(zone string, side model.Side, role string, chainType model.ChainType) model.RigName {
	return model.RigName{Character: rc.Character, Zone: zone, Side: side, Role: role, ChainType: chainType}
}

// AddNode はノードを追加してレジストリへ登録する。
func (rc *RigContext) AddNode(name model.RigName, kind model.NodeKind, parent int) (int, error) {
	node := model.NewNode(name.String(), kind)
	node.ParentIndex = parent
	index, err := rc.Scene.Add(node)
	if err != nil {
		return -1, err
	}
	if err := rc.Registry.Register(name.Key(), index); err != nil {
		return -1, err
	}
	return index, nil
}

// AddNodeAt はノードを追加し、ワールド変換を設定する。
func (rc *RigContext) AddNodeAt(name model.RigName, kind model.NodeKind, parent int, position mmath.Vec3, rotation mmath.Quaternion) (int, error) {
	index, err := rc.AddNode(name, kind, parent)
	if err != nil {
		return -1, err
	}
	rc.Scene.SetWorldPosition(index, position)
	rc.Scene.SetWorldRotation(index, rotation)
	return index, nil
}

// Connect は評価グラフへオペレーターを追加する。
func (rc *RigContext) Connect(op dataflow.Operator) error {
	if err := rc.Graph.Add(rc.Scene, op); err != nil {
		return fmt.Errorf("評価グラフへの接続に失敗しました: %s: %w", op.Name(), err)
	}
	logGraphVerbose("接続: kind=%s name=%s", op.Kind(), op.Name())
	return nil
}

// Evaluate は評価グラフを1回評価する。
func (rc *RigContext) Evaluate() error {
	if err := rc.Graph.Evaluate(rc.Scene); err != nil {
		return fmt.Errorf("評価グラフの評価に失敗しました: %w", err)
	}
	return nil
}
