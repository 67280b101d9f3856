// 指示: miu200521358
// Package skeleton はglTF/GLB/JSONのノード階層からスキンジョイント階層を読み込む。
package skeleton

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

const (
	glbHeaderLength   = 12
	glbChunkHeadSize  = 8
	glbMagic          = 0x46546C67
	glbJSONChunkType  = 0x4E4F534A
	glbMinValidLength = glbHeaderLength + glbChunkHeadSize
)

// LoadProgressEventType はスケルトン読込進捗イベント種別を表す。
type LoadProgressEventType string

const (
	// LoadProgressEventTypeFileReadComplete はファイル読込完了イベントを表す。
	LoadProgressEventTypeFileReadComplete LoadProgressEventType = "file_read_complete"
	// LoadProgressEventTypeJsonParsed はJSON解析完了イベントを表す。
	LoadProgressEventTypeJsonParsed LoadProgressEventType = "json_parsed"
	// LoadProgressEventTypeCompleted はスケルトン読込完了イベントを表す。
	LoadProgressEventTypeCompleted LoadProgressEventType = "completed"
)

// LoadProgressEvent はスケルトン読込進捗イベントを表す。
type LoadProgressEvent struct {
	Type          LoadProgressEventType
	FileSizeBytes int
	NodeCount     int
	JointCount    int
}

// SkeletonRepository はスケルトン入力の読み込みを表す。
type SkeletonRepository struct {
	loadProgressReporter func(LoadProgressEvent)
}

// NewSkeletonRepository はSkeletonRepositoryを生成する。
func NewSkeletonRepository() *SkeletonRepository {
	return &SkeletonRepository{}
}

// SetLoadProgressReporter は読込進捗受信コールバックを設定する。
func (r *SkeletonRepository) SetLoadProgressReporter(reporter func(LoadProgressEvent)) {
	if r == nil {
		return
	}
	r.loadProgressReporter = reporter
}

// CanLoad は拡張子に応じて読み込み可否を判定する。
func (r *SkeletonRepository) CanLoad(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".gltf", ".glb":
		return true
	default:
		return false
	}
}

// InferName はパスからキャラクター名を推定する。
func (r *SkeletonRepository) InferName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if head, _, ok := strings.Cut(base, "_"); ok {
		base = head
	}
	return strings.ToLower(strings.TrimSpace(base))
}

// Load はスケルトンを読み込む。
func (r *SkeletonRepository) Load(path string) (*moutput.SkeletonData, error) {
	if !r.CanLoad(path) {
		return nil, io_common.NewIoExtInvalid(path, nil)
	}
	loadTargetName := filepath.Base(path)
	logSkeletonInfo("スケルトン読込開始: file=%s", loadTargetName)

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, io_common.NewIoFileNotFound(path, err)
		}
		return nil, io_common.NewIoParseFailed("スケルトンファイルの読み取りに失敗しました", err)
	}
	r.reportLoadProgress(LoadProgressEvent{Type: LoadProgressEventTypeFileReadComplete, FileSizeBytes: len(b)})

	jsonChunk := b
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		jsonChunk, err = parseGLBJSONChunk(b)
		if err != nil {
			return nil, err
		}
		logSkeletonDebug("GLBチャンク解析完了: jsonBytes=%d", len(jsonChunk))
	}

	scene, jointCount, character, err := r.decode(jsonChunk, len(b))
	if err != nil {
		return nil, err
	}
	if jointCount == 0 {
		logSkeletonWarn("スキンジョイントが見つかりません: file=%s", loadTargetName)
	}

	if character == "" {
		character = inferCharacter(scene)
	}
	if character == "" {
		character = r.InferName(path)
	}
	r.reportLoadProgress(LoadProgressEvent{
		Type:          LoadProgressEventTypeCompleted,
		FileSizeBytes: len(b),
		NodeCount:     scene.Len(),
		JointCount:    jointCount,
	})
	logSkeletonInfo("スケルトン読込完了: file=%s character=%s nodes=%d joints=%d", loadTargetName, character, scene.Len(), jointCount)
	return &moutput.SkeletonData{Character: character, Scene: scene}, nil
}

// decode はジョイント一覧形式、またはglTFのノード階層からシーンを構築する。
func (r *SkeletonRepository) decode(jsonChunk []byte, fileSize int) (*model.Scene, int, string, error) {
	joints := jointDocument{}
	if err := json.Unmarshal(jsonChunk, &joints); err == nil && len(joints.Joints) > 0 {
		r.reportLoadProgress(LoadProgressEvent{
			Type:          LoadProgressEventTypeJsonParsed,
			FileSizeBytes: fileSize,
			NodeCount:     len(joints.Joints),
		})
		logSkeletonInfo("スケルトン読込ステップ: ジョイント一覧解析完了 joints=%d", len(joints.Joints))
		scene, jointCount, err := buildJointScene(&joints)
		if err != nil {
			return nil, 0, "", err
		}
		return scene, jointCount, strings.TrimSpace(joints.Character), nil
	}

	doc := gltfDocument{}
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, 0, "", io_common.NewIoParseFailed("スケルトンJSONの解析に失敗しました", err)
	}
	r.reportLoadProgress(LoadProgressEvent{
		Type:          LoadProgressEventTypeJsonParsed,
		FileSizeBytes: fileSize,
		NodeCount:     len(doc.Nodes),
	})
	logSkeletonInfo("スケルトン読込ステップ: JSON解析完了 nodes=%d skins=%d", len(doc.Nodes), len(doc.Skins))

	parentIndexes, err := buildNodeParentIndexes(doc.Nodes)
	if err != nil {
		return nil, 0, "", err
	}
	order, err := buildNodeOrder(doc.Nodes, parentIndexes)
	if err != nil {
		return nil, 0, "", err
	}
	scene, jointCount, err := buildScene(&doc, parentIndexes, order)
	if err != nil {
		return nil, 0, "", err
	}
	return scene, jointCount, "", nil
}

// reportLoadProgress は読込進捗イベントを通知する。
func (r *SkeletonRepository) reportLoadProgress(event LoadProgressEvent) {
	if r == nil || r.loadProgressReporter == nil {
		return
	}
	r.loadProgressReporter(event)
}

// logSkeletonInfo はスケルトン読込のINFOログを出力する。
func logSkeletonInfo(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Info(format, params...)
}

// logSkeletonDebug はスケルトン読込のデバッグログを出力する。
func logSkeletonDebug(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Debug(format, params...)
}

// logSkeletonWarn はスケルトン読込の警告ログを出力する。
func logSkeletonWarn(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Warn(format, params...)
}

// gltfDocument はスケルトン読込に必要なglTFトップレベル要素を表す。
type gltfDocument struct {
	Asset  gltfAsset   `json:"asset"`
	Nodes  []gltfNode  `json:"nodes"`
	Skins  []gltfSkin  `json:"skins"`
	Scenes []gltfScene `json:"scenes"`
	Scene  int         `json:"scene"`
}

// gltfAsset はglTF asset要素を表す。
type gltfAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

// gltfScene はglTF scene要素を表す。
type gltfScene struct {
	Nodes []int `json:"nodes"`
}

// gltfNode はglTF node要素を表す。
type gltfNode struct {
	Name        string    `json:"name"`
	Children    []int     `json:"children"`
	Matrix      []float64 `json:"matrix"`
	Translation []float64 `json:"translation"`
	Rotation    []float64 `json:"rotation"`
	Scale       []float64 `json:"scale"`
}

// gltfSkin はglTF skin要素を表す。
type gltfSkin struct {
	Joints []int `json:"joints"`
}

// parseGLBJSONChunk はGLBバイナリからJSONチャンクを取り出す。
func parseGLBJSONChunk(b []byte) ([]byte, error) {
	if len(b) < glbMinValidLength {
		return nil, io_common.NewIoParseFailed("GLBヘッダが不足しています", nil)
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != glbMagic {
		return nil, io_common.NewIoParseFailed("GLBマジックが不正です", nil)
	}
	version := binary.LittleEndian.Uint32(b[4:8])
	if version != 2 {
		return nil, io_common.NewIoFormatNotSupported("GLBバージョンが未対応です: %d", nil, version)
	}
	totalLength := binary.LittleEndian.Uint32(b[8:12])
	if totalLength > uint32(len(b)) {
		return nil, io_common.NewIoParseFailed("GLB全体長が不正です", nil)
	}

	offset := glbHeaderLength
	for offset+glbChunkHeadSize <= len(b) {
		chunkLength := int(binary.LittleEndian.Uint32(b[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(b[offset+4 : offset+8])
		chunkStart := offset + glbChunkHeadSize
		chunkEnd := chunkStart + chunkLength
		if chunkLength < 0 || chunkEnd > len(b) {
			return nil, io_common.NewIoParseFailed("GLBチャンク長が不正です", nil)
		}
		if chunkType == glbJSONChunkType {
			return b[chunkStart:chunkEnd], nil
		}
		offset = chunkEnd
	}
	return nil, io_common.NewIoParseFailed("GLB JSONチャンクが見つかりません", nil)
}

// buildNodeParentIndexes はnode配列から親インデックス配列を生成する。
func buildNodeParentIndexes(nodes []gltfNode) ([]int, error) {
	parentIndexes := make([]int, len(nodes))
	for i := range parentIndexes {
		parentIndexes[i] = -1
	}
	for parentIndex, node := range nodes {
		for _, childIndex := range node.Children {
			if childIndex < 0 || childIndex >= len(nodes) {
				return nil, io_common.NewIoParseFailed("node.children のindexが不正です: %d", nil, childIndex)
			}
			if parentIndexes[childIndex] == -1 {
				parentIndexes[childIndex] = parentIndex
			}
		}
	}
	return parentIndexes, nil
}

// buildNodeOrder は親が子より先に並ぶnode順序を返す。
func buildNodeOrder(nodes []gltfNode, parents []int) ([]int, error) {
	order := make([]int, 0, len(nodes))
	state := make([]int, len(nodes))
	for i := range nodes {
		if err := resolveNodeOrder(parents, i, state, &order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// resolveNodeOrder は親を先に辿ってnode順序へ追加する。
func resolveNodeOrder(parents []int, nodeIndex int, state []int, order *[]int) error {
	if state[nodeIndex] == 2 {
		return nil
	}
	if state[nodeIndex] == 1 {
		return io_common.NewIoParseFailed("node親子関係に循環があります: %d", nil, nodeIndex)
	}
	state[nodeIndex] = 1
	if parentIndex := parents[nodeIndex]; parentIndex >= 0 {
		if err := resolveNodeOrder(parents, parentIndex, state, order); err != nil {
			return err
		}
	}
	state[nodeIndex] = 2
	*order = append(*order, nodeIndex)
	return nil
}

// buildScene はnode順序に従ってシーンを構築し、スキンジョイント数を返す。
func buildScene(doc *gltfDocument, parents []int, order []int) (*model.Scene, int, error) {
	skinJoints := map[int]struct{}{}
	for _, skin := range doc.Skins {
		for _, joint := range skin.Joints {
			skinJoints[joint] = struct{}{}
		}
	}

	scene := model.NewScene()
	sceneIndexes := make([]int, len(doc.Nodes))
	jointCount := 0
	for _, nodeIndex := range order {
		source := doc.Nodes[nodeIndex]
		local, err := nodeLocalTransform(source)
		if err != nil {
			return nil, 0, io_common.NewIoParseFailed("node変換の解析に失敗しました: %d", err, nodeIndex)
		}
		name := strings.TrimSpace(source.Name)
		if name == "" {
			name = fmt.Sprintf("node_%03d", nodeIndex)
		}
		kind := model.NODE_KIND_GROUP
		_, inSkin := skinJoints[nodeIndex]
		if isSkinJointName(name) || inSkin {
			kind = model.NODE_KIND_JOINT
			jointCount++
		}
		node := model.NewNode(name, kind)
		if parentIndex := parents[nodeIndex]; parentIndex >= 0 {
			node.ParentIndex = sceneIndexes[parentIndex]
		}
		node.SetLocalTransform(local)
		index, err := scene.Add(node)
		if err != nil {
			return nil, 0, io_common.NewIoParseFailed("ノードを追加できません: %s", err, name)
		}
		sceneIndexes[nodeIndex] = index
	}
	return scene, jointCount, nil
}

// nodeLocalTransform はnodeのローカル変換を返す。matrix指定時はTRSへ分解する。
func nodeLocalTransform(node gltfNode) (mmath.Transform, error) {
	if len(node.Matrix) > 0 {
		if len(node.Matrix) != 16 {
			return mmath.Transform{}, fmt.Errorf("matrix要素数が不正です: %d", len(node.Matrix))
		}
		var m mgl64.Mat4
		copy(m[:], node.Matrix)
		return decomposeMatrix(m), nil
	}

	local := mmath.IdentityTransform()
	if len(node.Translation) > 0 {
		translation, err := mmath.NewVec3FromSlice(node.Translation)
		if err != nil {
			return mmath.Transform{}, err
		}
		local.Position = translation
	}
	if len(node.Rotation) > 0 {
		if len(node.Rotation) != 4 {
			return mmath.Transform{}, fmt.Errorf("rotation要素数が不正です: %d", len(node.Rotation))
		}
		local.Rotation = mmath.NewQuaternion(node.Rotation[0], node.Rotation[1], node.Rotation[2], node.Rotation[3]).Normalized()
	}
	if len(node.Scale) > 0 {
		scale, err := mmath.NewVec3FromSlice(node.Scale)
		if err != nil {
			return mmath.Transform{}, err
		}
		local.Scale = scale
	}
	return local, nil
}

// decomposeMatrix は列優先4x4行列を位置・回転・スケールへ分解する。せん断は捨てる。
func decomposeMatrix(m mgl64.Mat4) mmath.Transform {
	axisX := mmath.NewVec3FromGl(m.Col(0).Vec3())
	axisY := mmath.NewVec3FromGl(m.Col(1).Vec3())
	axisZ := mmath.NewVec3FromGl(m.Col(2).Vec3())
	scale := mmath.NewVec3(axisX.Length(), axisY.Length(), axisZ.Length())
	rotation := mmath.IdentityQuaternion()
	if scale.X > 0 && scale.Y > 0 && scale.Z > 0 {
		rotation = mmath.NewQuaternionFromBasis(axisX.Normalized(), axisY.Normalized(), axisZ.Normalized())
	}
	return mmath.Transform{
		Position: mmath.NewVec3FromGl(m.Col(3).Vec3()),
		Rotation: rotation,
		Scale:    scale,
	}
}

// isSkinJointName は命名規約上のスキンジョイント名か判定する。
func isSkinJointName(name string) bool {
	parsed, err := model.ParseRigName(name)
	return err == nil && parsed.ChainType == model.CHAIN_TYPE_SKIN_JOINT
}

// inferCharacter はスキンジョイント名で最も多いキャラクター名を返す。
func inferCharacter(scene *model.Scene) string {
	counts := map[string]int{}
	for _, node := range scene.Values() {
		parsed, err := model.ParseRigName(node.Name)
		if err != nil || parsed.ChainType != model.CHAIN_TYPE_SKIN_JOINT {
			continue
		}
		counts[parsed.Character]++
	}
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names[0]
}
