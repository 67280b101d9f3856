// 指示: miu200521358
package skeleton

import (
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// jointDocument はワールド座標のジョイント一覧で書かれたスケルトンJSONを表す。
type jointDocument struct {
	Character string          `json:"character"`
	Joints    []jointDocEntry `json:"joints"`
}

// jointDocEntry はジョイント1件を表す。親は名前で参照する。
type jointDocEntry struct {
	Name     string    `json:"name"`
	Parent   string    `json:"parent"`
	Position []float64 `json:"position"`
}

// buildJointScene はジョイント一覧からシーンを構築し、スキンジョイント数を返す。
// 親は子より前に定義されている必要はなく、名前解決できない親はエラーにする。
func buildJointScene(doc *jointDocument) (*model.Scene, int, error) {
	byName := make(map[string]int, len(doc.Joints))
	for i, joint := range doc.Joints {
		name := strings.TrimSpace(joint.Name)
		if name == "" {
			return nil, 0, io_common.NewIoParseFailed("ジョイント名が空です: index=%d", nil, i)
		}
		if _, exists := byName[name]; exists {
			return nil, 0, io_common.NewIoParseFailed("ジョイント名が重複しています: %s", nil, name)
		}
		byName[name] = i
	}

	parents := make([]int, len(doc.Joints))
	for i, joint := range doc.Joints {
		parents[i] = -1
		parentName := strings.TrimSpace(joint.Parent)
		if parentName == "" {
			continue
		}
		parentIndex, ok := byName[parentName]
		if !ok {
			return nil, 0, io_common.NewIoParseFailed("親ジョイントが見つかりません: %s -> %s", nil, joint.Name, parentName)
		}
		parents[i] = parentIndex
	}

	order := make([]int, 0, len(doc.Joints))
	state := make([]int, len(doc.Joints))
	for i := range doc.Joints {
		if err := resolveNodeOrder(parents, i, state, &order); err != nil {
			return nil, 0, err
		}
	}

	scene := model.NewScene()
	sceneIndexes := make([]int, len(doc.Joints))
	jointCount := 0
	for _, jointIndex := range order {
		joint := doc.Joints[jointIndex]
		position, err := mmath.NewVec3FromSlice(joint.Position)
		if err != nil {
			return nil, 0, io_common.NewIoParseFailed("ジョイント座標が不正です: %s", err, joint.Name)
		}
		name := strings.TrimSpace(joint.Name)
		kind := model.NODE_KIND_GROUP
		if isSkinJointName(name) {
			kind = model.NODE_KIND_JOINT
			jointCount++
		}
		node := model.NewNode(name, kind)
		if parentIndex := parents[jointIndex]; parentIndex >= 0 {
			node.ParentIndex = sceneIndexes[parentIndex]
		}
		index, err := scene.Add(node)
		if err != nil {
			return nil, 0, io_common.NewIoParseFailed("ジョイントを追加できません: %s", err, name)
		}
		scene.SetWorldPosition(index, position)
		sceneIndexes[jointIndex] = index
	}
	return scene, jointCount, nil
}
