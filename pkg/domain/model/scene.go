// 指示: miu200521358
package model

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
)

// Scene はホストアプリケーションのシーン(名前付き変換階層)を表す。
type Scene struct {
	nodes  []*Node
	byName map[string]int
}

// NewScene は空のシーンを生成する。
func NewScene() *Scene {
	return &Scene{byName: map[string]int{}}
}

// Len はノード数を返す。
func (s *Scene) Len() int {
	return len(s.nodes)
}

// Values は全ノードを index 順で返す。
func (s *Scene) Values() []*Node {
	return append([]*Node(nil), s.nodes...)
}

// Get は index のノードを返す。
func (s *Scene) Get(index int) (*Node, error) {
	if index < 0 || index >= len(s.nodes) {
		return nil, merrors.NewNodeNotFoundError(fmt.Sprintf("index=%d", index))
	}
	return s.nodes[index], nil
}

// MustGet は index のノードを返す。範囲外は panic する。構築済みindexにのみ使う。
func (s *Scene) MustGet(index int) *Node {
	node, err := s.Get(index)
	if err != nil {
		panic(err)
	}
	return node
}

// GetByName は名前でノードを返す。
func (s *Scene) GetByName(name string) (*Node, error) {
	index, ok := s.byName[name]
	if !ok {
		return nil, merrors.NewNodeNotFoundError(name)
	}
	return s.nodes[index], nil
}

// Lookup は名前でノードを探す。
func (s *Scene) Lookup(name string) (*Node, bool) {
	index, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.nodes[index], true
}

// Add はノードを追加して index を返す。同名ノードがある場合は NameConflictError を返す。
func (s *Scene) Add(node *Node) (int, error) {
	if node == nil {
		return -1, fmt.Errorf("追加対象ノードが未設定です")
	}
	if _, exists := s.byName[node.Name]; exists {
		return -1, merrors.NewNameConflictError(node.Name)
	}
	if node.ParentIndex >= len(s.nodes) {
		return -1, merrors.NewNodeNotFoundError(fmt.Sprintf("parent index=%d", node.ParentIndex))
	}
	node.index = len(s.nodes)
	s.nodes = append(s.nodes, node)
	s.byName[node.Name] = node.index
	return node.index, nil
}

// Rename はノード名を変更する。
func (s *Scene) Rename(index int, name string) error {
	node, err := s.Get(index)
	if err != nil {
		return err
	}
	if node.Name == name {
		return nil
	}
	if _, exists := s.byName[name]; exists {
		return merrors.NewNameConflictError(name)
	}
	delete(s.byName, node.Name)
	node.Name = name
	s.byName[name] = index
	return nil
}

// SetParent は親を付け替える。keepWorld が真の場合はワールド変換を維持する。
func (s *Scene) SetParent(index int, parentIndex int, keepWorld bool) error {
	node, err := s.Get(index)
	if err != nil {
		return err
	}
	if parentIndex >= 0 {
		if _, err := s.Get(parentIndex); err != nil {
			return err
		}
		for cursor := parentIndex; cursor >= 0; cursor = s.nodes[cursor].ParentIndex {
			if cursor == index {
				return fmt.Errorf("親子関係が循環します: node=%s parent=%s", node.Name, s.nodes[parentIndex].Name)
			}
		}
	}
	world := s.WorldTransform(index)
	node.ParentIndex = parentIndex
	if keepWorld {
		s.SetWorldTransform(index, world)
	}
	return nil
}

// Children は直下の子ノード index を返す。
func (s *Scene) Children(index int) []int {
	children := make([]int, 0)
	for _, node := range s.nodes {
		if node.ParentIndex == index {
			children = append(children, node.index)
		}
	}
	return children
}

// Descendants は子孫ノード index を深さ優先で返す。
func (s *Scene) Descendants(index int) []int {
	result := make([]int, 0)
	for _, child := range s.Children(index) {
		result = append(result, child)
		result = append(result, s.Descendants(child)...)
	}
	return result
}

// Depth はルートからの階層の深さ(パス長)を返す。
func (s *Scene) Depth(index int) int {
	depth := 0
	for cursor := s.nodes[index].ParentIndex; cursor >= 0; cursor = s.nodes[cursor].ParentIndex {
		depth++
	}
	return depth
}

// Path はルートから自身までの名前を '|' 区切りで返す。
func (s *Scene) Path(index int) string {
	node := s.nodes[index]
	if node.ParentIndex < 0 {
		return "|" + node.Name
	}
	return s.Path(node.ParentIndex) + "|" + node.Name
}

// ParentWorldTransform は親のワールド変換を返す。ルートの場合は単位変換を返す。
func (s *Scene) ParentWorldTransform(index int) mmath.Transform {
	node := s.nodes[index]
	if node.ParentIndex < 0 {
		return mmath.IdentityTransform()
	}
	return s.WorldTransform(node.ParentIndex)
}

// WorldTransform はワールド変換を返す。
// ジョイント同士の親子では親のローカルスケールを継承しない(位置には親スケールが掛かる)。
func (s *Scene) WorldTransform(index int) mmath.Transform {
	node := s.nodes[index]
	world := s.ParentWorldTransform(index).Composed(node.LocalTransform())
	if s.compensatesScale(index) {
		world.Scale = world.Scale.Dived(s.nodes[node.ParentIndex].Scale)
	}
	return world
}

// compensatesScale は親ジョイントのスケール補正対象か判定する。
func (s *Scene) compensatesScale(index int) bool {
	node := s.nodes[index]
	return node.Kind == NODE_KIND_JOINT && node.ParentIndex >= 0 && s.nodes[node.ParentIndex].Kind == NODE_KIND_JOINT
}

// WorldPosition はワールド位置を返す。
func (s *Scene) WorldPosition(index int) mmath.Vec3 {
	return s.WorldTransform(index).Position
}

// WorldRotation はワールド回転を返す。
func (s *Scene) WorldRotation(index int) mmath.Quaternion {
	return s.WorldTransform(index).Rotation
}

// WorldScale はワールドスケールを返す。
func (s *Scene) WorldScale(index int) mmath.Vec3 {
	return s.WorldTransform(index).Scale
}

// SetWorldPosition はワールド位置が pos になるようローカル位置を設定する。
func (s *Scene) SetWorldPosition(index int, pos mmath.Vec3) {
	parent := s.ParentWorldTransform(index)
	s.nodes[index].Translation = parent.InverseTransformPoint(pos)
}

// SetWorldRotation はワールド回転が rot になるようローカル回転を設定する。
func (s *Scene) SetWorldRotation(index int, rot mmath.Quaternion) {
	parent := s.ParentWorldTransform(index)
	s.nodes[index].Rotation = parent.Rotation.Inverted().Muled(rot)
}

// SetWorldTransform はワールド位置・回転・スケールを設定する。
func (s *Scene) SetWorldTransform(index int, world mmath.Transform) {
	parent := s.ParentWorldTransform(index)
	node := s.nodes[index]
	node.Translation = parent.InverseTransformPoint(world.Position)
	node.Rotation = parent.Rotation.Inverted().Muled(world.Rotation)
	node.Scale = world.Scale.Dived(parent.Scale)
	if s.compensatesScale(index) {
		node.Scale = node.Scale.Muled(s.nodes[node.ParentIndex].Scale)
	}
}

// Duplicate はノードを複製して新しい名前・親で追加する。
func (s *Scene) Duplicate(index int, name string, parentIndex int) (int, error) {
	source, err := s.Get(index)
	if err != nil {
		return -1, err
	}
	copied, err := source.Copy()
	if err != nil {
		return -1, err
	}
	copied.Name = name
	copied.ParentIndex = parentIndex
	return s.Add(copied)
}

// WorldMatrix はワールド変換の4x4行列(列優先)を返す。
func (s *Scene) WorldMatrix(index int) [16]float64 {
	return [16]float64(s.WorldTransform(index).Matrix())
}
