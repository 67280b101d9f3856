// 指示: miu200521358
package dataflow

import (
	"fmt"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Operator は評価グラフ上の1演算を表す。
type Operator interface {
	// Name は演算名を返す。
	Name() string
	// Kind は演算種別を返す。
	Kind() string
	// Inputs は読み取るプラグを返す。
	Inputs() []Plug
	// Outputs は書き込むプラグを返す。
	Outputs() []Plug
	// Evaluate はシーンの現在値から出力を書き込む。
	Evaluate(scene *model.Scene) error
}

// Graph はオペレーターのDAGを表す。追加のたびに循環検査を行う。
type Graph struct {
	operators []Operator
	writers   map[Plug]int
}

// NewGraph は空の評価グラフを生成する。
func NewGraph() *Graph {
	return &Graph{writers: map[Plug]int{}}
}

// Len はオペレーター数を返す。
func (g *Graph) Len() int {
	return len(g.operators)
}

// Operators は追加順のオペレーター一覧を返す。
func (g *Graph) Operators() []Operator {
	return append([]Operator(nil), g.operators...)
}

// Add はオペレーターを追加する。既に駆動されているプラグへの書き込みは PlugConflictError、
// 循環が生じる接続は CycleError を返し、グラフは変更しない。
func (g *Graph) Add(scene *model.Scene, op Operator) error {
	for _, out := range op.Outputs() {
		if out.Channel == CHANNEL_WORLD {
			return fmt.Errorf("ワールド行列へは書き込めません: %s", out.Describe(scene))
		}
		if existing, ok := g.writers[out]; ok {
			return merrors.NewPlugConflictError(out.Describe(scene), g.operators[existing].Name(), op.Name())
		}
	}
	candidate := append(append([]Operator(nil), g.operators...), op)
	if _, err := sortOperators(scene, candidate); err != nil {
		return err
	}
	g.operators = candidate
	for _, out := range op.Outputs() {
		g.writers[out] = len(g.operators) - 1
	}
	return nil
}

// Driver はプラグを書き込むオペレーターを返す。
func (g *Graph) Driver(plug Plug) (Operator, bool) {
	index, ok := g.writers[plug]
	if !ok {
		return nil, false
	}
	return g.operators[index], true
}

// Consumers はプラグを読み取るオペレーターを追加順で返す。
func (g *Graph) Consumers(plug Plug) []Operator {
	consumers := make([]Operator, 0)
	for _, op := range g.operators {
		for _, in := range op.Inputs() {
			if in == plug {
				consumers = append(consumers, op)
				break
			}
		}
	}
	return consumers
}

// Evaluate は全オペレーターを位相順に評価する。
func (g *Graph) Evaluate(scene *model.Scene) error {
	ordered, err := sortOperators(scene, g.operators)
	if err != nil {
		return err
	}
	for _, op := range ordered {
		if err := op.Evaluate(scene); err != nil {
			return fmt.Errorf("オペレーター評価に失敗しました: %s: %w", op.Name(), err)
		}
	}
	return nil
}

// plugGraph はプラグとオペレーターを頂点に持つ有向グラフを表す。
type plugGraph struct {
	directed *simple.DirectedGraph
	plugIDs  map[Plug]int64
	plugs    map[int64]Plug
	nextID   int64
}

func (pg *plugGraph) plugNode(p Plug) graph.Node {
	if id, ok := pg.plugIDs[p]; ok {
		return pg.directed.Node(id)
	}
	id := pg.nextID
	pg.nextID++
	node := simple.Node(id)
	pg.directed.AddNode(node)
	pg.plugIDs[p] = id
	pg.plugs[id] = p
	return node
}

func (pg *plugGraph) edge(from graph.Node, to graph.Node) {
	if from.ID() == to.ID() || pg.directed.HasEdgeFromTo(from.ID(), to.ID()) {
		return
	}
	pg.directed.SetEdge(pg.directed.NewEdge(from, to))
}

// sortOperators は階層依存(親ワールド→子ワールド)を含めてオペレーターを位相順に並べる。
func sortOperators(scene *model.Scene, operators []Operator) ([]Operator, error) {
	pg := &plugGraph{
		directed: simple.NewDirectedGraph(),
		plugIDs:  map[Plug]int64{},
		plugs:    map[int64]Plug{},
		nextID:   int64(len(operators)),
	}
	for i, op := range operators {
		opNode := simple.Node(int64(i))
		pg.directed.AddNode(opNode)
		for _, in := range op.Inputs() {
			pg.edge(pg.plugNode(in), opNode)
		}
		for _, out := range op.Outputs() {
			pg.edge(opNode, pg.plugNode(out))
		}
	}

	// ワールドプラグはローカルTRSと親ワールドに依存する
	pending := make([]Plug, 0)
	for p := range pg.plugIDs {
		if p.Channel == CHANNEL_WORLD {
			pending = append(pending, p)
		}
	}
	visited := map[int]struct{}{}
	for len(pending) > 0 {
		world := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if _, ok := visited[world.Node]; ok {
			continue
		}
		visited[world.Node] = struct{}{}
		worldNode := pg.plugNode(world)
		for _, local := range []Plug{TranslatePlug(world.Node), RotatePlug(world.Node), ScalePlug(world.Node)} {
			pg.edge(pg.plugNode(local), worldNode)
		}
		for _, parent := range parentWorldPlugs(scene, world.Node) {
			pg.edge(pg.plugNode(parent), worldNode)
			pending = append(pending, parent)
		}
	}

	sorted, err := topo.SortStabilized(pg.directed, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		return nil, pg.cycleError(scene, operators, err)
	}
	ordered := make([]Operator, 0, len(operators))
	for _, node := range sorted {
		if node.ID() < int64(len(operators)) {
			ordered = append(ordered, operators[node.ID()])
		}
	}
	return ordered, nil
}

func (pg *plugGraph) cycleError(scene *model.Scene, operators []Operator, err error) error {
	unorderable, ok := err.(topo.Unorderable)
	if !ok {
		return err
	}
	opName := ""
	plugNames := make([]string, 0)
	for _, component := range unorderable {
		for _, node := range component {
			if node.ID() < int64(len(operators)) {
				if opName == "" {
					opName = operators[node.ID()].Name()
				}
				continue
			}
			plugNames = append(plugNames, pg.plugs[node.ID()].Describe(scene))
		}
	}
	sort.Strings(plugNames)
	return merrors.NewCycleError(opName, plugNames)
}
