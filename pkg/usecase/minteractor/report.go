// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/dataflow"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

// NewRigReport は構築済みシーンと評価グラフから書き出し内容を組み立てる。
func NewRigReport(rc *RigContext, zones []*ZoneBuild) *RigReport {
	scene := rc.Scene
	report := &RigReport{
		RunID:     rc.RunID,
		Character: rc.Character,
		Nodes:     make([]moutput.RigReportNode, 0, scene.Len()),
		Operators: make([]moutput.RigReportOperator, 0, rc.Graph.Len()),
		Switches:  make([]moutput.RigReportSwitch, 0),
		Warnings:  rc.Warnings(),
	}
	for _, node := range scene.Values() {
		item := moutput.RigReportNode{
			Name:       node.Name,
			Kind:       node.Kind.String(),
			Matrix:     scene.WorldMatrix(node.Index()),
			ColorIndex: node.ColorIndex,
		}
		if node.ParentIndex >= 0 {
			item.Parent = scene.MustGet(node.ParentIndex).Name
		}
		if node.Shape != nil {
			item.ShapeType = node.Shape.Type
		}
		if names := node.AttributeNames(); len(names) > 0 {
			item.Attributes = make(map[string]float64, len(names))
			for _, name := range names {
				item.Attributes[name] = node.AttributeValue(name, 0)
			}
		}
		report.Nodes = append(report.Nodes, item)
	}
	for _, op := range rc.Graph.Operators() {
		report.Operators = append(report.Operators, moutput.RigReportOperator{
			Name:    op.Name(),
			Kind:    op.Kind(),
			Inputs:  describePlugs(scene, op.Inputs()),
			Outputs: describePlugs(scene, op.Outputs()),
		})
	}
	for _, zone := range zones {
		if zone == nil || zone.Chain == nil {
			continue
		}
		chain := zone.Chain
		report.Switches = append(report.Switches, moutput.RigReportSwitch{
			Name:   scene.MustGet(chain.Switch).Name,
			Zone:   chain.Zone,
			Side:   string(chain.Side),
			IkFk:   scene.MustGet(chain.Switch).AttributeValue(model.ATTR_IK_FK, 0),
			Blends: len(chain.Blends),
		})
	}
	return report
}

func describePlugs(scene *model.Scene, plugs []dataflow.Plug) []string {
	described := make([]string, 0, len(plugs))
	for _, plug := range plugs {
		described = append(described, plug.Describe(scene))
	}
	return described
}
