// 指示: miu200521358
package moutput

import "github.com/miu200521358/mu_autorig/pkg/domain/model"

// SkeletonData は読み込んだスケルトン(スキンジョイント階層)を表す。
type SkeletonData struct {
	Character string
	Scene     *model.Scene
}

// ISkeletonReader はスケルトン読み込み契約を表す。
type ISkeletonReader interface {
	// CanLoad は読み込み可能なパスか判定する。
	CanLoad(path string) bool
	// Load はスケルトンを読み込む。
	Load(path string) (*SkeletonData, error)
}

// RigReportNode は出力するノード1件を表す。
type RigReportNode struct {
	Name       string             `json:"name" yaml:"name"`
	Kind       string             `json:"kind" yaml:"kind"`
	Parent     string             `json:"parent,omitempty" yaml:"parent,omitempty"`
	Matrix     [16]float64        `json:"worldMatrix" yaml:"worldMatrix"`
	Attributes map[string]float64 `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	ShapeType  string             `json:"shape,omitempty" yaml:"shape,omitempty"`
	ColorIndex int                `json:"color,omitempty" yaml:"color,omitempty"`
}

// RigReportOperator は出力するオペレーター1件を表す。
type RigReportOperator struct {
	Name    string   `json:"name" yaml:"name"`
	Kind    string   `json:"kind" yaml:"kind"`
	Inputs  []string `json:"inputs" yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`
}

// RigReportSwitch は出力するIK/FK切替1件を表す。
type RigReportSwitch struct {
	Name   string  `json:"name" yaml:"name"`
	Zone   string  `json:"zone" yaml:"zone"`
	Side   string  `json:"side,omitempty" yaml:"side,omitempty"`
	IkFk   float64 `json:"ikFk" yaml:"ikFk"`
	Blends int     `json:"blends" yaml:"blends"`
}

// RigReport はリグ構築結果の書き出し内容を表す。
type RigReport struct {
	RunID     string              `json:"runId" yaml:"runId"`
	Character string              `json:"character" yaml:"character"`
	Nodes     []RigReportNode     `json:"nodes" yaml:"nodes"`
	Operators []RigReportOperator `json:"operators" yaml:"operators"`
	Switches  []RigReportSwitch   `json:"switches" yaml:"switches"`
	Warnings  []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// IRigWriter はリグ構築結果の書き込み契約を表す。
type IRigWriter interface {
	// Save は構築結果を書き出す。
	Save(path string, report *RigReport) error
}

// IShapeLibrary はコントロールシェイプの供給契約を表す。
type IShapeLibrary interface {
	// Shape は種別名に対応する形状を返す。見つからない場合は false。
	Shape(libraryPath string, shapeType string) (model.ControlShape, bool, error)
}
