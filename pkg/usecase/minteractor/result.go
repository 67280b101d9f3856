// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

// RigReport はリグ構築結果の書き出し内容を表す。
type RigReport = moutput.RigReport

// RigProgressEventType はリグ構築の進捗イベント種別を表す。
type RigProgressEventType string

const (
	// RigProgressEventTypeSkeletonLoaded はスケルトン読み込み完了イベントを表す。
	RigProgressEventTypeSkeletonLoaded RigProgressEventType = "skeleton_loaded"
	// RigProgressEventTypeContextOpened は構築コンテキスト開始イベントを表す。
	RigProgressEventTypeContextOpened RigProgressEventType = "context_opened"
	// RigProgressEventTypeRootBuilt はルートコントロール構築完了イベントを表す。
	RigProgressEventTypeRootBuilt RigProgressEventType = "root_built"
	// RigProgressEventTypeZoneBuilt はゾーン構築完了イベントを表す。
	RigProgressEventTypeZoneBuilt RigProgressEventType = "zone_built"
	// RigProgressEventTypeZoneSkipped は任意ゾーン省略イベントを表す。
	RigProgressEventTypeZoneSkipped RigProgressEventType = "zone_skipped"
	// RigProgressEventTypeSkinBound はスキンジョイント拘束完了イベントを表す。
	RigProgressEventTypeSkinBound RigProgressEventType = "skin_bound"
	// RigProgressEventTypeGraphEvaluated は評価グラフ初回評価完了イベントを表す。
	RigProgressEventTypeGraphEvaluated RigProgressEventType = "graph_evaluated"
	// RigProgressEventTypeReportSaved は構築結果保存完了イベントを表す。
	RigProgressEventTypeReportSaved RigProgressEventType = "report_saved"
)

// RigProgressEvent はリグ構築の進捗イベントを表す。
type RigProgressEvent struct {
	Type          RigProgressEventType
	Zone          string
	Side          model.Side
	NodeCount     int
	OperatorCount int
}

// IRigProgressReporter はリグ構築の進捗通知契約を表す。
type IRigProgressReporter interface {
	// ReportRigProgress はリグ構築進捗を通知する。
	ReportRigProgress(event RigProgressEvent)
}

// BuildRigRequest はリグ構築要求を表す。
type BuildRigRequest struct {
	InputPath        string
	OutputPath       string
	Skeleton         *moutput.SkeletonData
	Settings         RigSettings
	ProgressReporter IRigProgressReporter
}

// BuildRigResult はリグ構築結果を表す。
type BuildRigResult struct {
	RunID      string
	Context    *RigContext
	Zones      []*ZoneBuild
	Warnings   []string
	Report     *RigReport
	OutputPath string
}

// Switches は構築済みチェーンのIK/FK切替ノードを返す。
func (r *BuildRigResult) Switches() []int {
	switches := make([]int, 0)
	for _, zone := range r.Zones {
		if zone != nil && zone.Chain != nil {
			switches = append(switches, zone.Chain.Switch)
		}
	}
	return switches
}

// reportRigProgress は進捗通知先がある場合のみ通知する。
func reportRigProgress(reporter IRigProgressReporter, event RigProgressEvent) {
	if reporter == nil {
		return
	}
	reporter.ReportRigProgress(event)
}
