// 指示: miu200521358
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/report"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/skeleton"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_shape"
	"github.com/miu200521358/mu_autorig/pkg/infra/config"
	"github.com/miu200521358/mu_autorig/pkg/usecase/minteractor"
)

const (
	batchOutputDirMode = 0o755
)

// batchConfig はバッチ構築の実行設定を表す。
type batchConfig struct {
	InputGlob  string
	ConfigPath string
	OutputRoot string
	DryRun     bool
	FailFast   bool
}

// buildEntry は1スケルトン分の構築入力情報を表す。
type buildEntry struct {
	Index      int
	SourcePath string
	ModelName  string
	CaseDir    string
	OutputPath string
}

// buildResult は1スケルトン分の構築結果を表す。
type buildResult struct {
	Entry     buildEntry
	Status    string
	Duration  time.Duration
	Err       error
	StageInfo string
}

// rigProgressCollector は BuildRig の進捗イベントを収集する。
type rigProgressCollector struct {
	eventCounts  map[minteractor.RigProgressEventType]int
	nodeMax      int
	operatorMax  int
	skippedZones []string
}

// main は複数スケルトンのリグを一括構築する。
func main() {
	os.Exit(run())
}

// run は実行設定を解決して一括構築を実行し、終了コードを返す。
func run() int {
	batch, err := parseBatchConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定解析に失敗しました: %v\n", err)
		return 2
	}
	inputPaths, err := filepath.Glob(normalizeInputPath(batch.InputGlob))
	if err != nil {
		fmt.Fprintf(os.Stderr, "入力パターンが不正です: %v\n", err)
		return 2
	}
	sort.Strings(inputPaths)
	entries := buildBuildEntries(batch.OutputRoot, inputPaths)
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "構築対象スケルトンがありません")
		return 2
	}

	results := executeBatchBuild(batch, entries)
	printBatchSummary(results)

	for _, result := range results {
		if result.Status == "failed" {
			return 1
		}
	}
	return 0
}

// parseBatchConfig はコマンドライン引数から実行設定を構築する。
func parseBatchConfig() (batchConfig, error) {
	defaultOutputRoot, err := resolveDefaultOutputRoot()
	if err != nil {
		return batchConfig{}, err
	}
	inputGlob := flag.String("input-glob", "", "構築対象スケルトンのglobパターン")
	configPath := flag.String("config", "", "リグ構築設定ファイル")
	outputRoot := flag.String("output-root", defaultOutputRoot, "構築結果の出力ルートディレクトリ")
	dryRun := flag.Bool("dry-run", false, "実構築せず、入力解決と出力先計画のみ表示する")
	failFast := flag.Bool("fail-fast", false, "失敗時に即時終了する")
	flag.Parse()

	if strings.TrimSpace(*inputGlob) == "" {
		return batchConfig{}, errors.New("input-glob が空です")
	}
	trimmedOutputRoot := strings.TrimSpace(*outputRoot)
	if trimmedOutputRoot == "" {
		return batchConfig{}, errors.New("output-root が空です")
	}
	return batchConfig{
		InputGlob:  *inputGlob,
		ConfigPath: *configPath,
		OutputRoot: filepath.Clean(trimmedOutputRoot),
		DryRun:     *dryRun,
		FailFast:   *failFast,
	}, nil
}

// resolveDefaultOutputRoot はスクリプト配置ディレクトリ基準の既定出力先を返す。
func resolveDefaultOutputRoot() (string, error) {
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("実行ファイル位置を取得できません")
	}
	return filepath.Join(filepath.Dir(currentFilePath), "output"), nil
}

// buildBuildEntries は入力パス一覧から構築対象エントリを生成する。
func buildBuildEntries(outputRoot string, inputPaths []string) []buildEntry {
	entries := make([]buildEntry, 0, len(inputPaths))
	for i, inputPath := range inputPaths {
		modelName := resolveModelName(inputPath)
		safeModelName := sanitizePathComponent(modelName)
		caseDir := filepath.Join(outputRoot, fmt.Sprintf("%03d_%s", i+1, safeModelName))
		entries = append(entries, buildEntry{
			Index:      i + 1,
			SourcePath: inputPath,
			ModelName:  modelName,
			CaseDir:    caseDir,
			OutputPath: filepath.Join(caseDir, safeModelName+"_rig.json"),
		})
	}
	return entries
}

// executeBatchBuild は全スケルトンの構築処理を順次実行する。
func executeBatchBuild(batch batchConfig, entries []buildEntry) []buildResult {
	results := make([]buildResult, 0, len(entries))
	cfg, err := config.LoadRigConfig(batch.ConfigPath)
	if err != nil {
		for _, entry := range entries {
			results = append(results, buildResult{Entry: entry, Status: "failed", Err: err})
		}
		return results
	}
	usecase := minteractor.NewAutoRigUsecase(minteractor.AutoRigUsecaseDeps{
		SkeletonReader: skeleton.NewSkeletonRepository(),
		RigWriter:      report.NewRigReportRepository(),
		ShapeLibrary:   io_shape.NewShapeLibrary(),
	})

	total := len(entries)
	for _, entry := range entries {
		fmt.Printf("[%d/%d] 構築開始: model=%s\n", entry.Index, total, entry.ModelName)
		result := buildRigEntry(usecase, batch, cfg, entry)
		results = append(results, result)
		switch result.Status {
		case "succeeded":
			fmt.Printf("[%d/%d] 構築成功: model=%s output=%s elapsed=%s\n", entry.Index, total, entry.ModelName, entry.OutputPath, result.Duration.Round(time.Millisecond))
			if strings.TrimSpace(result.StageInfo) != "" {
				fmt.Printf("[%d/%d] BuildRig進捗: %s\n", entry.Index, total, result.StageInfo)
			}
		case "dry_run":
			fmt.Printf("[%d/%d] DRY-RUN: model=%s input=%s output=%s\n", entry.Index, total, entry.ModelName, entry.SourcePath, entry.OutputPath)
		default:
			fmt.Printf("[%d/%d] 構築失敗: model=%s reason=%v\n", entry.Index, total, entry.ModelName, result.Err)
			if batch.FailFast {
				return results
			}
		}
	}
	return results
}

// buildRigEntry は1スケルトン分の構築を実行する。
func buildRigEntry(usecase *minteractor.AutoRigUsecase, batch batchConfig, cfg config.RigConfig, entry buildEntry) buildResult {
	result := buildResult{Entry: entry, Status: "failed"}
	if batch.DryRun {
		result.Status = "dry_run"
		return result
	}
	if err := os.MkdirAll(entry.CaseDir, batchOutputDirMode); err != nil {
		result.Err = fmt.Errorf("出力ディレクトリ作成に失敗しました: %w", err)
		return result
	}

	startedAt := time.Now()
	collector := newRigProgressCollector()
	built, err := usecase.BuildRig(minteractor.BuildRigRequest{
		InputPath:        entry.SourcePath,
		OutputPath:       entry.OutputPath,
		Settings:         cfg.RigSettings(),
		ProgressReporter: collector,
	})
	if err != nil {
		result.Err = fmt.Errorf("BuildRigに失敗しました: %w", err)
		return result
	}
	if built == nil || built.Report == nil {
		result.Err = errors.New("BuildRig結果が空です")
		return result
	}

	result.Status = "succeeded"
	result.Duration = time.Since(startedAt)
	result.StageInfo = collector.Summary()
	return result
}

// printBatchSummary は構築結果の集計を標準出力へ表示する。
func printBatchSummary(results []buildResult) {
	succeeded := 0
	failed := 0
	dryRun := 0
	for _, result := range results {
		switch result.Status {
		case "succeeded":
			succeeded++
		case "dry_run":
			dryRun++
		default:
			failed++
		}
	}
	fmt.Printf("バッチ構築サマリ: total=%d succeeded=%d failed=%d dry_run=%d\n", len(results), succeeded, failed, dryRun)
}

// resolveModelName は入力パスから拡張子を除いたモデル名を返す。
func resolveModelName(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		return "model"
	}
	return name
}

// normalizeInputPath は入力パスを実行環境向けに正規化する。
func normalizeInputPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	return filepath.Clean(convertWindowsPathToWsl(trimmed))
}

// convertWindowsPathToWsl は Linux 実行時に Windows パスを WSL パスへ変換する。
func convertWindowsPathToWsl(path string) string {
	if runtime.GOOS != "linux" || len(path) < 2 || path[1] != ':' {
		return path
	}
	drive := strings.ToLower(path[:1])
	rest := strings.ReplaceAll(path[2:], "\\", "/")
	if rest == "" {
		return filepath.ToSlash(filepath.Join("/mnt", drive))
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return filepath.ToSlash(filepath.Join("/mnt", drive) + rest)
}

// sanitizePathComponent は出力ディレクトリ/ファイル名に使えない文字を置換する。
func sanitizePathComponent(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "model"
	}
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		default:
			if r < 0x20 {
				return '_'
			}
			return r
		}
	}, trimmed)
	replaced = strings.Trim(replaced, " .")
	if replaced == "" {
		return "model"
	}
	return replaced
}

// newRigProgressCollector は BuildRig 進捗収集器を生成する。
func newRigProgressCollector() *rigProgressCollector {
	return &rigProgressCollector{eventCounts: map[minteractor.RigProgressEventType]int{}}
}

// ReportRigProgress は BuildRig の進捗イベントを収集する。
func (collector *rigProgressCollector) ReportRigProgress(event minteractor.RigProgressEvent) {
	if collector == nil {
		return
	}
	collector.eventCounts[event.Type]++
	if event.NodeCount > collector.nodeMax {
		collector.nodeMax = event.NodeCount
	}
	if event.OperatorCount > collector.operatorMax {
		collector.operatorMax = event.OperatorCount
	}
	if event.Type == minteractor.RigProgressEventTypeZoneSkipped {
		collector.skippedZones = append(collector.skippedZones, event.Zone)
	}
}

// Summary は収集した進捗の要約文字列を返す。
func (collector *rigProgressCollector) Summary() string {
	if collector == nil || len(collector.eventCounts) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"zones=%d nodes=%d operators=%d skipped=%s",
		collector.eventCounts[minteractor.RigProgressEventTypeZoneBuilt],
		collector.nodeMax,
		collector.operatorMax,
		strings.Join(collector.skippedZones, ","),
	)
}
