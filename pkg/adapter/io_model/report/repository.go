// 指示: miu200521358
// Package report はリグ構築結果をJSON/YAMLで書き出す。
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
	"gopkg.in/yaml.v3"
)

// RigReportRepository はリグ構築結果の書き出しを表す。
type RigReportRepository struct{}

// NewRigReportRepository はRigReportRepositoryを生成する。
func NewRigReportRepository() *RigReportRepository {
	return &RigReportRepository{}
}

// CanSave は拡張子に応じて書き出し可否を判定する。
func (r *RigReportRepository) CanSave(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Save は構築結果を書き出す。出力先ディレクトリがなければ作成する。
func (r *RigReportRepository) Save(path string, report *moutput.RigReport) error {
	if !r.CanSave(path) {
		return io_common.NewIoExtInvalid(path, nil)
	}
	if report == nil {
		return io_common.NewIoSaveFailed("書き出すリグ結果がありません: %s", nil, path)
	}

	b, err := encodeReport(path, report)
	if err != nil {
		return io_common.NewIoSaveFailed("リグ結果の変換に失敗しました: %s", err, path)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return io_common.NewIoSaveFailed("出力先ディレクトリの作成に失敗しました: %s", err, dir)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return io_common.NewIoSaveFailed("リグ結果の書き込みに失敗しました: %s", err, path)
	}

	if logger := logging.DefaultLogger(); logger != nil {
		logger.Info("リグ結果保存完了: file=%s nodes=%d operators=%d bytes=%d",
			filepath.Base(path), len(report.Nodes), len(report.Operators), len(b))
	}
	return nil
}

// Load は書き出し済みの構築結果を読み込む。
func (r *RigReportRepository) Load(path string) (*moutput.RigReport, error) {
	if !r.CanSave(path) {
		return nil, io_common.NewIoExtInvalid(path, nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, io_common.NewIoFileNotFound(path, err)
		}
		return nil, io_common.NewIoParseFailed("リグ結果の読み取りに失敗しました", err)
	}
	report := &moutput.RigReport{}
	if isYaml(path) {
		err = yaml.Unmarshal(b, report)
	} else {
		err = json.Unmarshal(b, report)
	}
	if err != nil {
		return nil, io_common.NewIoParseFailed("リグ結果の解析に失敗しました", err)
	}
	return report, nil
}

func encodeReport(path string, report *moutput.RigReport) ([]byte, error) {
	if isYaml(path) {
		return yaml.Marshal(report)
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func isYaml(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
