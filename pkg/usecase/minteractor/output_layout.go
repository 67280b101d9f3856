// 指示: miu200521358
package minteractor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultReportSuffix = "_rig"
	defaultReportExt    = ".json"
)

var nowFunc = time.Now

// BuildDefaultOutputPath は入力スケルトンパスから既定のリグ結果出力パスを生成する。
func BuildDefaultOutputPath(inputPath string) string {
	return buildDefaultOutputPathAt(inputPath, nowFunc())
}

// buildDefaultOutputPathAt は指定時刻で既定のリグ結果出力パスを生成する。
// 実行ごとに <入力名>_<時刻> ディレクトリを切り、前回結果を上書きしない。
func buildDefaultOutputPathAt(inputPath string, now time.Time) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	stamp := now.Format("20060102150405")
	outDir := filepath.Join(dir, fmt.Sprintf("%s_%s", base, stamp))
	return filepath.Join(outDir, base+defaultReportSuffix+defaultReportExt)
}
