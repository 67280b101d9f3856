// 指示: miu200521358
// Package config はリグ構築設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/minteractor"
	"gopkg.in/yaml.v3"
)

// ENV_PREFIX は環境変数による上書きの接頭辞。
const ENV_PREFIX = "MU_AUTORIG_"

// RigConfig はリグ構築の調整値を表す。
type RigConfig struct {
	CurveSpans       int      `yaml:"curve_spans" env:"CURVE_SPANS"`
	CurveDegree      int      `yaml:"curve_degree" env:"CURVE_DEGREE"`
	RelaxIterations  int      `yaml:"relax_iterations" env:"RELAX_ITERATIONS"`
	RelaxTolerance   float64  `yaml:"relax_tolerance" env:"RELAX_TOLERANCE"`
	PoleDistance     float64  `yaml:"pole_distance" env:"POLE_DISTANCE"`
	UpVectorOffset   float64  `yaml:"up_vector_offset" env:"UP_VECTOR_OFFSET"`
	FkStretchMin     float64  `yaml:"fk_stretch_min" env:"FK_STRETCH_MIN"`
	FkStretchMax     float64  `yaml:"fk_stretch_max" env:"FK_STRETCH_MAX"`
	TaperFloor       float64  `yaml:"taper_floor" env:"TAPER_FLOOR"`
	ControlScale     float64  `yaml:"control_scale" env:"CONTROL_SCALE"`
	ShapeLibraryPath string   `yaml:"shape_library_path" env:"SHAPE_LIBRARY_PATH"`
	Stretch          bool     `yaml:"stretch" env:"STRETCH"`
	BendingBones     bool     `yaml:"bending_bones" env:"BENDING_BONES"`
	OptionalZones    []string `yaml:"optional_zones" env:"OPTIONAL_ZONES" envSeparator:","`
	LogLevel         string   `yaml:"log_level" env:"LOG_LEVEL"`
}

// DefaultRigConfig は既定値の設定を返す。
func DefaultRigConfig() RigConfig {
	return RigConfig{
		CurveSpans:      2,
		CurveDegree:     3,
		RelaxIterations: 4,
		RelaxTolerance:  0.05,
		PoleDistance:    5.0,
		UpVectorOffset:  5.0,
		FkStretchMin:    0.2,
		FkStretchMax:    5.0,
		TaperFloor:      0.25,
		ControlScale:    1.0,
		Stretch:         true,
		BendingBones:    false,
		OptionalZones:   []string{"neck", "foot"},
		LogLevel:        "info",
	}
}

// LoadRigConfig は既定値にYAMLファイル(任意)と環境変数を順に重ねて設定を返す。
func LoadRigConfig(path string) (RigConfig, error) {
	cfg := DefaultRigConfig()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return RigConfig{}, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return RigConfig{}, fmt.Errorf("設定ファイルの解析に失敗しました: %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: ENV_PREFIX}); err != nil {
		return RigConfig{}, fmt.Errorf("環境変数の解析に失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RigConfig{}, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c RigConfig) Validate() error {
	if c.CurveSpans < 1 {
		return fmt.Errorf("curve_spans は1以上が必要です: %d", c.CurveSpans)
	}
	if c.CurveDegree < 1 {
		return fmt.Errorf("curve_degree は1以上が必要です: %d", c.CurveDegree)
	}
	if c.RelaxIterations < 0 {
		return fmt.Errorf("relax_iterations は0以上が必要です: %d", c.RelaxIterations)
	}
	if c.RelaxTolerance <= 0 {
		return fmt.Errorf("relax_tolerance は正の値が必要です: %v", c.RelaxTolerance)
	}
	if c.PoleDistance <= 0 {
		return fmt.Errorf("pole_distance は正の値が必要です: %v", c.PoleDistance)
	}
	if c.FkStretchMin <= 0 || c.FkStretchMin >= c.FkStretchMax {
		return fmt.Errorf("fk_stretch の範囲が不正です: %v..%v", c.FkStretchMin, c.FkStretchMax)
	}
	if c.TaperFloor < 0 || c.TaperFloor > 1 {
		return fmt.Errorf("taper_floor は0..1が必要です: %v", c.TaperFloor)
	}
	if c.ControlScale <= 0 {
		return fmt.Errorf("control_scale は正の値が必要です: %v", c.ControlScale)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level はログレベル文字列を解釈する。空文字は INFO。
func (c RigConfig) Level() (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return logging.LOG_LEVEL_DEBUG, nil
	case "", "info":
		return logging.LOG_LEVEL_INFO, nil
	case "warn", "warning":
		return logging.LOG_LEVEL_WARN, nil
	case "error":
		return logging.LOG_LEVEL_ERROR, nil
	default:
		return logging.LOG_LEVEL_INFO, fmt.Errorf("log_level が不明です: %s", c.LogLevel)
	}
}

// IsOptionalZone はゾーンが任意(欠落時は警告のみ)か判定する。
func (c RigConfig) IsOptionalZone(zone string) bool {
	for _, optional := range c.OptionalZones {
		if strings.EqualFold(strings.TrimSpace(optional), zone) {
			return true
		}
	}
	return false
}

// RigSettings は設定値を構築設定へ写す。
func (c RigConfig) RigSettings() minteractor.RigSettings {
	return minteractor.RigSettings{
		CurveSpans:       c.CurveSpans,
		CurveDegree:      c.CurveDegree,
		RelaxIterations:  c.RelaxIterations,
		RelaxTolerance:   c.RelaxTolerance,
		PoleDistance:     c.PoleDistance,
		UpVectorOffset:   c.UpVectorOffset,
		FkStretchMin:     c.FkStretchMin,
		FkStretchMax:     c.FkStretchMax,
		TaperFloor:       c.TaperFloor,
		ControlScale:     c.ControlScale,
		ShapeLibraryPath: c.ShapeLibraryPath,
		Stretch:          c.Stretch,
		BendingBones:     c.BendingBones,
		OptionalZones:    append([]string(nil), c.OptionalZones...),
	}
}
