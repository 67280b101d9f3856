// 指示: miu200521358
package dataflow

import (
	"fmt"
	"math"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"gopkg.in/Knetic/govaluate.v3"
)

// expressionFunctions は式で使える関数群。
var expressionFunctions = map[string]govaluate.ExpressionFunction{
	"max": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("max", args, 1)
		if err != nil {
			return nil, err
		}
		result := values[0]
		for _, v := range values[1:] {
			result = math.Max(result, v)
		}
		return result, nil
	},
	"min": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("min", args, 1)
		if err != nil {
			return nil, err
		}
		result := values[0]
		for _, v := range values[1:] {
			result = math.Min(result, v)
		}
		return result, nil
	},
	"clamp": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("clamp", args, 3)
		if err != nil {
			return nil, err
		}
		return math.Min(math.Max(values[0], values[1]), values[2]), nil
	},
	"lerp": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("lerp", args, 3)
		if err != nil {
			return nil, err
		}
		return values[0] + (values[1]-values[0])*values[2], nil
	},
	// taper は両端で floor、中央で1になる先細り曲線
	"taper": func(args ...interface{}) (interface{}, error) {
		values, err := floatArgs("taper", args, 2)
		if err != nil {
			return nil, err
		}
		return Taper(values[0], values[1]), nil
	},
}

// Taper は 0..1 の位置 t に対する先細り係数を返す。t=0,1 で floor、t=0.5 で 1。
func Taper(t float64, floor float64) float64 {
	t = math.Min(math.Max(t, 0), 1)
	return floor + (1-floor)*math.Sin(math.Pi*t)
}

func floatArgs(name string, args []interface{}, minCount int) ([]float64, error) {
	if len(args) < minCount {
		return nil, fmt.Errorf("%s の引数が不足しています: %d", name, len(args))
	}
	values := make([]float64, len(args))
	for i, arg := range args {
		v, ok := arg.(float64)
		if !ok {
			return nil, fmt.Errorf("%s の引数が数値ではありません: %v", name, arg)
		}
		values[i] = v
	}
	return values, nil
}

// ExpressionOperator は名前付き入力値に式を適用して出力へ書き込む。
type ExpressionOperator struct {
	Label   string
	Formula string
	Vars    map[string]Source
	Sink    Sink
	names   []string
	program *govaluate.EvaluableExpression
}

// NewExpressionOperator は式を構文解析し、式中の変数が全て入力に揃っているか検証する。
func NewExpressionOperator(label string, formula string, vars map[string]Source, sink Sink) (*ExpressionOperator, error) {
	program, err := govaluate.NewEvaluableExpressionWithFunctions(formula, expressionFunctions)
	if err != nil {
		return nil, fmt.Errorf("式の解析に失敗しました: %s: %w", formula, err)
	}
	for _, name := range program.Vars() {
		if _, ok := vars[name]; !ok {
			return nil, fmt.Errorf("式の変数が未接続です: %s (%s)", name, formula)
		}
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ExpressionOperator{
		Label:   label,
		Formula: formula,
		Vars:    vars,
		Sink:    sink,
		names:   names,
		program: program,
	}, nil
}

func (o *ExpressionOperator) Name() string { return o.Label }

func (o *ExpressionOperator) Kind() string { return "expression" }

func (o *ExpressionOperator) Inputs() []Plug {
	inputs := make([]Plug, 0, len(o.names))
	for _, name := range o.names {
		inputs = append(inputs, o.Vars[name].Plugs(nil)...)
	}
	return inputs
}

func (o *ExpressionOperator) Outputs() []Plug { return o.Sink.Plugs() }

// Value は現在のシーン値で式を評価した結果を返す。
func (o *ExpressionOperator) Value(scene *model.Scene) (float64, error) {
	params := make(map[string]interface{}, len(o.names))
	for _, name := range o.names {
		params[name] = o.Vars[name].Value(scene)
	}
	result, err := o.program.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("式の評価に失敗しました: %s: %w", o.Formula, err)
	}
	value, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("式の結果が数値ではありません: %s = %v", o.Formula, result)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("式の結果が有限値ではありません: %s = %v", o.Formula, value)
	}
	return value, nil
}

func (o *ExpressionOperator) Evaluate(scene *model.Scene) error {
	value, err := o.Value(scene)
	if err != nil {
		return err
	}
	o.Sink.Write(scene, value)
	return nil
}
