// 指示: miu200521358
// Package io_shape はファイルからコントロールシェイプのライブラリを読み込む。
package io_shape

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"
)

// shapeFile はシェイプライブラリファイルの内容を表す。種別名をキーとし、JSONもYAMLとして読む。
type shapeFile map[string]shapeEntry

type shapeEntry struct {
	RestMatrix []float64    `yaml:"restMatrix"`
	Curves     []curveEntry `yaml:"shapes"`
}

type curveEntry struct {
	Degree int         `yaml:"degree"`
	Form   curveForm   `yaml:"form"`
	CVs    [][]float64 `yaml:"cvs"`
	Knots  []float64   `yaml:"knots"`
}

// curveForm は 0/1/2 の整数、または open/closed/periodic の名前で書かれた曲線形態を表す。
type curveForm struct {
	value model.CurveForm
}

// UnmarshalYAML は整数と名前のどちらの表記も受け付ける。
func (f *curveForm) UnmarshalYAML(node *yaml.Node) error {
	var number int
	if err := node.Decode(&number); err == nil {
		switch number {
		case 0:
			f.value = model.CURVE_FORM_OPEN
		case 1:
			f.value = model.CURVE_FORM_CLOSED
		case 2:
			f.value = model.CURVE_FORM_PERIODIC
		default:
			return fmt.Errorf("form が不明です: %d", number)
		}
		return nil
	}
	form, err := parseCurveForm(node.Value)
	if err != nil {
		return err
	}
	f.value = form
	return nil
}

// ShapeLibrary はパスごとに読み込み結果を保持するシェイプライブラリを表す。
type ShapeLibrary struct {
	mu      sync.Mutex
	entries map[string]map[string]model.ControlShape
}

// NewShapeLibrary はShapeLibraryを生成する。
func NewShapeLibrary() *ShapeLibrary {
	return &ShapeLibrary{entries: map[string]map[string]model.ControlShape{}}
}

// Shape は種別名に対応する形状の複製を返す。見つからない場合は false。
func (l *ShapeLibrary) Shape(libraryPath string, shapeType string) (model.ControlShape, bool, error) {
	shapes, err := l.load(libraryPath)
	if err != nil {
		return model.ControlShape{}, false, err
	}
	shape, ok := shapes[shapeType]
	if !ok {
		return model.ControlShape{}, false, nil
	}
	var copied model.ControlShape
	if err := deepcopy.Copy(&copied, &shape); err != nil {
		return model.ControlShape{}, false, err
	}
	return copied, true, nil
}

// Types は読み込んだライブラリの種別名一覧を返す。
func (l *ShapeLibrary) Types(libraryPath string) ([]string, error) {
	shapes, err := l.load(libraryPath)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(shapes))
	for shapeType := range shapes {
		types = append(types, shapeType)
	}
	return types, nil
}

// Clear は読み込み結果を破棄する。
func (l *ShapeLibrary) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = map[string]map[string]model.ControlShape{}
}

func (l *ShapeLibrary) load(libraryPath string) (map[string]model.ControlShape, error) {
	key := filepath.Clean(libraryPath)
	l.mu.Lock()
	defer l.mu.Unlock()
	if shapes, ok := l.entries[key]; ok {
		return shapes, nil
	}

	switch strings.ToLower(filepath.Ext(key)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, io_common.NewIoExtInvalid(libraryPath, nil)
	}
	b, err := os.ReadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, io_common.NewIoFileNotFound(libraryPath, err)
		}
		return nil, io_common.NewIoParseFailed("シェイプライブラリの読み取りに失敗しました", err)
	}
	file := shapeFile{}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, io_common.NewIoParseFailed("シェイプライブラリの解析に失敗しました", err)
	}

	shapes := make(map[string]model.ControlShape, len(file))
	for shapeType, entry := range file {
		shape, err := entry.toShape(shapeType)
		if err != nil {
			return nil, io_common.NewIoParseFailed("シェイプ定義が不正です: type=%s", err, shapeType)
		}
		shapes[shapeType] = shape
	}
	l.entries[key] = shapes
	if logger := logging.DefaultLogger(); logger != nil {
		logger.Debug("シェイプライブラリ読込完了: file=%s shapes=%d", filepath.Base(key), len(shapes))
	}
	return shapes, nil
}

func (e shapeEntry) toShape(shapeType string) (model.ControlShape, error) {
	shape := model.ControlShape{Type: shapeType}
	switch len(e.RestMatrix) {
	case 0:
		shape.RestMatrix = [16]float64(mmath.IdentityTransform().Matrix())
	case 16:
		copy(shape.RestMatrix[:], e.RestMatrix)
	default:
		return model.ControlShape{}, fmt.Errorf("restMatrix要素数が不正です: %d", len(e.RestMatrix))
	}
	if len(e.Curves) == 0 {
		return model.ControlShape{}, fmt.Errorf("曲線がありません")
	}
	for i, entry := range e.Curves {
		curve, err := entry.toCurve()
		if err != nil {
			return model.ControlShape{}, fmt.Errorf("curve[%d]: %w", i, err)
		}
		shape.Curves = append(shape.Curves, curve)
	}
	return shape, nil
}

func (e curveEntry) toCurve() (model.ShapeCurve, error) {
	degree := e.Degree
	if degree <= 0 {
		degree = 1
	}
	if len(e.CVs) <= degree {
		return model.ShapeCurve{}, fmt.Errorf("CV数が次数に対して不足しています: cvs=%d degree=%d", len(e.CVs), degree)
	}
	curve := model.ShapeCurve{Degree: degree, Form: e.Form.value, Knots: append([]float64(nil), e.Knots...)}
	for _, values := range e.CVs {
		cv, err := mmath.NewVec3FromSlice(values)
		if err != nil {
			return model.ShapeCurve{}, err
		}
		curve.CVs = append(curve.CVs, cv)
	}
	return curve, nil
}

func parseCurveForm(form string) (model.CurveForm, error) {
	switch strings.ToLower(strings.TrimSpace(form)) {
	case "", "open":
		return model.CURVE_FORM_OPEN, nil
	case "closed":
		return model.CURVE_FORM_CLOSED, nil
	case "periodic":
		return model.CURVE_FORM_PERIODIC, nil
	default:
		return model.CURVE_FORM_OPEN, fmt.Errorf("form が不明です: %s", form)
	}
}
