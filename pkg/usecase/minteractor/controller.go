// 指示: miu200521358
package minteractor

import (
	"fmt"
	"math"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

// コントロールシェイプ種別。
const (
	SHAPE_CIRCLE = "circle"
	SHAPE_SQUARE = "square"
	SHAPE_BOX    = "box"
	SHAPE_SPHERE = "sphere"
	SHAPE_SWITCH = "switch"
	SHAPE_PIVOT  = "pivot"
)

// 表示色index。
const (
	COLOR_INDEX_CENTER = 17
	COLOR_INDEX_LEFT   = 6
	COLOR_INDEX_RIGHT  = 13
	COLOR_INDEX_SIDE   = -1
)

// SideColorIndex は左右区分に応じた表示色を返す。
func SideColorIndex(side model.Side) int {
	switch side {
	case model.SIDE_LEFT:
		return COLOR_INDEX_LEFT
	case model.SIDE_RIGHT:
		return COLOR_INDEX_RIGHT
	default:
		return COLOR_INDEX_CENTER
	}
}

// ControllerSpec はコントロール生成内容を表す。
type ControllerSpec struct {
	Name     model.RigName
	Type     string
	Parent   int
	Position mmath.Vec3
	Rotation mmath.Quaternion
	// Scale は形状の倍率。0以下の場合は1。
	Scale float64
	// ColorIndex は表示色。COLOR_INDEX_SIDE の場合は左右区分から決める。
	ColorIndex int
	LockMask   model.ChannelMask
	HideMask   model.ChannelMask
}

// ControllerFactory はシェイプライブラリから形状を引いてコントロールを生成する。
type ControllerFactory struct {
	shapes      moutput.IShapeLibrary
	libraryPath string
	warned      map[string]struct{}
}

// NewControllerFactory はControllerFactoryを生成する。
func NewControllerFactory(shapes moutput.IShapeLibrary, libraryPath string) *ControllerFactory {
	return &ControllerFactory{shapes: shapes, libraryPath: libraryPath, warned: map[string]struct{}{}}
}

// Create はコントロールノードを生成して形状・色・ロックを設定する。
func (f *ControllerFactory) Create(rc *RigContext, spec ControllerSpec) (int, error) {
	rotation := spec.Rotation
	if rotation.IsZero() {
		rotation = mmath.IdentityQuaternion()
	}
	index, err := rc.AddNodeAt(spec.Name, model.NODE_KIND_CONTROL, spec.Parent, spec.Position, rotation)
	if err != nil {
		return -1, fmt.Errorf("コントロール生成に失敗しました: %s: %w", spec.Name, err)
	}
	scale := spec.Scale
	if scale <= 0 {
		scale = 1
	}
	shape := f.resolveShape(rc, spec.Type).Scaled(scale * rc.Settings.ControlScale)
	node := rc.Scene.MustGet(index)
	node.Shape = &shape
	node.ColorIndex = spec.ColorIndex
	if spec.ColorIndex == COLOR_INDEX_SIDE {
		node.ColorIndex = SideColorIndex(spec.Name.Side)
	}
	node.LockMask = spec.LockMask
	node.HideMask = spec.HideMask | spec.LockMask
	return index, nil
}

// resolveShape はライブラリの形状を返す。見つからない場合は既定形状を返して警告する。
func (f *ControllerFactory) resolveShape(rc *RigContext, shapeType string) model.ControlShape {
	if f.shapes != nil && strings.TrimSpace(f.libraryPath) != "" {
		shape, ok, err := f.shapes.Shape(f.libraryPath, shapeType)
		if err != nil {
			f.warnOnce(rc, shapeType, "シェイプライブラリを読み込めません: path=%s err=%v", f.libraryPath, err)
		} else if ok {
			return shape
		}
	}
	if shape, ok := builtinShape(shapeType); ok {
		return shape
	}
	f.warnOnce(rc, shapeType, "シェイプ種別が見つからないため円で代替します: type=%s", shapeType)
	shape, _ := builtinShape(SHAPE_CIRCLE)
	shape.Type = shapeType
	return shape
}

func (f *ControllerFactory) warnOnce(rc *RigContext, shapeType string, format string, params ...any) {
	if _, ok := f.warned[shapeType]; ok {
		return
	}
	f.warned[shapeType] = struct{}{}
	rc.Warn(model.RigWarningShapeFallback, format, params...)
}

// createController はライブラリ形状のコントロールを生成する。
func createController(rc *RigContext, shapeType string, name model.RigName, parent int, world mmath.Transform, scale float64, colorIndex int) (int, error) {
	return rc.Controllers.Create(rc, ControllerSpec{
		Name:       name,
		Type:       shapeType,
		Parent:     parent,
		Position:   world.Position,
		Rotation:   world.Rotation,
		Scale:      scale,
		ColorIndex: colorIndex,
	})
}

// builtinShape は組み込み形状を返す。
func builtinShape(shapeType string) (model.ControlShape, bool) {
	switch shapeType {
	case SHAPE_CIRCLE, SHAPE_SWITCH:
		return model.ControlShape{Type: shapeType, Curves: []model.ShapeCurve{circleCurve(mmath.UNIT_X_VEC3)}, RestMatrix: identityMatrix()}, true
	case SHAPE_SPHERE:
		return model.ControlShape{
			Type: shapeType,
			Curves: []model.ShapeCurve{
				circleCurve(mmath.UNIT_X_VEC3),
				circleCurve(mmath.UNIT_Y_VEC3),
				circleCurve(mmath.UNIT_Z_VEC3),
			},
			RestMatrix: identityMatrix(),
		}, true
	case SHAPE_SQUARE, SHAPE_PIVOT:
		return model.ControlShape{
			Type: shapeType,
			Curves: []model.ShapeCurve{linearCurve([]mmath.Vec3{
				mmath.NewVec3(0, 1, 1), mmath.NewVec3(0, 1, -1), mmath.NewVec3(0, -1, -1), mmath.NewVec3(0, -1, 1), mmath.NewVec3(0, 1, 1),
			})},
			RestMatrix: identityMatrix(),
		}, true
	case SHAPE_BOX:
		return model.ControlShape{
			Type: shapeType,
			Curves: []model.ShapeCurve{linearCurve([]mmath.Vec3{
				mmath.NewVec3(-1, 1, 1), mmath.NewVec3(1, 1, 1), mmath.NewVec3(1, 1, -1), mmath.NewVec3(-1, 1, -1),
				mmath.NewVec3(-1, 1, 1), mmath.NewVec3(-1, -1, 1), mmath.NewVec3(1, -1, 1), mmath.NewVec3(1, 1, 1),
				mmath.NewVec3(1, -1, 1), mmath.NewVec3(1, -1, -1), mmath.NewVec3(1, 1, -1), mmath.NewVec3(1, -1, -1),
				mmath.NewVec3(-1, -1, -1), mmath.NewVec3(-1, 1, -1), mmath.NewVec3(-1, -1, -1), mmath.NewVec3(-1, -1, 1),
			})},
			RestMatrix: identityMatrix(),
		}, true
	default:
		return model.ControlShape{}, false
	}
}

// circleCurve は normal を法線とする半径1の周期3次曲線を返す。
func circleCurve(normal mmath.Vec3) model.ShapeCurve {
	const points = 8
	u := normal.AnyPerpendicular()
	v := normal.Cross(u).Normalized()
	cvs := make([]mmath.Vec3, 0, points+3)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / points
		cvs = append(cvs, u.MuledScalar(math.Cos(angle)).Added(v.MuledScalar(math.Sin(angle))))
	}
	// 周期曲線は先頭 degree 個のCVを末尾に重ねる
	cvs = append(cvs, cvs[0], cvs[1], cvs[2])
	knots := make([]float64, len(cvs)+3+1)
	for i := range knots {
		knots[i] = float64(i - 3)
	}
	return model.ShapeCurve{CVs: cvs, Knots: knots, Degree: 3, Form: model.CURVE_FORM_PERIODIC}
}

func linearCurve(cvs []mmath.Vec3) model.ShapeCurve {
	knots := make([]float64, len(cvs))
	for i := range knots {
		knots[i] = float64(i)
	}
	return model.ShapeCurve{CVs: cvs, Knots: knots, Degree: 1, Form: model.CURVE_FORM_OPEN}
}

func identityMatrix() [16]float64 {
	return [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}
