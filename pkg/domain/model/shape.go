// 指示: miu200521358
package model

import "github.com/miu200521358/mu_autorig/pkg/domain/mmath"

// CurveForm はシェイプ曲線の閉じ方を表す。
type CurveForm int

const (
	CURVE_FORM_OPEN CurveForm = iota
	CURVE_FORM_CLOSED
	CURVE_FORM_PERIODIC
)

// ShapeCurve はコントロールシェイプを構成する1本の曲線を表す。
type ShapeCurve struct {
	CVs    []mmath.Vec3
	Knots  []float64
	Degree int
	Form   CurveForm
}

// ControlShape はコントロールの表示形状を表す。
type ControlShape struct {
	Type       string
	Curves     []ShapeCurve
	RestMatrix [16]float64
}

// Scaled は全CVを s 倍した形状を返す。
func (s ControlShape) Scaled(scale float64) ControlShape {
	scaled := ControlShape{Type: s.Type, RestMatrix: s.RestMatrix}
	for _, curve := range s.Curves {
		cvs := make([]mmath.Vec3, 0, len(curve.CVs))
		for _, cv := range curve.CVs {
			cvs = append(cvs, cv.MuledScalar(scale))
		}
		scaled.Curves = append(scaled.Curves, ShapeCurve{
			CVs:    cvs,
			Knots:  append([]float64(nil), curve.Knots...),
			Degree: curve.Degree,
			Form:   curve.Form,
		})
	}
	return scaled
}

// CVCount は全曲線のCV総数を返す。
func (s ControlShape) CVCount() int {
	count := 0
	for _, curve := range s.Curves {
		count += len(curve.CVs)
	}
	return count
}
