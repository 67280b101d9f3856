// 指示: miu200521358
package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// アニメーター向けに公開する属性名。
const (
	ATTR_IK_FK          = "ikFk"
	ATTR_FK_STRETCH     = "fkStretch"
	ATTR_SNAP_TO_POLE   = "snapToPole"
	ATTR_ISOLATE_ORIENT = "isolateOrient"
	ATTR_ISOLATE_POINT  = "isolatePoint"
	ATTR_POLE_POSITION  = "polePosition"
)

// 構築内部で使う属性名。
const (
	ATTR_OUTPUT      = "output"
	ATTR_TWIST       = "twist"
	ATTR_TWIST_SHARE = "twistShare"
	ATTR_VOLUME      = "volume"
	ATTR_STRETCH     = "stretch"
	ATTR_VISIBILITY  = "visibility"
)

// FK伸縮属性の範囲。
const (
	FK_STRETCH_MIN = 0.2
	FK_STRETCH_MAX = 5.0
)

// PolePosition はポールベクターの追従空間を表す。
type PolePosition int

const (
	POLE_POSITION_WORLD PolePosition = iota
	POLE_POSITION_ROOT
	POLE_POSITION_LIMB
)

// PolePositionNames は polePosition 列挙の表示名。
var PolePositionNames = []string{"world", "root", "limb"}

// AttributeType は属性の型を表す。
type AttributeType int

const (
	ATTRIBUTE_TYPE_FLOAT AttributeType = iota
	ATTRIBUTE_TYPE_ENUM
)

// Attribute はノードに追加するスカラー属性を表す。
type Attribute struct {
	Name      string
	NiceName  string
	Type      AttributeType
	Value     float64
	Default   float64
	Min       float64
	Max       float64
	HasMin    bool
	HasMax    bool
	Keyable   bool
	EnumNames []string
}

// NewFloatAttribute は実数属性を生成する。
func NewFloatAttribute(name string, defaultValue float64) *Attribute {
	return &Attribute{
		Name:     name,
		NiceName: NiceName(name),
		Type:     ATTRIBUTE_TYPE_FLOAT,
		Value:    defaultValue,
		Default:  defaultValue,
		Keyable:  true,
	}
}

// NewRangeAttribute は範囲付き実数属性を生成する。
func NewRangeAttribute(name string, defaultValue float64, min float64, max float64) *Attribute {
	attr := NewFloatAttribute(name, defaultValue)
	attr.Min, attr.HasMin = min, true
	attr.Max, attr.HasMax = max, true
	attr.Value = attr.clamp(defaultValue)
	attr.Default = attr.Value
	return attr
}

// NewEnumAttribute は列挙属性を生成する。
func NewEnumAttribute(name string, enumNames []string, defaultIndex int) *Attribute {
	attr := NewRangeAttribute(name, float64(defaultIndex), 0, float64(len(enumNames)-1))
	attr.Type = ATTRIBUTE_TYPE_ENUM
	attr.EnumNames = append([]string(nil), enumNames...)
	return attr
}

// Set は範囲でクランプして値を設定する。
func (a *Attribute) Set(value float64) {
	a.Value = a.clamp(value)
}

// Reset は既定値へ戻す。
func (a *Attribute) Reset() {
	a.Value = a.Default
}

// EnumIndex は列挙値のindexを返す。
func (a *Attribute) EnumIndex() int {
	return int(a.Value + 0.5)
}

func (a *Attribute) clamp(value float64) float64 {
	if a.HasMin && value < a.Min {
		value = a.Min
	}
	if a.HasMax && value > a.Max {
		value = a.Max
	}
	return value
}

// NiceName は camelCase の属性名から表示名を生成する。
func NiceName(name string) string {
	var builder strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			builder.WriteRune(' ')
		}
		builder.WriteRune(r)
	}
	return cases.Title(language.Und, cases.NoLower).String(builder.String())
}
