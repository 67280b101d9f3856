// 指示: miu200521358
// Package merrors はリグ構築で発生するドメインエラーを提供する。
package merrors

import (
	"errors"
	"fmt"
	"strings"
)

// エラーID一覧。
const (
	ResolutionErrorID          = "15101"
	StructuralInvariantErrorID = "15201"
	SnapConsistencyErrorID     = "15301"
	CycleErrorID               = "15401"
	PlugConflictErrorID        = "15402"
	NameConflictErrorID        = "15501"
	NodeNotFoundErrorID        = "15502"
)

// IdentifiedError はエラーIDを持つエラーの契約を表す。
type IdentifiedError interface {
	error
	ErrorID() string
}

// ResolutionError は必須ゾーン/ジョイントが1件も一致しなかったことを表す。
type ResolutionError struct {
	Zone    string
	Side    string
	Pattern string
}

// NewResolutionError はResolutionErrorを生成する。
func NewResolutionError(zone string, side string, pattern string) *ResolutionError {
	return &ResolutionError{Zone: zone, Side: side, Pattern: pattern}
}

func (e *ResolutionError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("ゾーンに一致するジョイントがありません: zone=%s pattern=%s", e.Zone, e.Pattern)
	}
	return fmt.Sprintf("ゾーンに一致するジョイントがありません: zone=%s side=%s pattern=%s", e.Zone, e.Side, e.Pattern)
}

// ErrorID はエラーIDを返す。
func (e *ResolutionError) ErrorID() string { return ResolutionErrorID }

// StructuralInvariantError は ik/fk/main の長さ不一致などの構造不変条件違反を表す。
type StructuralInvariantError struct {
	Message string
}

// NewStructuralInvariantError はStructuralInvariantErrorを生成する。
func NewStructuralInvariantError(format string, params ...any) *StructuralInvariantError {
	return &StructuralInvariantError{Message: fmt.Sprintf(format, params...)}
}

func (e *StructuralInvariantError) Error() string {
	return "構造不変条件違反: " + e.Message
}

// ErrorID はエラーIDを返す。
func (e *StructuralInvariantError) ErrorID() string { return StructuralInvariantErrorID }

// SnapConsistencyError はスナップ対象の対応コントロールが見つからないことを表す。
type SnapConsistencyError struct {
	Switch  string
	Message string
}

// NewSnapConsistencyError はSnapConsistencyErrorを生成する。
func NewSnapConsistencyError(switchName string, format string, params ...any) *SnapConsistencyError {
	return &SnapConsistencyError{Switch: switchName, Message: fmt.Sprintf(format, params...)}
}

func (e *SnapConsistencyError) Error() string {
	return fmt.Sprintf("スナップ整合性エラー: switch=%s %s", e.Switch, e.Message)
}

// ErrorID はエラーIDを返す。
func (e *SnapConsistencyError) ErrorID() string { return SnapConsistencyErrorID }

// CycleError は評価グラフに循環が生じる接続を表す。
type CycleError struct {
	Operator string
	Plugs    []string
}

// NewCycleError はCycleErrorを生成する。
func NewCycleError(operator string, plugs []string) *CycleError {
	return &CycleError{Operator: operator, Plugs: plugs}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("評価グラフに循環が発生します: operator=%s plugs=[%s]", e.Operator, strings.Join(e.Plugs, ", "))
}

// ErrorID はエラーIDを返す。
func (e *CycleError) ErrorID() string { return CycleErrorID }

// PlugConflictError は同一プラグへの複数書き込みを表す。
type PlugConflictError struct {
	Plug     string
	Existing string
	Incoming string
}

func (e *PlugConflictError) Error() string {
	return fmt.Sprintf("プラグは既に駆動されています: plug=%s existing=%s incoming=%s", e.Plug, e.Existing, e.Incoming)
}

// ErrorID はエラーIDを返す。
func (e *PlugConflictError) ErrorID() string { return PlugConflictErrorID }

// NewPlugConflictError はPlugConflictErrorを生成する。
func NewPlugConflictError(plug string, existing string, incoming string) *PlugConflictError {
	return &PlugConflictError{Plug: plug, Existing: existing, Incoming: incoming}
}

// NameConflictError はノード名の重複を表す。
type NameConflictError struct {
	Name string
}

// NewNameConflictError はNameConflictErrorを生成する。
func NewNameConflictError(name string) *NameConflictError {
	return &NameConflictError{Name: name}
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("同名ノードが既に存在します: %s", e.Name)
}

// ErrorID はエラーIDを返す。
func (e *NameConflictError) ErrorID() string { return NameConflictErrorID }

// NodeNotFoundError はノード未検出を表す。
type NodeNotFoundError struct {
	Key string
}

// NewNodeNotFoundError はNodeNotFoundErrorを生成する。
func NewNodeNotFoundError(key string) *NodeNotFoundError {
	return &NodeNotFoundError{Key: key}
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("ノードが見つかりません: %s", e.Key)
}

// ErrorID はエラーIDを返す。
func (e *NodeNotFoundError) ErrorID() string { return NodeNotFoundErrorID }

// IsResolutionError はResolutionErrorか判定する。
func IsResolutionError(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}

// IsStructuralInvariantError はStructuralInvariantErrorか判定する。
func IsStructuralInvariantError(err error) bool {
	var target *StructuralInvariantError
	return errors.As(err, &target)
}

// IsSnapConsistencyError はSnapConsistencyErrorか判定する。
func IsSnapConsistencyError(err error) bool {
	var target *SnapConsistencyError
	return errors.As(err, &target)
}

// IsCycleError はCycleErrorか判定する。
func IsCycleError(err error) bool {
	var target *CycleError
	return errors.As(err, &target)
}

// IsPlugConflictError はPlugConflictErrorか判定する。
func IsPlugConflictError(err error) bool {
	var target *PlugConflictError
	return errors.As(err, &target)
}

// IsNameConflictError はNameConflictErrorか判定する。
func IsNameConflictError(err error) bool {
	var target *NameConflictError
	return errors.As(err, &target)
}

// IsNodeNotFoundError はNodeNotFoundErrorか判定する。
func IsNodeNotFoundError(err error) bool {
	var target *NodeNotFoundError
	return errors.As(err, &target)
}

// ExtractErrorID はエラーチェーンからエラーIDを取り出す。見つからない場合は空文字を返す。
func ExtractErrorID(err error) string {
	var identified IdentifiedError
	if errors.As(err, &identified) {
		return identified.ErrorID()
	}
	return ""
}
