// 指示: miu200521358
// Package io_common は入出力アダプターで共有するエラーを提供する。
package io_common

import (
	"errors"
	"fmt"
)

// エラーID一覧。
const (
	IoFileNotFoundErrorID       = "14101"
	IoExtInvalidErrorID         = "14102"
	IoParseFailedErrorID        = "14103"
	IoFormatNotSupportedErrorID = "14104"
	IoSaveFailedErrorID         = "14201"
)

// IoError は入出力処理の失敗を表す。
type IoError struct {
	id      string
	message string
	cause   error
}

func newIoError(id string, cause error, format string, params ...any) *IoError {
	return &IoError{id: id, message: fmt.Sprintf(format, params...), cause: cause}
}

// NewIoFileNotFound はファイル未検出エラーを生成する。
func NewIoFileNotFound(path string, cause error) *IoError {
	return newIoError(IoFileNotFoundErrorID, cause, "ファイルが見つかりません: %s", path)
}

// NewIoExtInvalid は拡張子不正エラーを生成する。
func NewIoExtInvalid(path string, cause error) *IoError {
	return newIoError(IoExtInvalidErrorID, cause, "拡張子が未対応です: %s", path)
}

// NewIoParseFailed は解析失敗エラーを生成する。
func NewIoParseFailed(format string, cause error, params ...any) *IoError {
	return newIoError(IoParseFailedErrorID, cause, format, params...)
}

// NewIoFormatNotSupported は未対応形式エラーを生成する。
func NewIoFormatNotSupported(format string, cause error, params ...any) *IoError {
	return newIoError(IoFormatNotSupportedErrorID, cause, format, params...)
}

// NewIoSaveFailed は保存失敗エラーを生成する。
func NewIoSaveFailed(format string, cause error, params ...any) *IoError {
	return newIoError(IoSaveFailedErrorID, cause, format, params...)
}

func (e *IoError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

// ErrorID はエラーIDを返す。
func (e *IoError) ErrorID() string { return e.id }

// Unwrap は原因エラーを返す。
func (e *IoError) Unwrap() error { return e.cause }

// HasErrorID はエラーチェーン内に指定IDの入出力エラーがあるか判定する。
func HasErrorID(err error, id string) bool {
	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		return false
	}
	return ioErr.id == id
}
