// 包 apperr：跨层错误分类。未命中（NotFound）以 nil/false 表示，不作为错误返回
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported：只读数据源拒绝写操作
	ErrUnsupported = errors.New("unsupported operation")
	// ErrSourceUnavailable：所有镜像耗尽或数据源拉取失败
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSearchFailed：查询服务对外的统一失败
	ErrSearchFailed = errors.New("search failed")
)

// ValidationError：参数或坐标不合法，属于调用方错误，不重试
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TxError：连接级数据库错误导致整批回滚
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return "transaction " + e.Op + ": " + e.Err.Error() }

func (e *TxError) Unwrap() error { return e.Err }

func IsTx(err error) bool {
	var t *TxError
	return errors.As(err, &t)
}
