package errors

import (
	stderrors "errors"
	"fmt"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码 (1xxx) - 服务层类型化错误，逐层原样透传到接口层
const (
	CodeValidation          = 1001 // 参数校验失败
	CodeDuplicateEmail      = 1002 // 邮箱已存在（平台全局唯一）
	CodeCapacityExceeded    = 1003 // 席位容量不足
	CodeTenantMismatch      = 1004 // 跨租户访问（安全事件）
	CodeInsufficientRole    = 1005 // 角色权限不足
	CodeOwnershipConstraint = 1006 // 唯一所有者约束冲突
	CodeSubscriptionGate    = 1007 // 订阅状态拦截
	CodeRecordNotFound      = 1008 // 记录不存在
)

// AppError 业务错误 - 携带稳定的业务错误码
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// New 创建业务错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf 创建业务错误（格式化消息）
func Newf(code int, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ========== 快捷构造方法 ==========

func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

func NewDuplicateEmail(email string) *AppError {
	return Newf(CodeDuplicateEmail, "邮箱 %s 已被注册", email)
}

func NewCapacityExceeded(message string) *AppError {
	return New(CodeCapacityExceeded, message)
}

func NewTenantMismatch() *AppError {
	return New(CodeTenantMismatch, "无权访问其他租户的数据")
}

func NewInsufficientRole(message string) *AppError {
	return New(CodeInsufficientRole, message)
}

func NewOwnershipConstraint(message string) *AppError {
	return New(CodeOwnershipConstraint, message)
}

func NewSubscriptionGate(message string) *AppError {
	return New(CodeSubscriptionGate, message)
}

func NewRecordNotFound(message string) *AppError {
	return New(CodeRecordNotFound, message)
}

// ========== 判断方法 ==========

// GetCode 提取业务错误码，非业务错误返回 CodeServerError
func GetCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// Is 判断错误是否为指定业务错误码
func Is(err error, code int) bool {
	return GetCode(err) == code
}
