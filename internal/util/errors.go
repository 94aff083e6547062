package util

import "errors"

// 管道终态错误：跨越管道边界原样上抛
var (
	ErrAllProvidersExhausted = errors.New("all AI providers exhausted")
	ErrPDFExtractionFailed   = errors.New("pdf extraction failed")
	ErrDependencyMissing     = errors.New("dependency missing")
	ErrCancelled             = errors.New("pipeline cancelled")
)

// 阶段内可恢复错误：各阶段内部降级处理，不中断任务
var (
	ErrJSONRecoveryFailed = errors.New("json recovery failed")
	ErrValidationFailed   = errors.New("question validation failed")
)

// 业务错误
var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCourseNotFound     = errors.New("course not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrLessonReferenced   = errors.New("lesson is referenced by questions")
	ErrLanguageNotAllowed = errors.New("target language not in allow-list")
)
