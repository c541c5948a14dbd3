package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrDuplicateFile   = errors.New("文件已上传过")
	ErrRasterizeFailed = errors.New("光栅化失败")
	ErrRecognizeFailed = errors.New("文字识别失败")
	ErrExtractFailed   = errors.New("字段抽取失败")
	ErrScoreFailed     = errors.New("评分失败")
	ErrCommitFailed    = errors.New("归档落库失败")
	ErrStoreFileFailed = errors.New("上传原始文件失败")
)

// ProcessError 包含详细错误信息的自定义错误
type ProcessError struct {
	SubmissionUUID string
	Op             string
	BaseErr        error
	Detail         string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.SubmissionUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.SubmissionUUID)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewDuplicateError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "dedup",
		BaseErr:        ErrDuplicateFile,
		Detail:         detail,
	}
}

func NewRasterizeError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "rasterize",
		BaseErr:        ErrRasterizeFailed,
		Detail:         detail,
	}
}

func NewRecognizeError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "recognize",
		BaseErr:        ErrRecognizeFailed,
		Detail:         detail,
	}
}

func NewExtractError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "extract",
		BaseErr:        ErrExtractFailed,
		Detail:         detail,
	}
}

func NewCommitError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "commit",
		BaseErr:        ErrCommitFailed,
		Detail:         detail,
	}
}

func NewStoreFileError(uuid, detail string) error {
	return &ProcessError{
		SubmissionUUID: uuid,
		Op:             "store",
		BaseErr:        ErrStoreFileFailed,
		Detail:         detail,
	}
}
