package parser

import (
	"context"

	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/types"
)

// FallbackExtractor 先走模型辅助抽取，任何失败都静默回退到规则抽取
// 调用方只能通过结果的Method字段区分实际走了哪条路径
type FallbackExtractor struct {
	primary  FieldExtractor
	fallback FieldExtractor
}

// NewFallbackExtractor 创建带回退的抽取器
// primary为nil时直接使用fallback
func NewFallbackExtractor(primary, fallback FieldExtractor) *FallbackExtractor {
	return &FallbackExtractor{
		primary:  primary,
		fallback: fallback,
	}
}

// Extract 抽取字段，主路径失败时自动回退
func (f *FallbackExtractor) Extract(ctx context.Context, text string) (*types.ResumeFields, error) {
	if f.primary != nil {
		fields, err := f.primary.Extract(ctx, text)
		if err == nil && fields != nil {
			return fields, nil
		}
		logger.Debug().Err(err).Msg("模型辅助抽取失败，回退到规则抽取")
	}
	return f.fallback.Extract(ctx, text)
}

var _ FieldExtractor = (*FallbackExtractor)(nil)
var _ FieldExtractor = (*PatternExtractor)(nil)
