package processor

import (
	"context"

	"hr-agent-go/internal/ocr"
	"hr-agent-go/internal/types"
)

// PageRasterizer 把原始文件转换为逐页图像
type PageRasterizer interface {
	Rasterize(ctx context.Context, data []byte) ([]types.PageImage, error)
}

// DocumentRecognizer 逐页识别文档图像，返回拼接全文与本次识别的调用流水
type DocumentRecognizer interface {
	RecognizeDocument(ctx context.Context, pages []types.PageImage, progress ocr.PageProgressFunc) (string, []types.UsageLogEntry, error)
}

// TextLayerExtractor 尝试直接读取PDF文本层，成功时可以跳过OCR
type TextLayerExtractor interface {
	ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, bool, error)
}

// FieldExtractor 从识别文本中抽取结构化字段
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (*types.ResumeFields, error)
}

// CandidateScorer 对抽取出的字段计算分数
type CandidateScorer interface {
	Score(fields *types.ResumeFields, weights types.ScoreWeights) types.ScoreReport
}
