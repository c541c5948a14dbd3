package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"hr-agent-go/internal/logger"
)

// minTextLayerChars 文本层低于该字符数时视为扫描件，仍需走OCR
const minTextLayerChars = 50

// TextLayerExtractor 使用 Eino PDF Parser 提取PDF自带的文本层
// 电子版简历自带文本层时可以完全跳过OCR，节省配额
type TextLayerExtractor struct {
	parser *pdf.PDFParser
}

// NewTextLayerExtractor 初始化文本层提取器
// 配置为不按页面分割，获取整个文档的连续文本
func NewTextLayerExtractor(ctx context.Context) (*TextLayerExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF文本层解析器失败: %w", err)
	}
	return &TextLayerExtractor{parser: p}, nil
}

// ExtractFromBytes 从PDF字节中提取文本层内容
// 返回的ok为false表示该文件没有可用的文本层（扫描件）
func (e *TextLayerExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (text string, ok bool, err error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
	)
	if err != nil {
		return "", false, fmt.Errorf("PDF文本层解析失败: %w", err)
	}
	if len(docs) == 0 {
		return "", false, nil
	}

	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.Content)
	}
	text = sb.String()

	if len(strings.TrimSpace(text)) < minTextLayerChars {
		// 扫描件或近似空白的文本层，交给OCR处理
		return "", false, nil
	}

	logger.Debug().
		Int("chars", len(text)).
		Dur("elapsed", time.Since(startTime)).
		Str("uri", uri).
		Msg("PDF自带文本层，跳过OCR")
	return text, true, nil
}
