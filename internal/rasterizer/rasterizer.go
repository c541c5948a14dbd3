package rasterizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/types"
)

// 基础错误类型
var (
	// ErrUnsupportedFormat 输入既不是PDF也不是支持的图像格式
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	// ErrRenderFailure PDF损坏或页面渲染失败
	ErrRenderFailure = errors.New("PDF渲染失败")
)

// Rasterizer 将PDF文件光栅化为逐页PNG图像
// 图像输入(PNG/JPEG)直接作为单页透传
type Rasterizer struct {
	scale    float64
	maxPages int
	pdfConf  *pdfmodel.Configuration
}

// Option Rasterizer 的配置选项
type Option func(*Rasterizer)

// WithScale 设置渲染缩放倍数，1.0对应72DPI
func WithScale(scale float64) Option {
	return func(r *Rasterizer) {
		if scale > 0 {
			r.scale = scale
		}
	}
}

// WithMaxPages 设置单份文件最多渲染的页数，超出部分截断
func WithMaxPages(n int) Option {
	return func(r *Rasterizer) {
		if n > 0 {
			r.maxPages = n
		}
	}
}

// New 创建光栅化器，默认2.0倍缩放（144DPI）
func New(options ...Option) *Rasterizer {
	r := &Rasterizer{
		scale:    constants.DefaultRasterScale,
		maxPages: constants.DefaultMaxPages,
		pdfConf:  pdfmodel.NewDefaultConfiguration(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// 文件魔数
var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// SniffFormat 根据文件头识别输入格式，返回 "pdf" / "png" / "jpeg" / ""
func SniffFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return "pdf"
	case bytes.HasPrefix(data, pngMagic):
		return "png"
	case bytes.HasPrefix(data, jpegMagic):
		return "jpeg"
	default:
		return ""
	}
}

// Rasterize 将输入文件转换为逐页PNG图像
// PDF逐页渲染；图像输入作为单页透传；其他格式返回 ErrUnsupportedFormat
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte) ([]types.PageImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 空文件", ErrUnsupportedFormat)
	}

	switch SniffFormat(data) {
	case "pdf":
		return r.rasterizePDF(ctx, data)
	case "png", "jpeg":
		// 图像本身就是一页，无需渲染
		return []types.PageImage{{
			PageNumber: 1,
			Format:     SniffFormat(data),
			Data:       data,
		}}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// rasterizePDF 校验PDF结构后逐页渲染为PNG
func (r *Rasterizer) rasterizePDF(ctx context.Context, data []byte) ([]types.PageImage, error) {
	startTime := time.Now()

	// 先用pdfcpu做结构校验并取页数，损坏的文件在渲染前就拦下
	rs := bytes.NewReader(data)
	if err := api.Validate(rs, r.pdfConf); err != nil {
		return nil, fmt.Errorf("%w: 文件校验未通过: %v", ErrRenderFailure, err)
	}

	if _, err := rs.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	pageCount, err := api.PageCount(rs, r.pdfConf)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取页数失败: %v", ErrRenderFailure, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: 文件不含任何页面", ErrRenderFailure)
	}

	renderCount := pageCount
	if renderCount > r.maxPages {
		logger.Warn().
			Int("page_count", pageCount).
			Int("max_pages", r.maxPages).
			Msg("页数超出上限，超出部分将被截断")
		renderCount = r.maxPages
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开文档失败: %v", ErrRenderFailure, err)
	}
	defer doc.Close()

	dpi := 72.0 * r.scale
	pages := make([]types.PageImage, 0, renderCount)
	for i := 0; i < renderCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		imgBytes, err := doc.ImagePNG(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: 第%d页渲染失败: %v", ErrRenderFailure, i+1, err)
		}

		page := types.PageImage{
			PageNumber: i + 1,
			Format:     "png",
			Data:       imgBytes,
		}
		if cfg, err := png.DecodeConfig(bytes.NewReader(imgBytes)); err == nil {
			page.Width = cfg.Width
			page.Height = cfg.Height
		}
		pages = append(pages, page)
	}

	logger.Debug().
		Int("pages", len(pages)).
		Float64("scale", r.scale).
		Dur("elapsed", time.Since(startTime)).
		Msg("PDF光栅化完成")

	return pages, nil
}
