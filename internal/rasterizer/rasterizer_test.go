package rasterizer

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 生成一张最小的PNG图像字节
func makePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, png.Encode(&buf, img), "编码测试PNG失败")
	return buf.Bytes()
}

// TestSniffFormat 验证文件头识别
func TestSniffFormat(t *testing.T) {
	assert.Equal(t, "pdf", SniffFormat([]byte("%PDF-1.7\n...")), "PDF魔数识别失败")
	assert.Equal(t, "jpeg", SniffFormat([]byte{0xFF, 0xD8, 0xFF, 0xE0}), "JPEG魔数识别失败")
	assert.Equal(t, "", SniffFormat([]byte("just some text")), "纯文本不应识别为任何格式")
}

// TestRasterizeUnsupportedFormat 非PDF非图像的输入应返回 ErrUnsupportedFormat
func TestRasterizeUnsupportedFormat(t *testing.T) {
	r := New()

	_, err := r.Rasterize(context.Background(), []byte("这是一个docx文件的内容"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "应返回不支持的格式错误")

	_, err = r.Rasterize(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "空输入应返回不支持的格式错误")
}

// TestRasterizeImagePassthrough 图像输入应作为单页直接透传
func TestRasterizeImagePassthrough(t *testing.T) {
	r := New()
	pngData := makePNG(t)

	pages, err := r.Rasterize(context.Background(), pngData)
	require.NoError(t, err, "PNG输入不应报错")
	require.Len(t, pages, 1, "图像输入应只产生一页")
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "png", pages[0].Format)
	assert.Equal(t, pngData, pages[0].Data, "透传的图像字节应与输入一致")
}

// TestRasterizeCorruptPDF 带PDF魔数但内容损坏的文件应返回 ErrRenderFailure
func TestRasterizeCorruptPDF(t *testing.T) {
	r := New()

	corrupt := []byte("%PDF-1.4\n这不是合法的PDF结构")
	_, err := r.Rasterize(context.Background(), corrupt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailure, "损坏的PDF应返回渲染失败错误")
	assert.NotErrorIs(t, err, ErrUnsupportedFormat, "损坏的PDF不应被当作格式不支持")
}

// TestOptions 验证功能选项的边界处理
func TestOptions(t *testing.T) {
	r := New(WithScale(3.0), WithMaxPages(5))
	assert.Equal(t, 3.0, r.scale)
	assert.Equal(t, 5, r.maxPages)

	// 非法值应被忽略，保持默认
	r2 := New(WithScale(-1), WithMaxPages(0))
	assert.Equal(t, 2.0, r2.scale, "非法缩放倍数应保持默认2.0")
	assert.Equal(t, 20, r2.maxPages, "非法页数上限应保持默认20")
}
