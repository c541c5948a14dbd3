package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/ocr"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/types"
)

type stubRasterizer struct{}

func (stubRasterizer) Rasterize(ctx context.Context, data []byte) ([]types.PageImage, error) {
	if string(data) == "bad" {
		return nil, errors.New("无法解析的文件")
	}
	return []types.PageImage{{PageNumber: 1, Format: "png", Data: []byte("img")}}, nil
}

type stubRecognizer struct{}

func (stubRecognizer) RecognizeDocument(ctx context.Context, pages []types.PageImage, progress ocr.PageProgressFunc) (string, []types.UsageLogEntry, error) {
	return "李四\n13900001111", nil, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, text string) (*types.ResumeFields, error) {
	return &types.ResumeFields{Name: "李四", Phone: "13900001111", Degree: "本科", Method: "pattern"}, nil
}

type stubScorer struct{}

func (stubScorer) Score(fields *types.ResumeFields, weights types.ScoreWeights) types.ScoreReport {
	return types.ScoreReport{EducationScore: 70, TotalScore: 21}
}

func newTestHandler() *ResumeHandler {
	pipeline := processor.NewPipeline(
		&processor.Components{
			Rasterizer: stubRasterizer{},
			Recognizer: stubRecognizer{},
			Extractor:  stubExtractor{},
			Scorer:     stubScorer{},
		},
		&processor.Settings{},
		processor.WithsetLogger(log.New(io.Discard, "", 0)),
	)
	return NewResumeHandler(&config.Config{}, nil, pipeline, ocr.NewMemoryQuotaStore(500))
}

// TestHandleUploadAggregation 上传响应应正确汇总成功与失败数量
func TestHandleUploadAggregation(t *testing.T) {
	h := newTestHandler()

	resp, err := h.HandleUpload(context.Background(), []processor.BatchFile{
		{FileName: "a.pdf", Data: []byte("ok")},
		{FileName: "b.pdf", Data: []byte("bad")},
		{FileName: "c.pdf", Data: []byte("ok")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Committed, "两份正常文件应处理成功")
	assert.Equal(t, 1, resp.Failed, "损坏文件应计入失败")
	require.Len(t, resp.Results, 3)

	assert.Equal(t, string(types.StateCommitted), resp.Results[0].Status)
	require.NotNil(t, resp.Results[0].TotalScore)
	assert.Equal(t, 21, *resp.Results[0].TotalScore)
	require.NotNil(t, resp.Results[0].Fields)
	assert.Equal(t, "李四", resp.Results[0].Fields.Name)

	assert.Equal(t, string(types.StateFailed), resp.Results[1].Status)
	assert.Equal(t, string(types.StateRasterizing), resp.Results[1].FailedStage)
	assert.NotEmpty(t, resp.Results[1].Error)
}

// TestHandleUploadEmpty 空文件列表应直接报错
func TestHandleUploadEmpty(t *testing.T) {
	h := newTestHandler()
	_, err := h.HandleUpload(context.Background(), nil)
	require.Error(t, err)
}

// TestNormalizePage 非法分页参数应回落到默认值
func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 20, size, "超出上限的size应回落到默认值")

	page, size = normalizePage(2, 50)
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, size)
}
