package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/ocr"
	"hr-agent-go/internal/types"
)

// ----- 各组件的测试替身 -----

type fakeRasterizer struct {
	pages   int
	failFor map[string]bool // 按文件内容标记触发失败
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, data []byte) ([]types.PageImage, error) {
	if f.failFor != nil && f.failFor[string(data)] {
		return nil, errors.New("文件已损坏")
	}
	n := f.pages
	if n <= 0 {
		n = 2
	}
	pages := make([]types.PageImage, n)
	for i := range pages {
		pages[i] = types.PageImage{PageNumber: i + 1, Format: "png", Data: []byte("img")}
	}
	return pages, nil
}

type fakeRecognizer struct {
	mu      sync.Mutex
	text    string // 返回的识别文本，失败时与failErr一起返回表示部分结果
	failErr error
}

func (f *fakeRecognizer) RecognizeDocument(ctx context.Context, pages []types.PageImage, progress ocr.PageProgressFunc) (string, []types.UsageLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]types.UsageLogEntry, 0, len(pages))
	for i := range pages {
		entries = append(entries, types.UsageLogEntry{PageNumber: i + 1, Success: f.failErr == nil})
		if progress != nil {
			progress(i+1, len(pages))
		}
	}
	return f.text, entries, f.failErr
}

type fakeExtractor struct {
	fields  *types.ResumeFields
	failErr error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*types.ResumeFields, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	if f.fields != nil {
		return f.fields, nil
	}
	return &types.ResumeFields{Name: "张三", Phone: "13812345678", Degree: "硕士", Method: "pattern"}, nil
}

type fakeScorer struct{}

func (fakeScorer) Score(fields *types.ResumeFields, weights types.ScoreWeights) types.ScoreReport {
	return types.ScoreReport{EducationScore: 85, ExperienceScore: 50, SkillScore: 40, TotalScore: 58}
}

// progressRecorder 按文件记录进度回调序列
type progressRecorder struct {
	mu     sync.Mutex
	states map[string][]types.ProcessState
	points map[string][]int
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{
		states: make(map[string][]types.ProcessState),
		points: make(map[string][]int),
	}
}

func (r *progressRecorder) callback(fileID string, state types.ProcessState, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[fileID] = append(r.states[fileID], state)
	r.points[fileID] = append(r.points[fileID], percent)
}

func newTestPipeline(comp *Components, opts ...SettingOpt) *Pipeline {
	base := []SettingOpt{WithsetLogger(log.New(io.Discard, "", 0))}
	return NewPipeline(comp, &Settings{}, append(base, opts...)...)
}

// TestProcessFileCommitted 正常流程：状态最终为COMMITTED且产物齐全
func TestProcessFileCommitted(t *testing.T) {
	rec := newProgressRecorder()
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{pages: 3},
		Recognizer: &fakeRecognizer{text: "张三\n电话: 13812345678"},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("pdf-bytes"), rec.callback)

	require.NotNil(t, result)
	assert.Equal(t, types.StateCommitted, result.State, "正常流程应以COMMITTED结束")
	assert.NoError(t, result.Err)
	assert.NotEmpty(t, result.SubmissionUUID, "每次提交都应分配UUID")
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, "张三\n电话: 13812345678", result.RawText)
	require.NotNil(t, result.Fields)
	assert.Equal(t, "张三", result.Fields.Name)
	require.NotNil(t, result.Scores)
	assert.Equal(t, 58, result.Scores.TotalScore)

	states := rec.states[result.SubmissionUUID]
	expected := []types.ProcessState{
		types.StateQueued,
		types.StateRasterizing,
		types.StateRecognizing,
	}
	require.GreaterOrEqual(t, len(states), len(expected)+3, "进度回调次数不足")
	assert.Equal(t, expected, states[:3], "状态流转顺序与预期不符")
	assert.Equal(t, types.StateCommitted, states[len(states)-1], "最后一次回调应为COMMITTED")
}

// TestProcessFileOCRProgressRange 识别阶段的进度应在10到90之间按页推进
func TestProcessFileOCRProgressRange(t *testing.T) {
	rec := newProgressRecorder()
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{pages: 4},
		Recognizer: &fakeRecognizer{text: "全文"},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("pdf-bytes"), rec.callback)
	require.Equal(t, types.StateCommitted, result.State)

	states := rec.states[result.SubmissionUUID]
	points := rec.points[result.SubmissionUUID]

	var ocrPoints []int
	for i, s := range states {
		if s == types.StateRecognizing {
			ocrPoints = append(ocrPoints, points[i])
		}
	}
	// 入场回调10，之后4页各推进一次: 30/50/70/90
	assert.Equal(t, []int{10, 30, 50, 70, 90}, ocrPoints, "识别阶段进度应按页数在10-90间均匀推进")
}

// TestProcessFileRasterizeFailure 光栅化失败：状态FAILED且记录失败阶段
func TestProcessFileRasterizeFailure(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{failFor: map[string]bool{"broken": true}},
		Recognizer: &fakeRecognizer{text: "全文"},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "broken.pdf", []byte("broken"), nil)

	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateRasterizing, result.FailedStage, "失败阶段应为光栅化")
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, ErrRasterizeFailed)
	assert.Nil(t, result.Fields, "失败后不应产出抽取字段")
}

// TestProcessFileExtractFailure 抽取失败路径
func TestProcessFileExtractFailure(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{},
		Recognizer: &fakeRecognizer{text: "全文"},
		Extractor:  &fakeExtractor{failErr: errors.New("识别文本为空")},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("pdf-bytes"), nil)

	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateExtracting, result.FailedStage)
	assert.ErrorIs(t, result.Err, ErrExtractFailed)
}

// TestProcessFilePartialOCRStillCommits 部分页识别失败时带告警继续，最终仍COMMITTED
func TestProcessFilePartialOCRStillCommits(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{pages: 3},
		Recognizer: &fakeRecognizer{
			text:    "第一页文字\n张三 13812345678",
			failErr: errors.New("1/3页识别失败: 第2页: OCR识别失败"),
		},
		Extractor: &fakeExtractor{},
		Scorer:    fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("pdf-bytes"), nil)

	assert.Equal(t, types.StateCommitted, result.State, "有部分识别文本时不应整份失败")
	assert.NoError(t, result.Err)
	assert.Equal(t, "第一页文字\n张三 13812345678", result.RawText, "部分文本应保留并进入后续阶段")
	assert.NotEmpty(t, result.OCRWarning, "部分页失败应带告警说明")
	assert.Contains(t, result.OCRWarning, "第2页")
	require.NotNil(t, result.Fields, "部分文本仍应完成字段抽取")
	require.NotNil(t, result.Scores, "部分文本仍应完成评分")
}

// TestProcessFileAllPagesFailed 全部页识别失败时整份文件失败于识别阶段
func TestProcessFileAllPagesFailed(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{pages: 2},
		Recognizer: &fakeRecognizer{text: "", failErr: errors.New("2/2页识别失败")},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("pdf-bytes"), nil)

	assert.Equal(t, types.StateFailed, result.State)
	assert.Equal(t, types.StateRecognizing, result.FailedStage, "失败阶段应为识别")
	assert.ErrorIs(t, result.Err, ErrRecognizeFailed)
	assert.Empty(t, result.OCRWarning, "没有可用文本时不应产生告警而应直接失败")
}

// TestProcessBatchIsolation 批处理中单份失败不影响其余文件
func TestProcessBatchIsolation(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{failFor: map[string]bool{"broken": true}},
		Recognizer: &fakeRecognizer{text: "全文"},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	files := []BatchFile{
		{FileName: "a.pdf", Data: []byte("ok-a")},
		{FileName: "b.pdf", Data: []byte("broken")},
		{FileName: "c.pdf", Data: []byte("ok-c")},
	}
	results := p.ProcessBatch(context.Background(), files, nil)

	require.Len(t, results, 3)
	assert.Equal(t, types.StateCommitted, results[0].State, "第一份文件应正常完成")
	assert.Equal(t, types.StateFailed, results[1].State, "第二份文件应失败")
	assert.Equal(t, types.StateRasterizing, results[1].FailedStage)
	assert.Equal(t, types.StateCommitted, results[2].State, "第三份文件不应被第二份的失败牵连")
}

// TestProcessBatchParallel 并发批处理的结果顺序与输入顺序一致
func TestProcessBatchParallel(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{},
		Recognizer: &fakeRecognizer{text: "全文"},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	}, WithsetParallelism(4))

	var files []BatchFile
	for i := 0; i < 8; i++ {
		files = append(files, BatchFile{
			FileName: fmt.Sprintf("resume-%d.pdf", i),
			Data:     []byte(fmt.Sprintf("content-%d", i)),
		})
	}

	results := p.ProcessBatch(context.Background(), files, nil)
	require.Len(t, results, 8)
	for i, r := range results {
		require.NotNil(t, r, "第%d个结果不应为空", i)
		assert.Equal(t, files[i].FileName, r.FileName, "结果顺序应与输入顺序一致")
		assert.Equal(t, types.StateCommitted, r.State)
	}
}

// TestTextLayerFastPath 文本层可用时跳过光栅化和OCR
func TestTextLayerFastPath(t *testing.T) {
	raster := &fakeRasterizer{failFor: map[string]bool{"any": true}}
	p := newTestPipeline(&Components{
		Rasterizer: raster,
		Recognizer: &fakeRecognizer{failErr: errors.New("不应被调用")},
		TextLayer:  textLayerStub{text: "文本层内容", ok: true},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "resume.pdf", []byte("any"), nil)

	assert.Equal(t, types.StateCommitted, result.State, "命中文本层快速通道时应直接完成")
	assert.Equal(t, "文本层内容", result.RawText)
	assert.Equal(t, 0, result.PageCount, "快速通道不经过光栅化，页数保持0")
}

// TestTextLayerSkippedForNonPDF 非PDF文件不走文本层通道
func TestTextLayerSkippedForNonPDF(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{pages: 1},
		Recognizer: &fakeRecognizer{text: "OCR结果"},
		TextLayer:  textLayerStub{text: "不应使用", ok: true},
		Extractor:  &fakeExtractor{},
		Scorer:     fakeScorer{},
	})

	result := p.ProcessFile(context.Background(), "photo.png", []byte("png-bytes"), nil)

	require.Equal(t, types.StateCommitted, result.State)
	assert.Equal(t, "OCR结果", result.RawText, "图片文件应走OCR路径")
}

type textLayerStub struct {
	text string
	ok   bool
}

func (s textLayerStub) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, bool, error) {
	return s.text, s.ok, nil
}

// TestDefaultWeightsApplied 未显式设置权重时使用默认权重
func TestDefaultWeightsApplied(t *testing.T) {
	p := newTestPipeline(&Components{})
	assert.Equal(t, types.DefaultScoreWeights(), p.Settings.Weights, "未配置时应回落到默认权重")
}

// TestFailedStageMessageContainsUUID 错误信息应可定位到提交UUID
func TestFailedStageMessageContainsUUID(t *testing.T) {
	p := newTestPipeline(&Components{
		Rasterizer: &fakeRasterizer{failFor: map[string]bool{"broken": true}},
	})

	result := p.ProcessFile(context.Background(), "broken.pdf", []byte("broken"), nil)
	require.Error(t, result.Err)
	assert.True(t, strings.Contains(result.Err.Error(), result.SubmissionUUID), "错误信息应包含提交UUID")
}
