// Package processor 实现简历处理流水线：
// 入队 -> 光栅化 -> 文字识别 -> 字段抽取 -> 评分 -> 归档落库。
package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Components 聚合所有功能组件依赖，便于集中管理和测试替换
type Components struct {
	Rasterizer PageRasterizer     // 文件转逐页图像
	Recognizer DocumentRecognizer // OCR识别
	TextLayer  TextLayerExtractor // PDF文本层快速通道，可选
	Extractor  FieldExtractor     // 字段抽取
	Scorer     CandidateScorer    // 评分

	// 存储层依赖
	Storage *storage.Storage
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Weights       types.ScoreWeights // 评分权重
	ParserVersion string             // 解析器版本标记
	Parallelism   int                // 批处理并发度，<=1时顺序处理
	Debug         bool
	Logger        *log.Logger
}

// Pipeline 简历处理流水线
type Pipeline struct {
	Components
	Settings Settings
}

// BatchFile 批处理的单个输入文件
type BatchFile struct {
	FileName string
	Data     []byte
}

// NewPipeline 创建简历处理流水线
func NewPipeline(comp *Components, set *Settings, opts ...SettingOpt) *Pipeline {
	for _, opt := range opts {
		opt(set)
	}

	if set.Logger == nil {
		set.Logger = log.New(os.Stdout, "[Pipeline] ", log.LstdFlags)
	}
	zero := types.ScoreWeights{}
	if set.Weights == zero {
		set.Weights = types.DefaultScoreWeights()
	}

	p := &Pipeline{
		Components: *comp,
		Settings:   *set,
	}

	if p.Storage == nil {
		set.Logger.Println("警告: Pipeline 的 Storage 依赖未初始化，处理结果不会持久化。")
	}

	return p
}

// ProcessFile 处理单份简历文件，返回完整处理产物
// 任何阶段失败都会把状态置为FAILED并记录失败阶段，错误通过结果的Err字段带回
func (p *Pipeline) ProcessFile(ctx context.Context, fileName string, data []byte, progress types.ProgressCallback) *types.ProcessResult {
	submissionUUID := newSubmissionUUID()
	result := &types.ProcessResult{
		SubmissionUUID: submissionUUID,
		FileName:       fileName,
		State:          types.StateQueued,
	}

	notify := func(state types.ProcessState, percent int) {
		result.State = state
		if progress != nil {
			progress(submissionUUID, state, percent)
		}
	}

	md5Hex := fileMD5(data)

	fail := func(stage types.ProcessState, err error) *types.ProcessResult {
		result.State = types.StateFailed
		result.FailedStage = stage
		result.Err = err
		p.logWarn("简历处理失败: uuid=%s stage=%s err=%v", submissionUUID, stage, err)

		p.updateStatus(ctx, submissionUUID, string(types.StateFailed), string(stage))
		// 回滚去重记录，允许同一文件重新提交
		if p.Storage != nil && p.Storage.Redis != nil {
			if rmErr := p.Storage.Redis.RemoveRawFileMD5(ctx, md5Hex); rmErr != nil {
				p.logWarn("回滚文件MD5去重记录失败: %v", rmErr)
			}
		}
		if progress != nil {
			progress(submissionUUID, types.StateFailed, 100)
		}
		return result
	}

	notify(types.StateQueued, 0)

	// 文件级去重
	if p.Storage != nil && p.Storage.Redis != nil {
		exists, err := p.Storage.Redis.CheckAndAddRawFileMD5(ctx, md5Hex)
		if err != nil {
			p.logWarn("文件去重检查失败，继续处理: %v", err)
		} else if exists {
			result.State = types.StateFailed
			result.FailedStage = types.StateQueued
			result.Err = NewDuplicateError(submissionUUID, "MD5="+md5Hex)
			return result
		}
	}

	// 原始文件归档
	fileExt := strings.ToLower(filepath.Ext(fileName))
	var objectKey string
	if p.Storage != nil && p.Storage.MinIO != nil {
		var err error
		objectKey, _, err = p.Storage.MinIO.UploadResumeFile(ctx, submissionUUID, fileExt, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return fail(types.StateQueued, NewStoreFileError(submissionUUID, err.Error()))
		}
	}

	p.createResumeRecord(ctx, submissionUUID, fileName, objectKey, md5Hex)

	// PDF文本层快速通道：文本层可用时直接跳过光栅化与OCR
	var rawText string
	usedTextLayer := false
	if p.TextLayer != nil && fileExt == ".pdf" {
		if text, ok, err := p.TextLayer.ExtractFromBytes(ctx, data, fileName); err == nil && ok {
			rawText = text
			usedTextLayer = true
			p.logDebug("命中PDF文本层快速通道: uuid=%s chars=%d", submissionUUID, len(text))
		}
	}

	if !usedTextLayer {
		// 光栅化
		notify(types.StateRasterizing, 5)
		if p.Rasterizer == nil {
			return fail(types.StateRasterizing, NewRasterizeError(submissionUUID, "未配置光栅化组件"))
		}
		pages, err := p.Rasterizer.Rasterize(ctx, data)
		if err != nil {
			return fail(types.StateRasterizing, NewRasterizeError(submissionUUID, err.Error()))
		}
		result.PageCount = len(pages)

		// OCR识别，阶段内进度按页数在10-90之间推进
		notify(types.StateRecognizing, 10)
		if p.Recognizer == nil {
			return fail(types.StateRecognizing, NewRecognizeError(submissionUUID, "未配置识别组件"))
		}
		var usageEntries []types.UsageLogEntry
		rawText, usageEntries, err = p.Recognizer.RecognizeDocument(ctx, pages, func(done, total int) {
			if progress != nil && total > 0 {
				progress(submissionUUID, types.StateRecognizing, 10+80*done/total)
			}
		})
		p.persistUsageLogs(ctx, submissionUUID, usageEntries)
		if err != nil {
			// 只要识别出了部分文本就带着告警继续，全部页失败才算识别失败
			if strings.TrimSpace(rawText) == "" {
				return fail(types.StateRecognizing, NewRecognizeError(submissionUUID, err.Error()))
			}
			result.OCRWarning = err.Error()
			p.logWarn("部分页面识别失败，使用已识别文本继续处理: uuid=%s err=%v", submissionUUID, err)
		}
	}

	result.RawText = rawText

	// 识别全文归档
	var textKey string
	if p.Storage != nil && p.Storage.MinIO != nil && rawText != "" {
		var err error
		textKey, err = p.Storage.MinIO.UploadRecognizedText(ctx, submissionUUID, rawText)
		if err != nil {
			p.logWarn("上传识别文本失败: uuid=%s err=%v", submissionUUID, err)
		}
	}

	// 字段抽取
	notify(types.StateExtracting, 92)
	if p.Extractor == nil {
		return fail(types.StateExtracting, NewExtractError(submissionUUID, "未配置抽取组件"))
	}
	fields, err := p.Extractor.Extract(ctx, rawText)
	if err != nil {
		return fail(types.StateExtracting, NewExtractError(submissionUUID, err.Error()))
	}
	result.Fields = fields

	// 评分
	notify(types.StateScoring, 96)
	if p.Scorer == nil {
		return fail(types.StateScoring, &ProcessError{SubmissionUUID: submissionUUID, Op: "score", BaseErr: ErrScoreFailed, Detail: "未配置评分组件"})
	}
	scores := p.Scorer.Score(fields, p.Settings.Weights)
	result.Scores = &scores

	// 归档落库
	if err := p.commit(ctx, result, textKey); err != nil {
		return fail(types.StateScoring, NewCommitError(submissionUUID, err.Error()))
	}

	notify(types.StateCommitted, 100)
	return result
}

// ProcessBatch 批量处理多份简历，逐份隔离失败
// 单份文件失败只影响自身结果，其余文件继续处理
func (p *Pipeline) ProcessBatch(ctx context.Context, files []BatchFile, progress types.ProgressCallback) []*types.ProcessResult {
	results := make([]*types.ProcessResult, len(files))

	if p.Settings.Parallelism <= 1 {
		for i, f := range files {
			results[i] = p.ProcessFile(ctx, f.FileName, f.Data, progress)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Settings.Parallelism)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			// 错误已在结果里，不向errgroup传播，避免取消其余文件
			results[i] = p.ProcessFile(gctx, f.FileName, f.Data, progress)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// commit 把处理产物写入数据库并投递归档事件，全部在一个事务内
func (p *Pipeline) commit(ctx context.Context, result *types.ProcessResult, textKey string) error {
	if p.Storage == nil || p.Storage.MySQL == nil {
		return nil
	}

	fields := result.Fields
	scores := result.Scores

	fieldsJSON, err := models.StructToJSON(fields)
	if err != nil {
		return fmt.Errorf("序列化抽取字段失败: %w", err)
	}
	scoresJSON, err := models.StructToJSON(scores)
	if err != nil {
		return fmt.Errorf("序列化评分结果失败: %w", err)
	}

	return p.Storage.MySQL.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidateID *string
		candidateName := fields.Name

		// 电话和邮箱都缺失时跳过候选人归并，简历仍然落库
		if fields.Phone != "" || fields.Email != "" {
			candidate, err := p.Storage.MySQL.FindOrCreateCandidate(ctx, tx, fields)
			if err != nil {
				return err
			}
			candidateID = &candidate.CandidateID
		}

		updates := map[string]interface{}{
			"candidate_id":          candidateID,
			"candidate_name":        candidateName,
			"phone":                 fields.Phone,
			"email":                 fields.Email,
			"school":                fields.School,
			"skills_text":           strings.Join(fields.Skills, ","),
			"extracted_fields_json": fieldsJSON,
			"score_report_json":     scoresJSON,
			"total_score":           scores.TotalScore,
			"extract_method":        fields.Method,
			"page_count":            result.PageCount,
			"recognized_text_path":  textKey,
			"ocr_warning":           result.OCRWarning,
			"processing_status":     string(types.StateCommitted),
		}
		if err := p.Storage.MySQL.UpdateResumeFields(tx, result.SubmissionUUID, updates); err != nil {
			return err
		}

		// 归档事件写入发件箱，由中继异步发布
		if p.Storage.RabbitMQ != nil && candidateID != nil {
			event := storage.CandidateCommittedEvent{
				SubmissionUUID: result.SubmissionUUID,
				CandidateID:    *candidateID,
				CandidateName:  candidateName,
				FileName:       result.FileName,
				TotalScore:     scores.TotalScore,
				ExtractMethod:  fields.Method,
				CommittedAt:    time.Now(),
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("序列化归档事件失败: %w", err)
			}
			outboxMsg := models.OutboxMessage{
				AggregateID:      *candidateID,
				EventType:        storage.EventTypeCandidateCommitted,
				Payload:          string(payload),
				TargetExchange:   p.Storage.RabbitMQ.CandidateEventsExchange(),
				TargetRoutingKey: p.Storage.RabbitMQ.CommittedRoutingKey(),
			}
			if err := tx.Create(&outboxMsg).Error; err != nil {
				return fmt.Errorf("写入发件箱失败: %w", err)
			}
		}
		return nil
	})
}

// createResumeRecord 写入初始简历记录，存储未配置时跳过
func (p *Pipeline) createResumeRecord(ctx context.Context, submissionUUID, fileName, objectKey, md5Hex string) {
	if p.Storage == nil || p.Storage.MySQL == nil {
		return
	}
	resume := &models.Resume{
		SubmissionUUID:      submissionUUID,
		UploadedAt:          time.Now(),
		OriginalFilename:    fileName,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          md5Hex,
		ProcessingStatus:    string(types.StateQueued),
		ParserVersion:       p.Settings.ParserVersion,
	}
	if err := p.Storage.MySQL.CreateResume(ctx, resume); err != nil {
		p.logWarn("写入简历记录失败: uuid=%s err=%v", submissionUUID, err)
	}
}

// updateStatus 更新简历处理状态，存储未配置时跳过
func (p *Pipeline) updateStatus(ctx context.Context, submissionUUID, status, failedStage string) {
	if p.Storage == nil || p.Storage.MySQL == nil {
		return
	}
	if err := p.Storage.MySQL.UpdateResumeStatus(ctx, submissionUUID, status, failedStage); err != nil {
		p.logWarn("更新简历状态失败: uuid=%s err=%v", submissionUUID, err)
	}
}

// persistUsageLogs 把本次识别产生的调用流水落库
func (p *Pipeline) persistUsageLogs(ctx context.Context, submissionUUID string, entries []types.UsageLogEntry) {
	if p.Storage == nil || p.Storage.MySQL == nil || len(entries) == 0 {
		return
	}
	if err := p.Storage.MySQL.BatchInsertOCRUsageLogs(ctx, submissionUUID, entries); err != nil {
		p.logWarn("写入OCR调用流水失败: uuid=%s err=%v", submissionUUID, err)
	}
}

func newSubmissionUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7只有在系统时钟异常时才会失败，退回V4
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}

func fileMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
