// Package handler 实现简历服务的HTTP业务逻辑，路由注册见 api/router 包。
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/ocr"
	"hr-agent-go/internal/processor"
	"hr-agent-go/internal/scorer"
	"hr-agent-go/internal/storage"
	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/types"
)

// ResumeHandler 简历服务处理器，协调流水线与存储层
type ResumeHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	pipeline *processor.Pipeline
	quota    ocr.QuotaStore
}

// NewResumeHandler 创建简历服务处理器
func NewResumeHandler(cfg *config.Config, st *storage.Storage, pipeline *processor.Pipeline, quota ocr.QuotaStore) *ResumeHandler {
	return &ResumeHandler{
		cfg:      cfg,
		storage:  st,
		pipeline: pipeline,
		quota:    quota,
	}
}

// UploadFileResult 单份上传文件的处理结果摘要
type UploadFileResult struct {
	SubmissionUUID string              `json:"submission_uuid"`
	FileName       string              `json:"file_name"`
	Status         string              `json:"status"`
	FailedStage    string              `json:"failed_stage,omitempty"`
	Error          string              `json:"error,omitempty"`
	Warning        string              `json:"warning,omitempty"` // 部分页OCR失败等非致命问题

	TotalScore     *int                `json:"total_score,omitempty"`
	Fields         *types.ResumeFields `json:"fields,omitempty"`
}

// UploadResponse 简历上传响应
type UploadResponse struct {
	Total     int                `json:"total"`
	Committed int                `json:"committed"`
	Failed    int                `json:"failed"`
	Results   []UploadFileResult `json:"results"`
}

// HandleUpload 同步处理一批上传的简历文件
// 逐份隔离失败：单份文件出错不会中断其余文件的处理
func (h *ResumeHandler) HandleUpload(ctx context.Context, files []processor.BatchFile) (*UploadResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("未收到任何文件")
	}

	results := h.pipeline.ProcessBatch(ctx, files, nil)

	resp := &UploadResponse{Total: len(results)}
	for _, r := range results {
		item := UploadFileResult{
			SubmissionUUID: r.SubmissionUUID,
			FileName:       r.FileName,
			Status:         string(r.State),
		}
		if r.State == types.StateCommitted {
			resp.Committed++
			item.Fields = r.Fields
			item.Warning = r.OCRWarning
			if r.Scores != nil {
				score := r.Scores.TotalScore
				item.TotalScore = &score
			}
		} else {
			resp.Failed++
			item.FailedStage = string(r.FailedStage)
			if r.Err != nil {
				item.Error = r.Err.Error()
			}
			logger.Warn().
				Str("submission_uuid", r.SubmissionUUID).
				Str("file", r.FileName).
				Str("failed_stage", item.FailedStage).
				Msg("简历处理失败")
		}
	}
	return resp, nil
}

// ResumeListResponse 简历列表响应
type ResumeListResponse struct {
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
	Resumes []models.Resume `json:"resumes"`
}

// ListResumes 按上传时间倒序分页列出简历
func (h *ResumeHandler) ListResumes(ctx context.Context, page, size int) (*ResumeListResponse, error) {
	page, size = normalizePage(page, size)
	resumes, total, err := h.storage.MySQL.ListResumes(ctx, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}
	return &ResumeListResponse{Total: total, Page: page, Size: size, Resumes: resumes}, nil
}

// SearchResumes 按关键词搜索简历，关键词为空时等价于列表查询
func (h *ResumeHandler) SearchResumes(ctx context.Context, keyword string, page, size int) (*ResumeListResponse, error) {
	page, size = normalizePage(page, size)
	resumes, total, err := h.storage.MySQL.SearchResumes(ctx, keyword, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("搜索简历失败: %w", err)
	}
	return &ResumeListResponse{Total: total, Page: page, Size: size, Resumes: resumes}, nil
}

// GetResume 按提交UUID查询单份简历
func (h *ResumeHandler) GetResume(ctx context.Context, submissionUUID string) (*models.Resume, error) {
	return h.storage.MySQL.GetResumeByID(ctx, submissionUUID)
}

// 预签名链接有效期，Redis缓存时长略短于它，避免把临期链接发给客户端
const (
	presignedURLTTL      = 15 * time.Minute
	presignedURLCacheTTL = 14 * time.Minute
)

// GetResumeFileURL 生成原始简历文件的预签名下载链接，结果在Redis短暂缓存
func (h *ResumeHandler) GetResumeFileURL(ctx context.Context, submissionUUID string) (string, error) {
	resume, err := h.storage.MySQL.GetResumeByID(ctx, submissionUUID)
	if err != nil {
		return "", err
	}
	if resume.OriginalFilePathOSS == "" {
		return "", fmt.Errorf("该简历没有关联的原始文件")
	}

	cacheKey := fmt.Sprintf(constants.KeyFileURLCache, submissionUUID)
	if h.storage.Redis != nil {
		if url, err := h.storage.Redis.Get(ctx, cacheKey); err == nil && url != "" {
			return url, nil
		}
	}

	url, err := h.storage.MinIO.GetPresignedURL(ctx, resume.OriginalFilePathOSS, presignedURLTTL)
	if err != nil {
		return "", err
	}
	if h.storage.Redis != nil {
		if err := h.storage.Redis.Set(ctx, cacheKey, url, presignedURLCacheTTL); err != nil {
			logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("缓存预签名链接失败")
		}
	}
	return url, nil
}

// GetRecognizedText 读取简历识别全文
func (h *ResumeHandler) GetRecognizedText(ctx context.Context, submissionUUID string) (string, error) {
	resume, err := h.storage.MySQL.GetResumeByID(ctx, submissionUUID)
	if err != nil {
		return "", err
	}
	if resume.RecognizedTextPath == "" {
		return "", fmt.Errorf("该简历没有识别文本")
	}
	return h.storage.MinIO.GetRecognizedText(ctx, resume.RecognizedTextPath)
}

// GetCandidate 查询候选人及其关联记录
func (h *ResumeHandler) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	return h.storage.MySQL.GetCandidateByID(ctx, candidateID)
}

// DeleteCandidate 删除候选人，面试与沟通记录级联删除，简历保留但解除关联
func (h *ResumeHandler) DeleteCandidate(ctx context.Context, candidateID string) error {
	err := h.storage.MySQL.DeleteCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, storage.ErrCandidateNotFound) {
		logger.Error().Err(err).Str("candidate_id", candidateID).Msg("删除候选人失败")
	}
	return err
}

// CreateInterview 为候选人新增面试记录
func (h *ResumeHandler) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if interview.CandidateID == "" {
		return fmt.Errorf("候选人ID不能为空")
	}
	if _, err := h.storage.MySQL.GetCandidateByID(ctx, interview.CandidateID); err != nil {
		return err
	}
	return h.storage.MySQL.CreateInterview(ctx, interview)
}

// ListInterviews 按计划时间倒序列出候选人的面试记录
func (h *ResumeHandler) ListInterviews(ctx context.Context, candidateID string) ([]models.Interview, error) {
	return h.storage.MySQL.ListInterviewsByCandidate(ctx, candidateID)
}

// CreateCommunication 为候选人新增沟通记录
func (h *ResumeHandler) CreateCommunication(ctx context.Context, comm *models.Communication) error {
	if comm.CandidateID == "" {
		return fmt.Errorf("候选人ID不能为空")
	}
	if _, err := h.storage.MySQL.GetCandidateByID(ctx, comm.CandidateID); err != nil {
		return err
	}
	if comm.OccurredAt.IsZero() {
		comm.OccurredAt = time.Now()
	}
	return h.storage.MySQL.CreateCommunication(ctx, comm)
}

// ListCommunications 按发生时间倒序列出候选人的沟通记录
func (h *ResumeHandler) ListCommunications(ctx context.Context, candidateID string) ([]models.Communication, error) {
	return h.storage.MySQL.ListCommunicationsByCandidate(ctx, candidateID)
}

// OCRUsageResponse OCR用量统计响应
type OCRUsageResponse struct {
	Used       int   `json:"used"`
	Max        int   `json:"max"`
	Remaining  int   `json:"remaining"`
	TodayUsed  int   `json:"today_used"`
	CallsToday int64 `json:"calls_today"` // 数据库流水口径，含失败调用
}

// GetOCRUsage 汇总OCR配额与今日调用量
func (h *ResumeHandler) GetOCRUsage(ctx context.Context) (*OCRUsageResponse, error) {
	stats, err := h.quota.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询OCR配额失败: %w", err)
	}

	resp := &OCRUsageResponse{
		Used:      stats.Used,
		Max:       stats.Max,
		Remaining: stats.Remaining,
		TodayUsed: stats.TodayUsed,
	}

	// 当天0点以来的调用流水计数，与Redis配额口径独立
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if calls, err := h.storage.MySQL.CountOCRCallsSince(ctx, dayStart); err != nil {
		logger.Warn().Err(err).Msg("统计当日OCR调用流水失败")
	} else {
		resp.CallsToday = calls
	}
	return resp, nil
}

// ListScoringTemplates 列出所有评分模板
func (h *ResumeHandler) ListScoringTemplates(ctx context.Context) ([]models.ScoringTemplate, error) {
	return h.storage.MySQL.ListScoringTemplates(ctx)
}

// GetScoringTemplate 按ID查询评分模板
func (h *ResumeHandler) GetScoringTemplate(ctx context.Context, templateID string) (*models.ScoringTemplate, error) {
	return h.storage.MySQL.GetScoringTemplate(ctx, templateID)
}

// UpsertScoringTemplate 新建或更新评分模板
func (h *ResumeHandler) UpsertScoringTemplate(ctx context.Context, tpl *models.ScoringTemplate) error {
	if tpl.TemplateID == "" {
		return fmt.Errorf("模板ID不能为空")
	}
	return h.storage.MySQL.UpsertScoringTemplate(ctx, tpl)
}

// SeedPresetTemplates 把内置评分模板写入数据库，已存在的同ID模板会被覆盖
// 服务启动时调用一次；多实例同时启动时通过分布式锁保证只有一个实例写入
func (h *ResumeHandler) SeedPresetTemplates(ctx context.Context) error {
	if h.storage.Redis != nil {
		lockValue, err := h.storage.Redis.AcquireLock(ctx, constants.KeyTemplateSeedLock, 30*time.Second)
		if err != nil {
			logger.Warn().Err(err).Msg("获取模板写入锁失败，不加锁直接写入")
		} else if lockValue == "" {
			// 其他实例已持有锁，内置模板由它写入
			return nil
		} else {
			defer func() {
				if _, err := h.storage.Redis.ReleaseLock(ctx, constants.KeyTemplateSeedLock, lockValue); err != nil {
					logger.Warn().Err(err).Msg("释放模板写入锁失败")
				}
			}()
		}
	}

	for _, preset := range scorer.PresetTemplates {
		weightsJSON, err := models.StructToJSON(preset.Weights)
		if err != nil {
			return fmt.Errorf("序列化模板权重失败: %w", err)
		}
		tpl := &models.ScoringTemplate{
			TemplateID:  preset.ID,
			Name:        preset.Name,
			WeightsJSON: weightsJSON,
			IsDefault:   preset.ID == h.cfg.Scorer.ActiveTemplateID,
		}
		if err := h.storage.MySQL.UpsertScoringTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("写入内置模板 %s 失败: %w", preset.ID, err)
		}
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
