package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hr-agent-go/internal/config"
	"hr-agent-go/internal/storage/models"
	"hr-agent-go/internal/tracing"
	"hr-agent-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("hr-agent-go/storage/mysql")

// 存储层的业务性未找到错误，调用方用errors.Is判断
var (
	ErrResumeNotFound    = errors.New("简历记录不存在")
	ErrCandidateNotFound = errors.New("候选人不存在")
	ErrTemplateNotFound  = errors.New("评分模板不存在")
)

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 把span存进上下文，after回调取出来收尾
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement.RowsAffected > 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		} else {
			span.SetAttributes(attribute.Int64("db.rows_affected", 0))
		}

		// ErrRecordNotFound 属于正常业务分支，不算错误
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// 连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	tracingPlugin := NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.Candidate{},
		&models.Resume{},
		&models.Interview{},
		&models.Communication{},
		&models.ScoringTemplate{},
		&models.OCRUsageLog{},
		&models.OutboxMessage{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	log.Println("GORM数据库结构迁移成功")
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateResume 写入简历提交记录，主键冲突时保持幂等
func (m *MySQL) CreateResume(ctx context.Context, resume *models.Resume) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateResume",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.sql.table", "resumes"),
		attribute.String("resume.submission_uuid", resume.SubmissionUUID),
	)

	// ON DUPLICATE KEY时对主键做无实际意义的更新，实现幂等写入
	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"submission_uuid"}),
		}).Create(resume).Error

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetResumeByID 按提交UUID查询简历，不存在时返回ErrResumeNotFound
func (m *MySQL) GetResumeByID(ctx context.Context, submissionUUID string) (*models.Resume, error) {
	var resume models.Resume
	err := m.db.WithContext(ctx).Where("submission_uuid = ?", submissionUUID).First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission_uuid=%s: %w", submissionUUID, ErrResumeNotFound)
		}
		return nil, fmt.Errorf("查询简历失败: %w", err)
	}
	return &resume, nil
}

// ListResumes 按上传时间倒序分页列出简历
func (m *MySQL) ListResumes(ctx context.Context, limit, offset int) ([]models.Resume, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := m.db.WithContext(ctx).Model(&models.Resume{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计简历总数失败: %w", err)
	}

	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&resumes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询简历列表失败: %w", err)
	}
	return resumes, total, nil
}

// SearchResumes 按关键词模糊检索简历，命中姓名、电话、邮箱、院校、技能或文件名即返回
// 结果仍按上传时间倒序
func (m *MySQL) SearchResumes(ctx context.Context, keyword string, limit, offset int) ([]models.Resume, int64, error) {
	if keyword == "" {
		return m.ListResumes(ctx, limit, offset)
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + keyword + "%"
	base := m.db.WithContext(ctx).Model(&models.Resume{}).Where(
		"candidate_name LIKE ? OR phone LIKE ? OR email LIKE ? OR school LIKE ? OR skills_text LIKE ? OR original_filename LIKE ?",
		pattern, pattern, pattern, pattern, pattern, pattern,
	)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计检索结果失败: %w", err)
	}

	var resumes []models.Resume
	err := base.
		Order("uploaded_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&resumes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("检索简历失败: %w", err)
	}
	return resumes, total, nil
}

// UpdateResumeStatus 更新简历处理状态，失败时同时记录失败阶段
func (m *MySQL) UpdateResumeStatus(ctx context.Context, submissionUUID, status, failedStage string) error {
	updates := map[string]interface{}{
		"processing_status": status,
	}
	if failedStage != "" {
		updates["failed_stage"] = failedStage
	}
	return m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("submission_uuid = ?", submissionUUID).
		Updates(updates).Error
}

// UpdateResumeFields 更新简历记录的多个字段 (在事务中执行)
func (m *MySQL) UpdateResumeFields(tx *gorm.DB, submissionUUID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Resume{}).Where("submission_uuid = ?", submissionUUID).Updates(updates).Error
}

// FindOrCreateCandidate 按电话/邮箱查找候选人，找不到时用抽取结果新建
// 事务handle可为nil，此时直接走主连接
func (m *MySQL) FindOrCreateCandidate(ctx context.Context, tx *gorm.DB, fields *types.ResumeFields) (*models.Candidate, error) {
	if fields == nil {
		return nil, fmt.Errorf("抽取结果不能为空")
	}
	email := fields.Email
	phone := fields.Phone

	ctx, span := mysqlTracer.Start(ctx, "FindOrCreateCandidate", trace.WithAttributes(
		attribute.String("candidate.email", email),
		attribute.String("candidate.phone", phone),
	))
	defer span.End()

	if email == "" && phone == "" {
		err := fmt.Errorf("邮箱和电话至少需要一个")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	db := m.db
	if tx != nil {
		db = tx
	}

	var conditions []string
	var args []interface{}
	if email != "" {
		conditions = append(conditions, "primary_email = ?")
		args = append(args, email)
	}
	if phone != "" {
		conditions = append(conditions, "primary_phone = ?")
		args = append(args, phone)
	}

	query := db.WithContext(ctx).Model(&models.Candidate{}).Where(conditions[0], args[0])
	for i := 1; i < len(conditions); i++ {
		query = query.Or(conditions[i], args[i])
	}

	var candidate models.Candidate
	err := query.First(&candidate).Error
	if err == nil {
		span.SetAttributes(attribute.Bool("candidate.found", true), attribute.String("candidate.id", candidate.CandidateID))
		return &candidate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query candidate")
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("candidate.found", false))

	newUUID, err := uuid.NewV7()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate UUIDv7")
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}

	gender := fields.Gender
	if gender == "" {
		gender = "未知"
	}

	newCandidate := &models.Candidate{
		CandidateID:   newUUID.String(),
		PrimaryName:   fields.Name,
		PrimaryEmail:  email,
		PrimaryPhone:  phone,
		Gender:        gender,
		HighestDegree: fields.Degree,
		School:        fields.School,
	}

	if err := db.WithContext(ctx).Create(newCandidate).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create candidate")
		return nil, fmt.Errorf("创建新候选人失败: %w", err)
	}

	span.SetAttributes(attribute.String("candidate.id", newCandidate.CandidateID))
	return newCandidate, nil
}

// GetCandidateByID 按ID查询候选人
func (m *MySQL) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("candidate_id=%s: %w", candidateID, ErrCandidateNotFound)
		}
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return &candidate, nil
}

// DeleteCandidate 删除候选人及其面试、沟通记录，关联简历置空候选人引用
// 全部操作在同一事务内完成
func (m *MySQL) DeleteCandidate(ctx context.Context, candidateID string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.DeleteCandidate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("candidate.id", candidateID)))
	defer span.End()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("candidate_id = ?", candidateID).Delete(&models.Candidate{})
		if result.Error != nil {
			return fmt.Errorf("删除候选人失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("candidate_id=%s: %w", candidateID, ErrCandidateNotFound)
		}

		if err := tx.Where("candidate_id = ?", candidateID).Delete(&models.Interview{}).Error; err != nil {
			return fmt.Errorf("删除面试记录失败: %w", err)
		}
		if err := tx.Where("candidate_id = ?", candidateID).Delete(&models.Communication{}).Error; err != nil {
			return fmt.Errorf("删除沟通记录失败: %w", err)
		}
		// 简历保留，仅解除关联
		if err := tx.Model(&models.Resume{}).Where("candidate_id = ?", candidateID).
			Update("candidate_id", nil).Error; err != nil {
			return fmt.Errorf("解除简历关联失败: %w", err)
		}
		return nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// CreateInterview 创建面试记录
func (m *MySQL) CreateInterview(ctx context.Context, interview *models.Interview) error {
	return m.db.WithContext(ctx).Create(interview).Error
}

// ListInterviewsByCandidate 列出候选人的全部面试记录，按安排时间倒序
func (m *MySQL) ListInterviewsByCandidate(ctx context.Context, candidateID string) ([]models.Interview, error) {
	var interviews []models.Interview
	err := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("scheduled_at DESC").
		Find(&interviews).Error
	if err != nil {
		return nil, fmt.Errorf("查询面试记录失败: %w", err)
	}
	return interviews, nil
}

// CreateCommunication 创建沟通记录
func (m *MySQL) CreateCommunication(ctx context.Context, comm *models.Communication) error {
	return m.db.WithContext(ctx).Create(comm).Error
}

// ListCommunicationsByCandidate 列出候选人的全部沟通记录，按发生时间倒序
func (m *MySQL) ListCommunicationsByCandidate(ctx context.Context, candidateID string) ([]models.Communication, error) {
	var comms []models.Communication
	err := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("occurred_at DESC").
		Find(&comms).Error
	if err != nil {
		return nil, fmt.Errorf("查询沟通记录失败: %w", err)
	}
	return comms, nil
}

// UpsertScoringTemplate 写入或更新评分模板
func (m *MySQL) UpsertScoringTemplate(ctx context.Context, tpl *models.ScoringTemplate) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "weights_json", "is_default"}),
		}).Create(tpl).Error
}

// GetScoringTemplate 按ID查询评分模板
func (m *MySQL) GetScoringTemplate(ctx context.Context, templateID string) (*models.ScoringTemplate, error) {
	var tpl models.ScoringTemplate
	err := m.db.WithContext(ctx).Where("template_id = ?", templateID).First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template_id=%s: %w", templateID, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("查询评分模板失败: %w", err)
	}
	return &tpl, nil
}

// ListScoringTemplates 列出全部评分模板
func (m *MySQL) ListScoringTemplates(ctx context.Context) ([]models.ScoringTemplate, error) {
	var tpls []models.ScoringTemplate
	if err := m.db.WithContext(ctx).Order("created_at ASC").Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("查询评分模板列表失败: %w", err)
	}
	return tpls, nil
}

// BatchInsertOCRUsageLogs 批量写入OCR调用流水
func (m *MySQL) BatchInsertOCRUsageLogs(ctx context.Context, submissionUUID string, entries []types.UsageLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, span := mysqlTracer.Start(ctx, "MySQL.BatchInsertOCRUsageLogs",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.sql.table", "ocr_usage_logs"),
		attribute.Int("batch.size", len(entries)),
	)

	logs := make([]models.OCRUsageLog, len(entries))
	for i, e := range entries {
		logs[i] = models.OCRUsageLog{
			SubmissionUUID: submissionUUID,
			PageNumber:     e.PageNumber,
			Success:        e.Success,
			ErrorMessage:   e.Error,
			DurationMS:     e.Duration.Milliseconds(),
			CalledAt:       e.Timestamp,
		}
	}

	if err := m.db.WithContext(ctx).Create(&logs).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("写入OCR调用流水失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CountOCRCallsSince 统计某时刻以来的OCR调用次数
func (m *MySQL) CountOCRCallsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.OCRUsageLog{}).
		Where("called_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计OCR调用次数失败: %w", err)
	}
	return count, nil
}
