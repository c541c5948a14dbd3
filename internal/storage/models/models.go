package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表
type Candidate struct {
	CandidateID    string    `gorm:"type:char(36);primaryKey"`
	PrimaryName    string    `gorm:"type:varchar(255)"`
	PrimaryPhone   string    `gorm:"type:varchar(50);uniqueIndex:idx_candidates_primary_phone_unique"`
	PrimaryEmail   string    `gorm:"type:varchar(255);uniqueIndex:idx_candidates_primary_email_unique"`
	Gender         string    `gorm:"type:varchar(10)"`
	HighestDegree  string    `gorm:"type:varchar(20)"`
	School         string    `gorm:"type:varchar(255)"`
	ProfileSummary string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Resume 简历提交/快照表
// 冗余了姓名、电话等可检索字段，关键词检索不需要展开JSON
type Resume struct {
	SubmissionUUID      string         `gorm:"type:char(36);primaryKey"`
	CandidateID         *string        `gorm:"type:char(36);index:idx_resumes_candidate_id"`
	UploadedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_uploaded_at"`
	OriginalFilename    string         `gorm:"type:varchar(255)"`
	OriginalFilePathOSS string         `gorm:"type:varchar(1024)"`
	RecognizedTextPath  string         `gorm:"type:varchar(1024)"`
	RawFileMD5          string         `gorm:"type:char(32);index:idx_resumes_raw_file_md5"`
	PageCount           int            `gorm:"type:int"`
	CandidateName       string         `gorm:"type:varchar(255);index:idx_resumes_candidate_name"`
	Phone               string         `gorm:"type:varchar(50)"`
	Email               string         `gorm:"type:varchar(255)"`
	School              string         `gorm:"type:varchar(255)"`
	SkillsText          string         `gorm:"type:text"`
	ExtractedFieldsJSON datatypes.JSON `gorm:"type:json"`
	ScoreReportJSON     datatypes.JSON `gorm:"type:json"`
	TotalScore          *int           `gorm:"type:int;index:idx_resumes_total_score"`
	ExtractMethod       string         `gorm:"type:varchar(20)"`
	ProcessingStatus    string         `gorm:"type:varchar(50);default:'QUEUED';index:idx_resumes_processing_status"`
	FailedStage         string         `gorm:"type:varchar(50)"`
	OCRWarning          string         `gorm:"type:text"` // 部分页识别失败但流程继续时的告警

	ParserVersion       string         `gorm:"type:varchar(50)"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Resume) TableName() string {
	return "resumes"
}

// Interview 面试安排/记录表
type Interview struct {
	InterviewID     uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID     string    `gorm:"type:char(36);not null;index:idx_interviews_candidate_id"`
	Round           string    `gorm:"type:varchar(100);not null"`
	ScheduledAt     time.Time `gorm:"type:datetime(6);not null;index:idx_interviews_scheduled_at"`
	InterviewerName string    `gorm:"type:varchar(255)"`
	Status          string    `gorm:"type:varchar(50);default:'SCHEDULED'"`
	Rating          *int      `gorm:"type:int"`
	Feedback        string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Interview) TableName() string {
	return "interviews"
}

// Communication 候选人沟通记录表
type Communication struct {
	CommunicationID uint64    `gorm:"primaryKey;autoIncrement"`
	CandidateID     string    `gorm:"type:char(36);not null;index:idx_communications_candidate_id"`
	Channel         string    `gorm:"type:varchar(50)"`
	Direction       string    `gorm:"type:varchar(20)"`
	Content         string    `gorm:"type:text"`
	OccurredAt      time.Time `gorm:"type:datetime(6);index:idx_communications_occurred_at"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Communication) TableName() string {
	return "communications"
}

// ScoringTemplate 评分权重模板表
type ScoringTemplate struct {
	TemplateID  string         `gorm:"type:varchar(64);primaryKey"`
	Name        string         `gorm:"type:varchar(255);not null"`
	WeightsJSON datatypes.JSON `gorm:"type:json;not null"`
	IsDefault   bool           `gorm:"default:false"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ScoringTemplate) TableName() string {
	return "scoring_templates"
}

// OCRUsageLog OCR调用流水表，每次识别尝试一条
type OCRUsageLog struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	SubmissionUUID string    `gorm:"type:char(36);index:idx_ocr_usage_submission_uuid"`
	PageNumber     int       `gorm:"type:int"`
	Success        bool      `gorm:"default:false"`
	ErrorMessage   string    `gorm:"type:text"`
	DurationMS     int64     `gorm:"type:bigint"`
	CalledAt       time.Time `gorm:"type:datetime(6);index:idx_ocr_usage_called_at"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (OCRUsageLog) TableName() string {
	return "ocr_usage_logs"
}

// OutboxMessage 发件箱消息表，事务内落库后由中继异步发布
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:varchar(36);not null;index"`
	EventType        string     `gorm:"type:varchar(255);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int        `gorm:"default:0"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time `gorm:"type:datetime(6);null"`
	ErrorMessage     string     `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// StructToJSON 把任意结构序列化为datatypes.JSON
func StructToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// StringToJSON 把JSON字符串包装为datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}
