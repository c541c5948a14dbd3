package types

import (
	"time"
)

// ResumeFields 从简历文本中抽取出的结构化字段
// 抽取器不会凭空编造字段：文本中不存在的信息保持零值
type ResumeFields struct {
	Name       string   `json:"name"`                 // 姓名
	Gender     string   `json:"gender"`               // 性别
	Age        int      `json:"age"`                  // 年龄（岁）
	Phone      string   `json:"phone"`                // 手机号，清洗后为11位数字或空
	Email      string   `json:"email"`                // 邮箱，必须包含@否则为空
	Degree     string   `json:"degree"`               // 最高学历: 博士/硕士/本科/专科
	School     string   `json:"school"`               // 毕业院校
	Major      string   `json:"major"`                // 专业
	WorkYears  int      `json:"workYears"`            // 工作年限
	Company    string   `json:"company"`              // 最近就职公司
	Position   string   `json:"position"`             // 最近职位
	Skills     []string `json:"skills"`               // 技能列表，去重且保持原始顺序
	JobChanges int      `json:"jobChanges,omitempty"` // 工作经历段数，用于稳定性评分

	// Method 记录本次抽取实际使用的方式: "pattern" 或 "llm"
	Method string `json:"method,omitempty"`
}

// ScoreWeights 五维评分权重
// 各维度权重之和应为1，但评分器不强制，总分始终截断到[0,100]
type ScoreWeights struct {
	Education  float64 `json:"education" yaml:"education"`   // 学历权重
	Experience float64 `json:"experience" yaml:"experience"` // 经验权重
	Skill      float64 `json:"skill" yaml:"skill"`           // 技能权重
	Stability  float64 `json:"stability" yaml:"stability"`   // 稳定性权重
	Growth     float64 `json:"growth" yaml:"growth"`         // 成长性权重
}

// DefaultScoreWeights 默认权重: 学历0.3 经验0.4 技能0.3，稳定性与成长性不参与
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Education:  0.3,
		Experience: 0.4,
		Skill:      0.3,
		Stability:  0,
		Growth:     0,
	}
}

// ScoreReport 评分结果，各分项与加权总分均在[0,100]区间内
type ScoreReport struct {
	EducationScore  int `json:"educationScore"`
	ExperienceScore int `json:"experienceScore"`
	SkillScore      int `json:"skillScore"`
	StabilityScore  int `json:"stabilityScore"`
	GrowthScore     int `json:"growthScore"`
	TotalScore      int `json:"totalScore"`
}

// PageImage 光栅化后的单页图像
type PageImage struct {
	PageNumber int    `json:"page_number"` // 页码，从1开始
	Format     string `json:"format"`      // 图像格式，目前固定为png
	Data       []byte `json:"-"`           // 图像字节
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// UsageLogEntry OCR调用流水，每次尝试（无论成败）记录一条
type UsageLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	PageNumber int           `json:"page_number"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ProcessState 单份简历在流水线中的状态
type ProcessState string

const (
	// StateQueued 已入队待处理
	StateQueued ProcessState = "QUEUED"
	// StateRasterizing 光栅化中
	StateRasterizing ProcessState = "RASTERIZING"
	// StateRecognizing OCR识别中
	StateRecognizing ProcessState = "RECOGNIZING"
	// StateExtracting 字段抽取中
	StateExtracting ProcessState = "EXTRACTING"
	// StateScoring 评分中
	StateScoring ProcessState = "SCORING"
	// StateCommitted 已落库
	StateCommitted ProcessState = "COMMITTED"
	// StateFailed 处理失败
	StateFailed ProcessState = "FAILED"
)

// ProgressCallback 处理进度回调
// percent 为该文件整体进度的估算值(0-100)，OCR阶段内按页数在10-90之间推进
type ProgressCallback func(fileID string, state ProcessState, percent int)

// ProcessResult 单份简历的完整处理产物
type ProcessResult struct {
	SubmissionUUID string        `json:"submission_uuid"`
	FileName       string        `json:"file_name"`
	State          ProcessState  `json:"state"`
	FailedStage    ProcessState  `json:"failed_stage,omitempty"` // State==FAILED时记录失败所在阶段
	RawText        string        `json:"raw_text,omitempty"`
	OCRWarning     string        `json:"ocr_warning,omitempty"` // 部分页识别失败但流程继续时的告警说明
	Fields         *ResumeFields `json:"fields,omitempty"`
	Scores         *ScoreReport  `json:"scores,omitempty"`
	PageCount      int           `json:"page_count"`
	Err            error         `json:"-"`
}

// OCRUsageStats OCR配额使用统计
type OCRUsageStats struct {
	Used      int `json:"used"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
	TodayUsed int `json:"today_used"`
}
