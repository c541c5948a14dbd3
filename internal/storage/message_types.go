package storage

import "time"

// CandidateCommittedEvent 候选人归档完成事件
// 简历处理流水线成功落库后通过发件箱发布
type CandidateCommittedEvent struct {
	SubmissionUUID string    `json:"submission_uuid"`
	CandidateID    string    `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	FileName       string    `json:"file_name"`
	TotalScore     int       `json:"total_score"`
	ExtractMethod  string    `json:"extract_method"`
	CommittedAt    time.Time `json:"committed_at"`
}

// EventTypeCandidateCommitted 候选人归档事件类型
const EventTypeCandidateCommitted = "candidate.committed"
