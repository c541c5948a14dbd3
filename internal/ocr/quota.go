package ocr

import (
	"context"
	"errors"
	"sync"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/types"
)

// ErrQuotaExhausted OCR调用配额已耗尽
var ErrQuotaExhausted = errors.New("OCR调用配额已耗尽")

// QuotaStore OCR配额存储
// 调用方约定：每次识别尝试前先Reserve原子占用一次配额；
// 请求到达了服务端（无论服务端返回成功还是失败）则占用保留，
// 纯网络层失败（请求根本没有到达服务端）调用Release归还占用。
// 并发调用下已用计数不会超过上限。
type QuotaStore interface {
	// Reserve 原子地检查并占用一次配额，used >= max 时返回 ErrQuotaExhausted 且不改变计数
	Reserve(ctx context.Context) error
	// Release 归还一次占用，计数不会减到0以下
	Release(ctx context.Context) error
	// Stats 返回当前使用统计
	Stats(ctx context.Context) (types.OCRUsageStats, error)
}

// MemoryQuotaStore 进程内配额存储，用于测试与单机运行
type MemoryQuotaStore struct {
	mu        sync.Mutex
	used      int
	max       int
	todayUsed int
}

// NewMemoryQuotaStore 创建内存配额存储，max<=0时使用默认上限500
func NewMemoryQuotaStore(max int) *MemoryQuotaStore {
	if max <= 0 {
		max = constants.DefaultOCRQuotaMax
	}
	return &MemoryQuotaStore{max: max}
}

// Reserve 检查并占用一次配额，检查与计数在同一临界区内完成
func (s *MemoryQuotaStore) Reserve(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used >= s.max {
		return ErrQuotaExhausted
	}
	s.used++
	s.todayUsed++
	return nil
}

// Release 归还一次占用
func (s *MemoryQuotaStore) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used > 0 {
		s.used--
	}
	if s.todayUsed > 0 {
		s.todayUsed--
	}
	return nil
}

// Stats 返回当前使用统计
func (s *MemoryQuotaStore) Stats(ctx context.Context) (types.OCRUsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.OCRUsageStats{
		Used:      s.used,
		Max:       s.max,
		Remaining: s.max - s.used,
		TodayUsed: s.todayUsed,
	}, nil
}

// SetUsed 直接设置已用计数，仅测试使用
func (s *MemoryQuotaStore) SetUsed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = n
}
