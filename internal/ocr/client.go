package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/logger"
	"hr-agent-go/internal/types"
)

// 基础错误类型
var (
	// ErrRecognizeFailed 服务端返回了错误（请求已到达服务端）
	ErrRecognizeFailed = errors.New("OCR识别失败")
	// ErrRequestFailed 网络层失败，请求未到达服务端
	ErrRequestFailed = errors.New("OCR请求发送失败")
	// ErrEmptyResult 服务端返回了响应但未识别出任何文字
	ErrEmptyResult = errors.New("OCR未识别出文字")
)

// PageProgressFunc 逐页识别进度回调，每处理完一页调用一次（无论该页成败）
type PageProgressFunc func(pageDone, pageTotal int)

// Client 阿里云市场通用文字识别客户端
// 每次调用前原子占用配额，请求未到达服务端时归还占用，逐条记录调用流水
type Client struct {
	apiURL     string
	appCode    string
	httpClient *http.Client
	timeout    time.Duration
	quota      QuotaStore

	mu       sync.Mutex
	usageLog []types.UsageLogEntry
}

// ClientOption Client 的配置选项
type ClientOption func(*Client)

// WithTimeout 设置单次识别调用超时，默认30秒
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient 注入自定义HTTP客户端
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient 创建OCR客户端
func NewClient(apiURL, appCode string, quota QuotaStore, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("OCR接口URL不能为空")
	}
	if quota == nil {
		return nil, fmt.Errorf("配额存储不能为空")
	}

	c := &Client{
		apiURL:     apiURL,
		appCode:    appCode,
		httpClient: &http.Client{},
		timeout:    constants.DefaultOCRTimeout,
		quota:      quota,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ocrRequest 识别接口请求体
type ocrRequest struct {
	Img       string `json:"img"`
	Prob      bool   `json:"prob"`
	Rotate    bool   `json:"rotate"`
	Table     bool   `json:"table"`
	NoStamp   bool   `json:"noStamp"`
	Row       bool   `json:"row"`
	Paragraph bool   `json:"paragraph"`
	OriCoord  bool   `json:"oricoord"`
}

// ocrWordEntry 识别结果中的单个文字块，不同接口版本字段名不同
type ocrWordEntry struct {
	Word    string `json:"word"`
	Content string `json:"content"`
}

func (e ocrWordEntry) text() string {
	if e.Word != "" {
		return e.Word
	}
	return e.Content
}

// ocrResponse 识别接口响应体
// 按接口版本依次探测 prism_wordsInfo、ret、words 三个字段
type ocrResponse struct {
	PrismWordsInfo []ocrWordEntry `json:"prism_wordsInfo"`
	Ret            []ocrWordEntry `json:"ret"`
	Words          []ocrWordEntry `json:"words"`
}

func (r *ocrResponse) joinText() string {
	var entries []ocrWordEntry
	switch {
	case len(r.PrismWordsInfo) > 0:
		entries = r.PrismWordsInfo
	case len(r.Ret) > 0:
		entries = r.Ret
	case len(r.Words) > 0:
		entries = r.Words
	default:
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if t := e.text(); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// RecognizePage 识别单页图像
// 配额语义：调用前Reserve原子占用一次配额；只要请求到达了服务端
// （拿到HTTP响应），无论成败占用都保留；网络层失败归还占用。
// 每次尝试记录一条流水。
func (c *Client) RecognizePage(ctx context.Context, page types.PageImage) (string, error) {
	text, _, err := c.recognizePage(ctx, page)
	return text, err
}

// recognizePage 识别单页并返回该次尝试的流水，配额被拒时流水为nil
func (c *Client) recognizePage(ctx context.Context, page types.PageImage) (string, *types.UsageLogEntry, error) {
	if err := c.quota.Reserve(ctx); err != nil {
		return "", nil, err
	}

	startTime := time.Now()
	text, reachedServer, err := c.recognizeOnce(ctx, page)
	duration := time.Since(startTime)

	if !reachedServer {
		// 请求没有到达服务端，不消耗配额
		if relErr := c.quota.Release(ctx); relErr != nil {
			logger.Warn().Err(relErr).Msg("归还OCR配额失败")
		}
	}

	entry := types.UsageLogEntry{
		Timestamp:  startTime,
		PageNumber: page.PageNumber,
		Success:    err == nil,
		Duration:   duration,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.appendUsage(entry)

	return text, &entry, err
}

// recognizeOnce 执行一次识别HTTP调用
// 返回的reachedServer表示请求是否到达了服务端（即是否收到了HTTP响应）
func (c *Client) recognizeOnce(ctx context.Context, page types.PageImage) (string, bool, error) {
	reqBody := ocrRequest{
		Img:       base64.StdEncoding.EncodeToString(page.Data),
		Prob:      false,
		Rotate:    false,
		Table:     false,
		NoStamp:   false,
		Row:       false,
		Paragraph: true,
		OriCoord:  true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("%w: 序列化请求体失败: %v", ErrRequestFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Authorization", "APPCODE "+c.appCode)
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// 网络层失败：没有拿到服务端响应，不计入配额
		return "", false, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: 读取响应体失败: %v", ErrRecognizeFailed, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", true, fmt.Errorf("%w: 状态 %s: %s", ErrRecognizeFailed, httpResp.Status, string(bodyBytes))
	}

	var resp ocrResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", true, fmt.Errorf("%w: 响应解析失败: %v", ErrRecognizeFailed, err)
	}

	text := resp.joinText()
	if text == "" {
		return "", true, ErrEmptyResult
	}
	return text, true, nil
}

// RecognizeDocument 逐页识别整份文档，页文本以分页标记拼接
// 容忍部分结果：某页失败时记录告警并跳过该页，其余页继续识别，
// 失败页的错误汇总后随已拼接的部分文本一起返回。
// 配额耗尽与上下文取消会中止剩余页。返回本次识别产生的全部调用流水。
func (c *Client) RecognizeDocument(ctx context.Context, pages []types.PageImage, progress PageProgressFunc) (string, []types.UsageLogEntry, error) {
	if len(pages) == 0 {
		return "", nil, fmt.Errorf("没有可识别的页面")
	}

	texts := make([]string, 0, len(pages))
	entries := make([]types.UsageLogEntry, 0, len(pages))
	var pageErrs []error

	for i, page := range pages {
		text, entry, err := c.recognizePage(ctx, page)
		if entry != nil {
			entries = append(entries, *entry)
		}
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("第%d页: %w", page.PageNumber, err))
			logger.Warn().
				Err(err).
				Int("page", page.PageNumber).
				Int("total_pages", len(pages)).
				Msg("页面识别失败，跳过该页继续")
			// 配额耗尽后剩余页必然同样被拒，没有继续的意义
			if errors.Is(err, ErrQuotaExhausted) || ctx.Err() != nil {
				break
			}
		} else {
			texts = append(texts, text)
		}
		if progress != nil {
			progress(i+1, len(pages))
		}
	}

	joined := strings.Join(texts, constants.PageBreakMarker)
	if len(pageErrs) > 0 {
		err := fmt.Errorf("%d/%d页识别失败: %w", len(pageErrs), len(pages), errors.Join(pageErrs...))
		return joined, entries, err
	}
	return joined, entries, nil
}

// UsageLog 返回本客户端累计的调用流水副本
func (c *Client) UsageLog() []types.UsageLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.UsageLogEntry, len(c.usageLog))
	copy(out, c.usageLog)
	return out
}

// Stats 返回配额使用统计
func (c *Client) Stats(ctx context.Context) (types.OCRUsageStats, error) {
	return c.quota.Stats(ctx)
}

func (c *Client) appendUsage(entry types.UsageLogEntry) {
	c.mu.Lock()
	c.usageLog = append(c.usageLog, entry)
	c.mu.Unlock()
}
