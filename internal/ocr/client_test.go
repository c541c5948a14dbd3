package ocr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent-go/internal/constants"
	"hr-agent-go/internal/types"
)

func testPage(n int) types.PageImage {
	return types.PageImage{PageNumber: n, Format: "png", Data: []byte("fake-image-bytes")}
}

// newTestClient 构造一个指向httptest服务的客户端
func newTestClient(t *testing.T, handler http.HandlerFunc, quota QuotaStore) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "test-appcode", quota)
	require.NoError(t, err, "创建OCR客户端失败")
	return client, server
}

// TestRecognizePageSuccess 识别成功：返回文本，配额加一，流水记录成功
func TestRecognizePageSuccess(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "APPCODE test-appcode", r.Header.Get("Authorization"), "鉴权头与预期不符")
		fmt.Fprint(w, `{"prism_wordsInfo":[{"word":"张三"},{"word":"电话: 13812345678"}]}`)
	}, quota)

	text, err := client.RecognizePage(context.Background(), testPage(1))
	require.NoError(t, err)
	assert.Equal(t, "张三\n电话: 13812345678", text, "识别文本应按行拼接")

	stats, err := quota.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Used, "成功调用应恰好计数一次")

	log := client.UsageLog()
	require.Len(t, log, 1, "每次尝试应记录一条流水")
	assert.True(t, log[0].Success)
	assert.Equal(t, 1, log[0].PageNumber)
}

// TestQuotaIncrementOnRemoteFailure 服务端报错时请求已到达服务端，必须计数
func TestQuotaIncrementOnRemoteFailure(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"InvalidImage"}`, http.StatusBadRequest)
	}, quota)

	_, err := client.RecognizePage(context.Background(), testPage(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecognizeFailed, "服务端错误应归类为识别失败")

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 1, stats.Used, "到达服务端的失败调用同样消耗配额")

	log := client.UsageLog()
	require.Len(t, log, 1)
	assert.False(t, log[0].Success)
	assert.NotEmpty(t, log[0].Error)
}

// TestNoIncrementOnNetworkFailure 请求未到达服务端时不消耗配额
func TestNoIncrementOnNetworkFailure(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // 立刻关闭，模拟网络不可达

	client, err := NewClient(server.URL, "test-appcode", quota)
	require.NoError(t, err)

	_, err = client.RecognizePage(context.Background(), testPage(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed, "网络失败应归类为请求发送失败")

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 0, stats.Used, "网络层失败不应消耗配额")

	// 尝试本身仍要留痕
	require.Len(t, client.UsageLog(), 1)
	assert.False(t, client.UsageLog()[0].Success)
}

// TestQuotaExhaustedRejectsWithoutChange 配额耗尽时直接拒绝，计数与流水均不变
func TestQuotaExhaustedRejectsWithoutChange(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	quota.SetUsed(500)

	var serverHits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&serverHits, 1)
		fmt.Fprint(w, `{"prism_wordsInfo":[{"word":"x"}]}`)
	}, quota)

	_, err := client.RecognizePage(context.Background(), testPage(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 500, stats.Used, "拒绝时计数不应变化")
	assert.Equal(t, int32(0), atomic.LoadInt32(&serverHits), "拒绝时不应发出任何HTTP请求")
	assert.Empty(t, client.UsageLog(), "拒绝的调用不构成一次尝试")
}

// TestQuotaBoundary 第500次调用成功后，第501次应被拒绝
func TestQuotaBoundary(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	quota.SetUsed(499)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prism_wordsInfo":[{"word":"最后一页"}]}`)
	}, quota)

	// 第500次：还有余量，允许调用
	text, err := client.RecognizePage(context.Background(), testPage(1))
	require.NoError(t, err, "used=499时仍应允许调用")
	assert.Equal(t, "最后一页", text)

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 500, stats.Used)
	assert.Equal(t, 0, stats.Remaining)

	// 第501次：配额耗尽
	_, err = client.RecognizePage(context.Background(), testPage(2))
	assert.ErrorIs(t, err, ErrQuotaExhausted, "used=500时应拒绝调用")
}

// TestRecognizeDocument 多页识别：分页标记拼接 + 逐页进度回调
func TestRecognizeDocument(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	var pageSeq int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&pageSeq, 1)
		fmt.Fprintf(w, `{"prism_wordsInfo":[{"word":"第%d页内容"}]}`, n)
	}, quota)

	pages := []types.PageImage{testPage(1), testPage(2), testPage(3)}

	var progressCalls [][2]int
	text, entries, err := client.RecognizeDocument(context.Background(), pages, func(done, total int) {
		progressCalls = append(progressCalls, [2]int{done, total})
	})
	require.NoError(t, err)

	parts := strings.Split(text, constants.PageBreakMarker)
	require.Len(t, parts, 3, "三页文本应由分页标记分隔")
	assert.Equal(t, "第1页内容", parts[0])
	assert.Equal(t, "第3页内容", parts[2])

	require.Len(t, progressCalls, 3, "每页识别完成后应回调一次进度")
	assert.Equal(t, [2]int{1, 3}, progressCalls[0])
	assert.Equal(t, [2]int{3, 3}, progressCalls[2])

	require.Len(t, entries, 3, "每页应产生一条调用流水")
	assert.True(t, entries[0].Success)

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 3, stats.Used, "三页应消耗三次配额")
}

// TestRecognizeDocumentSkipsFailedPage 某页失败时跳过该页，其余页继续识别
func TestRecognizeDocumentSkipsFailedPage(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n == 2 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"prism_wordsInfo":[{"word":"第%d页文本"}]}`, n)
	}, quota)

	pages := []types.PageImage{testPage(1), testPage(2), testPage(3)}
	text, entries, err := client.RecognizeDocument(context.Background(), pages, nil)

	require.Error(t, err, "存在失败页时应返回汇总错误")
	assert.ErrorIs(t, err, ErrRecognizeFailed)
	assert.Contains(t, err.Error(), "1/3页识别失败")

	parts := strings.Split(text, constants.PageBreakMarker)
	require.Len(t, parts, 2, "失败页之后的页面应继续识别")
	assert.Equal(t, "第1页文本", parts[0])
	assert.Equal(t, "第3页文本", parts[1])

	require.Len(t, entries, 3, "三次尝试各留一条流水")
	assert.True(t, entries[0].Success)
	assert.False(t, entries[1].Success)
	assert.True(t, entries[2].Success)

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 3, stats.Used, "三次尝试都到达了服务端，应各计数一次")
}

// TestRecognizeDocumentStopsOnQuotaExhausted 配额耗尽后不再尝试剩余页，保留已有文本
func TestRecognizeDocumentStopsOnQuotaExhausted(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	quota.SetUsed(499)

	var serverHits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&serverHits, 1)
		fmt.Fprint(w, `{"prism_wordsInfo":[{"word":"仅剩一页额度"}]}`)
	}, quota)

	pages := []types.PageImage{testPage(1), testPage(2), testPage(3)}
	text, entries, err := client.RecognizeDocument(context.Background(), pages, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, "仅剩一页额度", text, "耗尽前识别出的文本应保留")
	assert.Len(t, entries, 1, "被配额拒绝的页不构成尝试")
	assert.Equal(t, int32(1), atomic.LoadInt32(&serverHits), "耗尽后不应再发出HTTP请求")

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 500, stats.Used, "计数不应超过上限")
}

// TestQuotaReserveAtomic 并发占用配额时已用计数不应突破上限
func TestQuotaReserveAtomic(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	quota.SetUsed(499)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- quota.Reserve(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for err := range results {
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, ErrQuotaExhausted)
		}
	}
	assert.Equal(t, 1, granted, "剩余额度为1时并发占用应恰好放行一次")

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 500, stats.Used, "并发下计数不应突破上限")
}

// TestQuotaReleaseFloor 归还不应把计数减到0以下
func TestQuotaReleaseFloor(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	require.NoError(t, quota.Release(context.Background()))

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 0, stats.Used, "空计数上的归还应保持为0")

	require.NoError(t, quota.Reserve(context.Background()))
	require.NoError(t, quota.Release(context.Background()))
	stats, _ = quota.Stats(context.Background())
	assert.Equal(t, 0, stats.Used, "占用后归还应回到原值")
}

// TestResponseFieldProbing 响应字段按 prism_wordsInfo → ret → words 顺序探测
func TestResponseFieldProbing(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"ret字段", `{"ret":[{"word":"甲"},{"word":"乙"}]}`, "甲\n乙"},
		{"words字段content键", `{"words":[{"content":"丙"}]}`, "丙"},
		{"prism优先于ret", `{"prism_wordsInfo":[{"word":"主"}],"ret":[{"word":"次"}]}`, "主"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quota := NewMemoryQuotaStore(500)
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}, quota)

			text, err := client.RecognizePage(context.Background(), testPage(1))
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
		})
	}
}

// TestEmptyResultIsError 服务端响应不含文字时视作识别失败，但仍计数
func TestEmptyResultIsError(t *testing.T) {
	quota := NewMemoryQuotaStore(500)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}, quota)

	_, err := client.RecognizePage(context.Background(), testPage(1))
	assert.ErrorIs(t, err, ErrEmptyResult)

	stats, _ := quota.Stats(context.Background())
	assert.Equal(t, 1, stats.Used, "空结果的调用同样到达了服务端，应计数")
}
