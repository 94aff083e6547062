package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"
	"solo_edu_backend/pkg/monitoring"

	"go.uber.org/zap"
)

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIInvoker 大模型调用的统一入口，管道各阶段只依赖该接口
type AIInvoker interface {
	Call(ctx context.Context, messages []AIChatMessage, maxTokens int, temperature float32) (string, error)
}

// 调用结果分类
// 配额类错误会把池化密钥标记为耗尽；瞬时类错误只轮换不标记；
// 客户端类错误（认证、请求格式等）立即放弃当前提供商
type callOutcome int

const (
	outcomeSuccess callOutcome = iota
	outcomeQuota
	outcomeTransient
	outcomeClient
)

func (o callOutcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeQuota:
		return "quota"
	case outcomeTransient:
		return "transient"
	default:
		return "client_error"
	}
}

// aiProvider 链上的一个提供商；密钥按环形索引轮换
type aiProvider struct {
	name    string
	baseURL string
	model   string
	keys    []string
	pooled  bool // 多密钥池化提供商才做耗尽标记

	keyIndex  int
	exhausted map[string]bool
}

// currentKey 返回当前未耗尽的密钥；池内全部耗尽时返回 false
func (p *aiProvider) currentKey() (string, bool) {
	if len(p.keys) == 0 {
		// 本地模型等无密钥提供商
		return "", true
	}
	for i := 0; i < len(p.keys); i++ {
		key := p.keys[(p.keyIndex+i)%len(p.keys)]
		if !p.exhausted[key] {
			p.keyIndex = (p.keyIndex + i) % len(p.keys)
			return key, true
		}
	}
	return "", false
}

func (p *aiProvider) advanceKey() {
	if len(p.keys) > 1 {
		p.keyIndex = (p.keyIndex + 1) % len(p.keys)
	}
}

// AIBroker 多提供商容灾调用器
// 按配置顺序遍历提供商链，区分配额、瞬时与客户端错误分别处理；
// 耗尽集只存活于实例生命周期内，重启即重置
type AIBroker struct {
	providers    []*aiProvider
	maxRetries   int
	initialDelay time.Duration
	httpClient   *http.Client

	mu sync.Mutex // 保护各提供商的 keyIndex 与 exhausted

	sleep func(time.Duration) // 测试时注入
}

func NewAIBroker(cfg config.AIConfig) *AIBroker {
	var providers []*aiProvider
	for _, pc := range cfg.Providers {
		keys := pc.APIKeys
		pooled := len(keys) > 0
		if !pooled && pc.APIKey != "" {
			keys = []string{pc.APIKey}
		}
		// 无任何凭证的提供商视为未启用；本地模型（无密钥）除外
		if len(keys) == 0 && pc.Name != "local" {
			continue
		}
		providers = append(providers, &aiProvider{
			name:      pc.Name,
			baseURL:   strings.TrimRight(pc.BaseURL, "/"),
			model:     pc.Model,
			keys:      keys,
			pooled:    pooled,
			exhausted: make(map[string]bool),
		})
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	initialDelay := cfg.RetryInitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	timeout := time.Duration(cfg.CallTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AIBroker{
		providers:    providers,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		httpClient:   &http.Client{Timeout: timeout},
		sleep:        time.Sleep,
	}
}

// Call 依次尝试提供商链，返回首个成功的回答文本
// 整条链耗尽时返回 ErrAllProvidersExhausted
func (b *AIBroker) Call(ctx context.Context, messages []AIChatMessage, maxTokens int, temperature float32) (string, error) {
	if len(b.providers) == 0 {
		return "", fmt.Errorf("%w: no provider configured", util.ErrAllProvidersExhausted)
	}

	for _, p := range b.providers {
		text, ok := b.callProvider(ctx, p, messages, maxTokens, temperature)
		if ok {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", util.ErrCancelled
		}
	}

	return "", util.ErrAllProvidersExhausted
}

// callProvider 对单个提供商执行重试策略
// 只有配额与瞬时错误消耗重试次数；延迟按 initialDelay × attempt 线性递增
func (b *AIBroker) callProvider(ctx context.Context, p *aiProvider, messages []AIChatMessage, maxTokens int, temperature float32) (string, bool) {
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}

		b.mu.Lock()
		key, ok := p.currentKey()
		b.mu.Unlock()
		if !ok {
			logger.Log.Warn("提供商密钥池已全部耗尽，跳过", zap.String("provider", p.name))
			return "", false
		}

		text, outcome, err := b.invoke(ctx, p, key, messages, maxTokens, temperature)
		monitoring.LLMRequestCounter.WithLabelValues(p.name, outcome.String()).Inc()

		switch outcome {
		case outcomeSuccess:
			return text, true

		case outcomeQuota:
			b.mu.Lock()
			if p.pooled {
				p.exhausted[key] = true
			}
			p.advanceKey()
			b.mu.Unlock()
			logger.Log.Warn("提供商触发配额限制",
				zap.String("provider", p.name),
				zap.Int("attempt", attempt),
				zap.Error(err))

		case outcomeTransient:
			b.mu.Lock()
			p.advanceKey()
			b.mu.Unlock()
			logger.Log.Warn("提供商调用出现瞬时错误",
				zap.String("provider", p.name),
				zap.Int("attempt", attempt),
				zap.Error(err))

		case outcomeClient:
			// 认证或请求本身的问题，重试无意义，直接换下一个提供商
			logger.Log.Warn("提供商返回客户端错误，放弃该提供商",
				zap.String("provider", p.name),
				zap.Error(err))
			return "", false
		}

		if attempt < b.maxRetries {
			if !b.sleepCtx(ctx, b.initialDelay*time.Duration(attempt)) {
				return "", false
			}
		}
	}
	return "", false
}

func (b *AIBroker) sleepCtx(ctx context.Context, d time.Duration) bool {
	if b.sleep != nil {
		b.sleep(d)
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// OpenAI 兼容的 chat completions 请求/响应结构
type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// quotaBodyMarkers 部分提供商用 200/403 响应体传达配额信息
var quotaBodyMarkers = []string{
	"rate limit",
	"rate_limit",
	"quota",
	"RESOURCE_EXHAUSTED",
	"insufficient credits",
}

func containsQuotaMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range quotaBodyMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// invoke 执行一次HTTP调用并对结果分类
func (b *AIBroker) invoke(ctx context.Context, p *aiProvider, key string, messages []AIChatMessage, maxTokens int, temperature float32) (string, callOutcome, error) {
	reqBody := chatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", outcomeClient, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", outcomeClient, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", outcomeClient, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return "", outcomeTransient, err
		}
		return "", outcomeTransient, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", outcomeQuota, fmt.Errorf("provider %s status 429: %s", p.name, util.Truncate(string(body), 200))
	case resp.StatusCode == http.StatusForbidden && containsQuotaMarker(string(body)):
		return "", outcomeQuota, fmt.Errorf("provider %s quota denied: %s", p.name, util.Truncate(string(body), 200))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
		return "", outcomeTransient, fmt.Errorf("provider %s status %d: %s", p.name, resp.StatusCode, util.Truncate(string(body), 200))
	case resp.StatusCode != http.StatusOK:
		return "", outcomeClient, fmt.Errorf("provider %s status %d: %s", p.name, resp.StatusCode, util.Truncate(string(body), 200))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", outcomeClient, fmt.Errorf("provider %s decode error: %w", p.name, err)
	}

	if result.Error != nil {
		// 部分聚合商在 200 响应中携带错误对象
		if containsQuotaMarker(result.Error.Message) {
			return "", outcomeQuota, fmt.Errorf("provider %s error: %s", p.name, result.Error.Message)
		}
		return "", outcomeClient, fmt.Errorf("provider %s error: %s", p.name, result.Error.Message)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", outcomeClient, fmt.Errorf("provider %s returned no choices", p.name)
	}

	return result.Choices[0].Message.Content, outcomeSuccess, nil
}

// ExhaustedKeyCount 返回全部提供商当前被标记耗尽的密钥数，供状态接口展示
func (b *AIBroker) ExhaustedKeyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, p := range b.providers {
		total += len(p.exhausted)
	}
	return total
}
