package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successBody = `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`

func newTestBroker(providers ...config.AIProviderConfig) *AIBroker {
	b := NewAIBroker(config.AIConfig{
		Providers:          providers,
		MaxRetries:         3,
		RetryInitialDelay:  time.Millisecond,
		CallTimeoutSeconds: 5,
	})
	b.sleep = func(time.Duration) {}
	return b
}

func TestBrokerFailoverToNextProvider(t *testing.T) {
	var firstHits int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstHits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(successBody))
	}))
	defer second.Close()

	b := newTestBroker(
		config.AIProviderConfig{Name: "flaky", BaseURL: first.URL, Model: "m", APIKey: "k1"},
		config.AIProviderConfig{Name: "stable", BaseURL: second.URL, Model: "m", APIKey: "k2"},
	)

	text, err := b.Call(context.Background(), []AIChatMessage{{Role: "user", Content: "hi"}}, 100, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	// 瞬时错误消耗完首个提供商的全部重试次数
	assert.Equal(t, int32(3), atomic.LoadInt32(&firstHits))
}

func TestBrokerPooledKeyExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	b := newTestBroker(config.AIProviderConfig{
		Name: "pooled", BaseURL: srv.URL, Model: "m",
		APIKeys: []string{"key-a", "key-b"},
	})

	_, err := b.Call(context.Background(), []AIChatMessage{{Role: "user", Content: "hi"}}, 100, 0.3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrAllProvidersExhausted))
	assert.Equal(t, 2, b.ExhaustedKeyCount())
}

func TestBrokerRetryDelaysIncreaseLinearly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewAIBroker(config.AIConfig{
		Providers: []config.AIProviderConfig{
			{Name: "flaky", BaseURL: srv.URL, Model: "m", APIKey: "k"},
		},
		MaxRetries:         3,
		RetryInitialDelay:  10 * time.Millisecond,
		CallTimeoutSeconds: 5,
	})
	var delays []time.Duration
	b.sleep = func(d time.Duration) { delays = append(delays, d) }

	_, err := b.Call(context.Background(), []AIChatMessage{{Role: "user", Content: "hi"}}, 100, 0.3)
	require.Error(t, err)

	// 最后一次尝试后不再等待；延迟按 initialDelay × attempt 单调递增
	require.Len(t, delays, 2)
	assert.Equal(t, 10*time.Millisecond, delays[0])
	assert.Equal(t, 20*time.Millisecond, delays[1])
	assert.True(t, delays[0] <= delays[1])
}

func TestBrokerClientErrorSkipsRetries(t *testing.T) {
	var hits int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(successBody))
	}))
	defer good.Close()

	b := newTestBroker(
		config.AIProviderConfig{Name: "bad", BaseURL: bad.URL, Model: "m", APIKey: "k1"},
		config.AIProviderConfig{Name: "good", BaseURL: good.URL, Model: "m", APIKey: "k2"},
	)

	text, err := b.Call(context.Background(), []AIChatMessage{{Role: "user", Content: "hi"}}, 100, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	// 客户端错误不重试，单次请求后放弃该提供商
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 0, b.ExhaustedKeyCount())
}

func TestBrokerQuotaMarkerInOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"RESOURCE_EXHAUSTED: daily quota reached"}}`))
	}))
	defer srv.Close()

	b := newTestBroker(config.AIProviderConfig{
		Name: "aggregator", BaseURL: srv.URL, Model: "m",
		APIKeys: []string{"only-key"},
	})

	_, err := b.Call(context.Background(), []AIChatMessage{{Role: "user", Content: "hi"}}, 100, 0.3)
	require.Error(t, err)
	assert.Equal(t, 1, b.ExhaustedKeyCount())
}

func TestBrokerNoProviders(t *testing.T) {
	b := newTestBroker()
	_, err := b.Call(context.Background(), nil, 100, 0.3)
	assert.True(t, errors.Is(err, util.ErrAllProvidersExhausted))
}

func TestBrokerSkipsProviderWithoutCredentials(t *testing.T) {
	b := newTestBroker(config.AIProviderConfig{Name: "remote", BaseURL: "http://127.0.0.1:1", Model: "m"})
	assert.Len(t, b.providers, 0)
}

func TestContainsQuotaMarker(t *testing.T) {
	assert.True(t, containsQuotaMarker("Rate Limit hit"))
	assert.True(t, containsQuotaMarker("insufficient credits remaining"))
	assert.False(t, containsQuotaMarker("internal server error"))
}
