package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/circuitbreaker"
	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const (
	minHTTPTimeout = 1 * time.Second
	maxHTTPTimeout = 300 * time.Second
)

// HTTPExecutor is the "http" node kind (spec §4.2), adapted from the
// reference's HTTPTaskExecutor: config is now a structured map instead of
// a "METHOD URL [BODY]" command string, and an SSRF guard runs before the
// request is issued. A circuit breaker per target host keeps a
// persistently failing endpoint from being hammered by every retrying
// task that targets it.
type HTTPExecutor struct {
	client *http.Client

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// NewHTTPExecutor creates a new HTTP executor.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{client: &http.Client{}, breakers: make(map[string]*circuitbreaker.CircuitBreaker)}
}

func (e *HTTPExecutor) breakerFor(host string) *circuitbreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.breakers[host]
	if !ok {
		cb = circuitbreaker.New(circuitbreaker.DefaultConfig())
		e.breakers[host] = cb
	}
	return cb
}

func (e *HTTPExecutor) Kind() models.NodeKind { return models.NodeKindHTTP }

func (e *HTTPExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	targetURL, _ := config["url"].(string)
	if targetURL == "" {
		return nil, errs.New(errs.KindValidation, "http task requires a url", nil)
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	if err := checkSSRF(targetURL); err != nil {
		return nil, err
	}

	timeout := resolveTimeout(config)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if b, ok := config["body"].(string); ok && b != "" {
		body = bytes.NewBufferString(b)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, targetURL, body)
	if err != nil {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("failed to build request: %v", err), err)
	}

	if headers, ok := config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	if (method == http.MethodPost || method == http.MethodPut) && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	breaker := e.breakerFor(req.URL.Host)
	start := time.Now()
	resp, err := circuitbreaker.ExecuteWithValue(reqCtx, breaker, func() (*http.Response, error) {
		return e.client.Do(req)
	})
	if err != nil {
		if err == circuitbreaker.ErrCircuitOpen {
			return nil, errs.New(errs.KindInfraTransient, fmt.Sprintf("circuit open for host %s", req.URL.Host), err)
		}
		if reqCtx.Err() != nil {
			return nil, errs.New(errs.KindTimeout, fmt.Sprintf("http request exceeded %s", timeout), err)
		}
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("http request failed: %v", err), err)
	}
	defer resp.Body.Close()
	duration := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to read response body: %v", err), err)
	}

	maskedHeaders := map[string]interface{}{}
	for k, v := range resp.Header {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Set-Cookie") {
			maskedHeaders[k] = "***"
			continue
		}
		maskedHeaders[k] = strings.Join(v, ", ")
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	output := map[string]interface{}{
		"statusCode": resp.StatusCode,
		"body":       string(respBody),
		"headers":    maskedHeaders,
		"durationMs": duration.Milliseconds(),
		"success":    success,
	}

	if !success {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("http request returned status %d", resp.StatusCode), nil)
	}

	return &TaskResult{Outcome: OutcomeSuccess, Output: output}, nil
}

func resolveTimeout(config map[string]interface{}) time.Duration {
	timeout := 30 * time.Second
	if ms, ok := config["timeoutMs"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	if timeout < minHTTPTimeout {
		timeout = minHTTPTimeout
	}
	if timeout > maxHTTPTimeout {
		timeout = maxHTTPTimeout
	}
	return timeout
}
