package executor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const defaultWebhookTimeout = 30 * time.Second

// WebhookExecutor is the "webhook" node kind (spec §4.2): POST a payload,
// optionally signed with HMAC-SHA256 over the serialized body.
type WebhookExecutor struct {
	client *http.Client
}

// NewWebhookExecutor creates a new webhook executor.
func NewWebhookExecutor() *WebhookExecutor {
	return &WebhookExecutor{client: &http.Client{Timeout: defaultWebhookTimeout}}
}

func (e *WebhookExecutor) Kind() models.NodeKind { return models.NodeKindWebhook }

func (e *WebhookExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	targetURL, _ := config["url"].(string)
	if targetURL == "" {
		return nil, errs.New(errs.KindValidation, "webhook task requires a url", nil)
	}
	if err := checkSSRF(targetURL); err != nil {
		return nil, err
	}

	payload, ok := config["payload"].(map[string]interface{})
	if !ok {
		payload = map[string]interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to marshal payload: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("failed to build request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")

	if secret, _ := config["signingSecret"].(string); secret != "" {
		header, _ := config["signatureHeader"].(string)
		if header == "" {
			header = "X-Signature-256"
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set(header, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("webhook request failed: %v", err), err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	output := map[string]interface{}{
		"statusCode": resp.StatusCode,
		"body":       string(respBody),
		"success":    success,
	}
	if !success {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("webhook returned status %d", resp.StatusCode), nil)
	}
	return &TaskResult{Outcome: OutcomeSuccess, Output: output}, nil
}
