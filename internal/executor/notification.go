package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const defaultNotificationTimeout = 15 * time.Second

// NotificationExecutor is the "notification" node kind (spec §4.2): shape
// a Slack- or Discord-flavored payload and POST it to a platform webhook.
type NotificationExecutor struct {
	client *http.Client
}

// NewNotificationExecutor creates a new notification executor.
func NewNotificationExecutor() *NotificationExecutor {
	return &NotificationExecutor{client: &http.Client{Timeout: defaultNotificationTimeout}}
}

func (e *NotificationExecutor) Kind() models.NodeKind { return models.NodeKindNotification }

func (e *NotificationExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	webhookURL, _ := config["webhookUrl"].(string)
	if webhookURL == "" {
		return nil, errs.New(errs.KindValidation, "notification task requires a webhookUrl", nil)
	}
	if err := checkSSRF(webhookURL); err != nil {
		return nil, err
	}
	message, _ := config["message"].(string)
	if message == "" {
		return nil, errs.New(errs.KindValidation, "notification task requires a message", nil)
	}

	platform, _ := config["platform"].(string)
	var payload map[string]interface{}
	switch platform {
	case "discord":
		payload = map[string]interface{}{"content": message}
	default:
		payload = map[string]interface{}{"text": message}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("failed to marshal notification payload: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("failed to build request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("notification request failed: %v", err), err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("notification webhook returned status %d", resp.StatusCode), nil)
	}
	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"statusCode": resp.StatusCode, "body": string(respBody)}}, nil
}
