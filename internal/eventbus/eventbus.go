// Package eventbus implements C3, the one-way notification channel for
// task.update / run.update events (spec §2, §6).
package eventbus

import "time"

// TaskUpdate is the task.update event shape (spec §6).
type TaskUpdate struct {
	RunID       string                 `json:"runId"`
	NodeID      string                 `json:"nodeId"`
	Status      string                 `json:"status"`
	Attempt     int                    `json:"attempt"`
	DisplayName string                 `json:"displayName"`
	Timestamp   time.Time              `json:"timestamp"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// RunUpdate is the run.update event shape (spec §6).
type RunUpdate struct {
	RunID      string      `json:"runId"`
	Status     string      `json:"status"`
	Timeline   interface{} `json:"timeline"`
	Timestamp  time.Time   `json:"timestamp"`
}

// EventBus is the C3 contract: one-way publication of task/run events.
// Subscription is supported for operator tooling and tests, but the core
// components are producers only.
type EventBus interface {
	PublishTaskUpdate(TaskUpdate) error
	PublishRunUpdate(RunUpdate) error
}
