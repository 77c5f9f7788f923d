package models

import "time"

// WorkerStatus is the heartbeat status recorded for a worker process.
type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "active"
	WorkerIdle     WorkerStatus = "idle"
	WorkerBusy     WorkerStatus = "busy"
	WorkerDraining WorkerStatus = "draining"
	WorkerOffline  WorkerStatus = "offline"
)

// Worker is the heartbeat record described in spec §3.
type Worker struct {
	WorkerID        string       `json:"workerId"`
	Status          WorkerStatus `json:"status"`
	LastHeartbeat   time.Time    `json:"lastHeartbeat"`
	StartedAt       time.Time    `json:"startedAt"`
	CPULoad         float64      `json:"cpuLoad"`
	MemoryMB        float64      `json:"memoryMB"`
	TasksInProgress int          `json:"tasksInProgress"`
	TasksCompleted  int64        `json:"tasksCompleted"`
	TasksFailed     int64        `json:"tasksFailed"`
}
