package models

// TaskMessage is one unit of work on the task queue (spec §3, §6). The
// node's config is resolved from the DAG at consumption time and never
// stored here, so an in-flight run is never bifurcated by a concurrent DAG
// edit.
type TaskMessage struct {
	RunID   string `json:"runId"`
	DAGID   string `json:"dagId"`
	NodeID  string `json:"nodeId"`
	Attempt int    `json:"attempt"`
	UserID  string `json:"userId,omitempty"`
}

// Valid reports whether the message carries the two fields the queue
// contract requires; a message failing this check is dead-lettered with
// reason "invalid_json" rather than processed (spec §4.3 step 2, §6).
func (m TaskMessage) Valid() bool {
	return m.RunID != "" && m.NodeID != ""
}
