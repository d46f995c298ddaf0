// Package queue defines message payloads exchanged over the message broker
// and the consumer that drains them.
package queue

// QualityIssueQueue is the durable queue quality issues are routed to.
const QualityIssueQueue = "quality.issue.detected"

// QualityIssueEvent is published for every traceability bucket whose fail
// rate exceeded the threshold during a detection run.  Timestamps are
// RFC 3339 strings so consumers need not share our time handling.
type QualityIssueEvent struct {
	Dimension   string  `json:"dimension"`
	Value       string  `json:"value"`
	Total       int64   `json:"total"`
	FailCount   int64   `json:"fail_count"`
	FailRate    float64 `json:"fail_rate"`
	Threshold   float64 `json:"threshold"`
	WindowStart string  `json:"window_start"`
	WindowEnd   string  `json:"window_end"`
	DetectedAt  string  `json:"detected_at"`
}
