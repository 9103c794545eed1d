// Package events defines the messages pushed to live event subscribers.
package events

import (
	"time"

	"twmarket/pkg/contracts/domain"
)

// Type names a live event
type Type string

const (
	TypeConnected        Type = "connection"
	TypeMonitorTriggered Type = "monitor:triggered"
	TypePipelineStep     Type = "pipeline:step"
)

// Message is the envelope of every pushed event
type Message struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Connected greets a new subscriber
type Connected struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}

// MonitorTriggered reports a monitor crossed by a quote. The monitor has
// already left the index when this is sent.
type MonitorTriggered struct {
	Monitor domain.Monitor `json:"monitor"`
	Price   float64        `json:"price"`
	Volume  int64          `json:"volume"`
	At      time.Time      `json:"at"`
}

// StepSnapshot reports one step state change of a pipeline run
type StepSnapshot struct {
	Pipeline string `json:"pipeline"`
	Date     string `json:"date"`
	StepID   string `json:"step_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}
