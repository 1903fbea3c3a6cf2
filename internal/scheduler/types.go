// Package scheduler implements the recurring tick that drives proactive meal
// generation: expiring superseded results, claiming due triggers, dispatching
// generation jobs, and advancing each trigger to its next window.
package scheduler

import "time"

// TickInput is the JSON payload EventBridge sends to the tick Lambda.
// ReferenceTime lets manual invocations pin "now" for deterministic replays;
// when nil, time.Now().UTC() is used.
type TickInput struct {
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// TickReport summarizes one tick cycle for logging and metrics.
type TickReport struct {
	Due         int `json:"due"`
	Dispatched  int `json:"dispatched"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Expired     int `json:"expired"`
	Invalidated int `json:"invalidated"`
}
