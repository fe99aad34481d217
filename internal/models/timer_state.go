package models

import "time"

// WorkTimerState is the persisted state of one work-order timer.
//
// The timer tracks wall-clock elapsed time since the first start, not time
// actively worked: while running the invariant
//
//	AccumulatedSeconds + secondsSince(StartTime) == secondsSince(OriginalStartTime)
//
// holds, so pause gaps are folded back in once the timer resumes and ticks.
type WorkTimerState struct {
	WorkOrderID        string     `json:"workOrderId"`
	OriginalStartTime  time.Time  `json:"originalStartTime"`
	StartTime          *time.Time `json:"startTime,omitempty"` // nil while paused
	AccumulatedSeconds int64      `json:"accumulatedSeconds"`
	IsRunning          bool       `json:"isRunning"`
}
