package trawl

import "time"

// InterruptChoice is what the operator decided after an interruption
type InterruptChoice int8

const (
	// InterruptResume continues the current module where it left off
	InterruptResume InterruptChoice = iota + 1
	// InterruptSkip stops the current module and moves to the next
	InterruptSkip
	// InterruptReport stops attacking and generates the report
	InterruptReport
	// InterruptQuit stops attacking without a report
	InterruptQuit
)

// InterruptChoiceMap to display choices
var InterruptChoiceMap = map[InterruptChoice]string{
	InterruptResume: "resume",
	InterruptSkip:   "skip",
	InterruptReport: "report",
	InterruptQuit:   "quit",
}

// InterruptionContext describes where the attack phase was interrupted
type InterruptionContext struct {
	Module    string
	Processed int
	Elapsed   time.Duration
	Remaining []string // modules not yet run
}

// InterruptionPolicy decides what happens after an interruption
type InterruptionPolicy func(ictx *InterruptionContext) InterruptChoice

// ReportOnInterrupt is the non-interactive default
func ReportOnInterrupt(*InterruptionContext) InterruptChoice {
	return InterruptReport
}
