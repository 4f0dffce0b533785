package trawl

import "io"

// ModuleSummary is the per module result shown after the attack phase
type ModuleSummary struct {
	Name          string
	Attacked      int
	NetworkErrors int64
	Crashes       int
	Skipped       string // reason if the module never ran
}

// Reporter receives findings read back from the store
type Reporter interface {
	Add(payload *Payload)
	AddSummary(summary *ModuleSummary)
	Print(writer io.Writer) error
}
