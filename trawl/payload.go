package trawl

import "time"

// PayloadType of a finding
type PayloadType int8

const (
	// PayloadVulnerability confirmed or highly probable flaw
	PayloadVulnerability PayloadType = iota + 1
	// PayloadAnomaly unexpected behaviour (500s, timeouts) worth a look
	PayloadAnomaly
	// PayloadAdditional informational finding
	PayloadAdditional
)

// PayloadTypeMap to display the type
var PayloadTypeMap = map[PayloadType]string{
	PayloadVulnerability: "vulnerability",
	PayloadAnomaly:       "anomaly",
	PayloadAdditional:    "additional",
}

func (t PayloadType) String() string {
	if s, ok := PayloadTypeMap[t]; ok {
		return s
	}
	return "unknown"
}

// Severity levels
const (
	LevelInfo = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// LevelMap to display severity levels
var LevelMap = map[int]string{
	LevelInfo:     "info",
	LevelLow:      "low",
	LevelMedium:   "medium",
	LevelHigh:     "high",
	LevelCritical: "critical",
}

// Payload is a finding produced by an attack module. Never mutated after
// it has been added to the store.
type Payload struct {
	Type      PayloadType `msgpack:"type"`
	Category  string      `msgpack:"category"`
	Level     int         `msgpack:"level"`
	Request   *Request    `msgpack:"request"` // the "evil" request that triggered it
	PathID    string      `msgpack:"path_id"` // the attacked resource
	Parameter string      `msgpack:"parameter"`
	Info      string      `msgpack:"info"`
	Module    string      `msgpack:"module"`
	WSTG      []string    `msgpack:"wstg"`
	Response  *Response   `msgpack:"response,omitempty"`
	Found     time.Time   `msgpack:"found"`
}

// FindingSink receives findings from attack modules
type FindingSink interface {
	AddPayload(payload *Payload) error
}
