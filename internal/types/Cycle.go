package types

import "time"

// CycleRecord is the persisted history row for one completed cycle: the
// observation consumed, the decision taken, the execution outcome, and the
// resulting position. Optional alongside the CSV audit log; stored in Postgres
// when the database is configured.
type CycleRecord struct {
	RecordID    int64             `json:"record_id,omitempty"`
	CycleNumber int               `json:"cycle_number"`
	Timestamp   time.Time         `json:"timestamp"`
	Observation MarketObservation `json:"observation"`
	Decision    Decision          `json:"decision"`
	Receipt     ExecutionReceipt  `json:"receipt"`
	Position    Position          `json:"position"`
}
