package model

// FieldDiff is one row of a field-by-field fee comparison.
type FieldDiff struct {
	Name  string `json:"name"`
	Left  string `json:"left"`
	Right string `json:"right"`
	Match bool   `json:"match"`
	// Skipped is set when one side did not produce the value.
	Skipped bool `json:"skipped,omitempty"`
}

// Mismatch records a report whose fee engines disagree, or whose trace could
// not be verified at all, in which case Reason is set and Fields is empty.
type Mismatch struct {
	TxHash      string      `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	LogIndex    uint64      `json:"log_index"`
	Vault       string      `json:"vault"`
	Strategy    string      `json:"strategy"`
	Version     string      `json:"version"`
	Fields      []FieldDiff `json:"fields,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	RecordedAt  string      `json:"recorded_at"`
}
