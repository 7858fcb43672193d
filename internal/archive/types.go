package archive

import (
	"encoding/json"
	"time"
)

// PacketRecord is the archived form of one finished intake.
type PacketRecord struct {
	Version     string          `json:"version"`
	SessionID   string          `json:"session_id"`
	Kind        string          `json:"kind"` // booking|handoff
	ArchivedAt  time.Time       `json:"archived_at"`
	PhoneHash   string          `json:"phone_hash,omitempty"`
	ConditionID *int            `json:"condition_id,omitempty"`
	Urgency     string          `json:"urgency,omitempty"`
	Packet      json.RawMessage `json:"packet"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	SessionID   string `json:"session_id"`
	S3Key       string `json:"s3_key"`
	Kind        string `json:"kind"`
	ConditionID *int   `json:"condition_id,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	SelfPay     bool   `json:"self_pay,omitempty"`
	ArchivedAt  string `json:"archived_at"`
}
