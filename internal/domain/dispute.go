package domain

import "time"

type DisputeStatus string
type DisputeOutcome string

const (
	DisputeOpen     DisputeStatus = "OPEN"
	DisputeResolved DisputeStatus = "RESOLVED"

	ReleaseToBuyer DisputeOutcome = "RELEASE_TO_BUYER"
	RefundToSeller DisputeOutcome = "REFUND_TO_SELLER"
)

// MaxEvidence bounds the evidence handles attached to one dispute.
const MaxEvidence = 10

func (o DisputeOutcome) Valid() bool {
	return o == ReleaseToBuyer || o == RefundToSeller
}

type Dispute struct {
	ID         string
	TradeID    string
	OpenedBy   string
	Reason     string
	Evidence   []string
	Status     DisputeStatus
	Outcome    DisputeOutcome
	ResolvedBy string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// AddEvidence appends opaque storage handles, enforcing MaxEvidence.
func (d *Dispute) AddEvidence(handles ...string) error {
	for _, h := range handles {
		if h == "" {
			return Validation("evidence handle must not be empty")
		}
	}
	if len(d.Evidence)+len(handles) > MaxEvidence {
		return Validation("dispute accepts at most %d evidence handles", MaxEvidence)
	}
	d.Evidence = append(d.Evidence, handles...)
	return nil
}

type DisputeFilter struct {
	TradeID string
	Status  DisputeStatus
	Limit   int
}
