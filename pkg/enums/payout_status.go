package enums

import "fmt"

// PayoutItemStatus tracks a deferred obligation through batching and transfer.
type PayoutItemStatus string

const (
	PayoutItemStatusPending    PayoutItemStatus = "pending"
	PayoutItemStatusBatched    PayoutItemStatus = "batched"
	PayoutItemStatusProcessing PayoutItemStatus = "processing"
	PayoutItemStatusPaid       PayoutItemStatus = "paid"
	PayoutItemStatusFailed     PayoutItemStatus = "failed"
)

var validPayoutItemStatuses = []PayoutItemStatus{
	PayoutItemStatusPending,
	PayoutItemStatusBatched,
	PayoutItemStatusProcessing,
	PayoutItemStatusPaid,
	PayoutItemStatusFailed,
}

// IsValid reports whether the value is a known PayoutItemStatus.
func (p PayoutItemStatus) IsValid() bool {
	for _, candidate := range validPayoutItemStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutItemStatus converts raw input into a PayoutItemStatus.
func ParsePayoutItemStatus(value string) (PayoutItemStatus, error) {
	for _, candidate := range validPayoutItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout item status %q", value)
}

// PayoutBatchStatus tracks the aggregate batch lifecycle.
type PayoutBatchStatus string

const (
	PayoutBatchStatusProcessing PayoutBatchStatus = "processing"
	PayoutBatchStatusCompleted  PayoutBatchStatus = "completed"
	PayoutBatchStatusFailed     PayoutBatchStatus = "failed"
)

// IsValid reports whether the value is a known PayoutBatchStatus.
func (p PayoutBatchStatus) IsValid() bool {
	switch p {
	case PayoutBatchStatusProcessing, PayoutBatchStatusCompleted, PayoutBatchStatusFailed:
		return true
	default:
		return false
	}
}
