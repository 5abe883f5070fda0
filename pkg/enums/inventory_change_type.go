package enums

import "fmt"

// InventoryChangeType tags each inventory ledger entry.
type InventoryChangeType string

const (
	InventoryChangeOrderDeduction InventoryChangeType = "order_deduction"
	InventoryChangeManualUpdate   InventoryChangeType = "manual_update"
	InventoryChangeRestock        InventoryChangeType = "restock"
	InventoryChangeRollback       InventoryChangeType = "rollback"
)

var validInventoryChangeTypes = []InventoryChangeType{
	InventoryChangeOrderDeduction,
	InventoryChangeManualUpdate,
	InventoryChangeRestock,
	InventoryChangeRollback,
}

// IsValid reports whether the value is a known InventoryChangeType.
func (i InventoryChangeType) IsValid() bool {
	for _, candidate := range validInventoryChangeTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryChangeType converts raw input into an InventoryChangeType.
func ParseInventoryChangeType(value string) (InventoryChangeType, error) {
	for _, candidate := range validInventoryChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory change type %q", value)
}
