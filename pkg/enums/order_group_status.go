package enums

import "fmt"

// OrderGroupStatus tracks the billing lifecycle of an order group.
type OrderGroupStatus string

const (
	OrderGroupStatusPending  OrderGroupStatus = "pending"
	OrderGroupStatusPaid     OrderGroupStatus = "paid"
	OrderGroupStatusCanceled OrderGroupStatus = "canceled"
)

var validOrderGroupStatuses = []OrderGroupStatus{
	OrderGroupStatusPending,
	OrderGroupStatusPaid,
	OrderGroupStatusCanceled,
}

// String implements fmt.Stringer.
func (s OrderGroupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderGroupStatus.
func (s OrderGroupStatus) IsValid() bool {
	for _, candidate := range validOrderGroupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderGroupStatus converts raw input into an OrderGroupStatus.
func ParseOrderGroupStatus(value string) (OrderGroupStatus, error) {
	for _, candidate := range validOrderGroupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order group status %q", value)
}
