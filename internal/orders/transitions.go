package orders

import (
	"github.com/chopnow/chopnow-backend/pkg/enums"
)

// transitions is the saga's legal transition graph. Transitions absent from
// the map fail with a state conflict.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAccepted,
		enums.OrderStatusDeclined,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAccepted: {
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingPayment: {
		enums.OrderStatusPaid,
		enums.OrderStatusDeclined,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusPreparing,
	},
	enums.OrderStatusPreparing: {
		enums.OrderStatusReady,
		enums.OrderStatusCustomerComing,
	},
	enums.OrderStatusReady: {
		enums.OrderStatusCustomerComing,
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusCustomerComing: {
		enums.OrderStatusCompleted,
	},
}

// canTransition reports whether from → to is a legal saga step.
func canTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canCancel reports whether the customer may still cancel from this state.
// Cancellation is never allowed once the payment settled, regardless of state.
func canCancel(status enums.OrderStatus, paymentStatus enums.PaymentStatus) bool {
	if paymentStatus == enums.PaymentStatusPaid {
		return false
	}
	return canTransition(status, enums.OrderStatusCancelled)
}

// ownerProgressTargets are the statuses the restaurant owner may drive
// after payment.
var ownerProgressTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusPreparing: true,
	enums.OrderStatusReady:     true,
	enums.OrderStatusCompleted: true,
}

// customerProgressTargets are the statuses the customer may drive.
var customerProgressTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusCustomerComing: true,
}
