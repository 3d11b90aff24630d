package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_Table(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPendingPayment, OrderStatusConfirmed, true},
		{OrderStatusPendingPayment, OrderStatusCancelled, true},
		{OrderStatusPendingPayment, OrderStatusPreparing, false},
		{OrderStatusConfirmed, OrderStatusPreparing, true},
		{OrderStatusConfirmed, OrderStatusPickedUp, false},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusPreparing, OrderStatusReady, true},
		{OrderStatusPreparing, OrderStatusConfirmed, false},
		{OrderStatusReady, OrderStatusPickedUp, true},
		{OrderStatusReady, OrderStatusCancelled, true},
		{OrderStatusPickedUp, OrderStatusCompleted, true},
		{OrderStatusPickedUp, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatus("unknown"), OrderStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusReady.IsTerminal())
	assert.Empty(t, OrderStatusCompleted.AllowedNext())
}

func TestOrderStatus_IsCancellable(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPendingPayment, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady} {
		assert.True(t, s.IsCancellable(), s)
	}
	for _, s := range []OrderStatus{OrderStatusPickedUp, OrderStatusCompleted, OrderStatusCancelled} {
		assert.False(t, s.IsCancellable(), s)
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus("picked_up")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusPickedUp, s)

	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}
