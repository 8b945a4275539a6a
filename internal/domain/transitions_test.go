package domain

import "testing"

func TestTransitionTable(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusInProgress,
		OrderStatusCompleted,
		OrderStatusCancelled,
		OrderStatusArchived,
	}
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusCompleted}: true,
		{OrderStatusPending, OrderStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestUnreachableStatesAreTerminal(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusInProgress, OrderStatusArchived, OrderStatusCompleted, OrderStatusCancelled} {
		if !IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	if IsTerminal(OrderStatusPending) {
		t.Error("pending must not be terminal")
	}
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	next := AllowedTransitions(OrderStatusPending)
	next[0] = OrderStatusArchived

	if CanTransition(OrderStatusPending, OrderStatusArchived) {
		t.Fatal("mutating the returned slice changed the transition table")
	}
}
