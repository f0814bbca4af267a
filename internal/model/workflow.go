package model

import (
	"fmt"
	"strings"
)

// OrderWorkflow is the order state machine. The catering/stationery desks
// and the room-service desk use different words for the middle states, so
// each deployment picks one vocabulary; the rules are the same machine.
type OrderWorkflow struct {
	name        string
	statuses    []OrderStatus
	transitions map[OrderStatus][]OrderStatus
	aliases     map[string]OrderStatus
}

// DepartmentWorkflow: pending -> preparing -> ready -> completed; any
// non-terminal status -> cancelled.
var DepartmentWorkflow = OrderWorkflow{
	name:     "department",
	statuses: []OrderStatus{OrderPending, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled},
	transitions: map[OrderStatus][]OrderStatus{
		OrderPending:   {OrderPreparing, OrderCancelled},
		OrderPreparing: {OrderReady, OrderCancelled},
		OrderReady:     {OrderCompleted, OrderCancelled},
	},
	aliases: map[string]OrderStatus{
		"processing": OrderPreparing,
		"delivered":  OrderCompleted,
	},
}

// RoomServiceWorkflow: pending -> confirmed -> in_progress -> ready ->
// completed; any non-terminal status -> cancelled.
var RoomServiceWorkflow = OrderWorkflow{
	name:     "room_service",
	statuses: []OrderStatus{OrderPending, OrderConfirmed, OrderInProgress, OrderReady, OrderCompleted, OrderCancelled},
	transitions: map[OrderStatus][]OrderStatus{
		OrderPending:    {OrderConfirmed, OrderCancelled},
		OrderConfirmed:  {OrderInProgress, OrderCancelled},
		OrderInProgress: {OrderReady, OrderCompleted, OrderCancelled},
		OrderReady:      {OrderCompleted, OrderCancelled},
	},
	aliases: map[string]OrderStatus{
		"preparing": OrderInProgress,
		"delivered": OrderCompleted,
	},
}

// WorkflowByName returns the named workflow.
func WorkflowByName(name string) (OrderWorkflow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DepartmentWorkflow.name:
		return DepartmentWorkflow, nil
	case RoomServiceWorkflow.name, "room-service":
		return RoomServiceWorkflow, nil
	}
	return OrderWorkflow{}, fmt.Errorf("unknown order workflow %q", name)
}

// Name returns the workflow name.
func (w OrderWorkflow) Name() string { return w.name }

// Initial is the status every new order starts in.
func (w OrderWorkflow) Initial() OrderStatus { return OrderPending }

// Statuses lists the vocabulary of w.
func (w OrderWorkflow) Statuses() []OrderStatus {
	return append([]OrderStatus(nil), w.statuses...)
}

// Parse maps a label, including aliases, to a status of w.
func (w OrderWorkflow) Parse(label string) (OrderStatus, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, s := range w.statuses {
		if string(s) == l {
			return s, true
		}
	}
	if s, ok := w.aliases[l]; ok {
		return s, true
	}
	return "", false
}

// Terminal reports whether s allows no further transition.
func (w OrderWorkflow) Terminal(s OrderStatus) bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanTransition reports whether w has an edge from -> to.
func (w OrderWorkflow) CanTransition(from, to OrderStatus) bool {
	for _, n := range w.transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in s may still be cancelled: every
// status short of completed or cancelled.
func (w OrderWorkflow) Cancellable(s OrderStatus) bool {
	return !w.Terminal(s)
}
