package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItems() []Item {
	return []Item{{ProductID: "p1", Quantity: 2, UnitPrice: 100}}
}

func TestNewOrder_ComputesTotalAndStartsPending(t *testing.T) {
	o, err := NewOrder("cust_1", validItems())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, 200.0, o.Total)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestNewOrder_RejectsEmptyCustomerID(t *testing.T) {
	_, err := NewOrder("", validItems())
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_RejectsNoItems(t *testing.T) {
	_, err := NewOrder("cust_1", nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_RejectsNonPositiveQuantityOrPrice(t *testing.T) {
	_, err := NewOrder("cust_1", []Item{{ProductID: "p1", Quantity: 0, UnitPrice: 10}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("cust_1", []Item{{ProductID: "p1", Quantity: 1, UnitPrice: 0}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestOrder_StateMachine_PendingToConfirmed(t *testing.T) {
	o, err := NewOrder("cust_1", validItems())
	require.NoError(t, err)
	o.Confirm(time.Now())
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestOrder_StateMachine_PendingToRejected(t *testing.T) {
	o, err := NewOrder("cust_1", validItems())
	require.NoError(t, err)
	o.Reject(time.Now())
	assert.Equal(t, StatusRejected, o.Status)
}

func TestOrder_StateMachine_CancelFromAnyState(t *testing.T) {
	o, err := NewOrder("cust_1", validItems())
	require.NoError(t, err)
	o.Confirm(time.Now())
	o.Cancel(time.Now())
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestOrder_StateMachine_LastWriteWinsNoGuards(t *testing.T) {
	o, err := NewOrder("cust_1", validItems())
	require.NoError(t, err)
	o.Cancel(time.Now())
	o.Confirm(time.Now())
	assert.Equal(t, StatusConfirmed, o.Status, "last write wins: no guard against re-entering a prior terminal state")
}
