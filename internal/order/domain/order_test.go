package domain

import (
	"testing"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusUnderReview},
		{StatusPending, StatusAwaitingDelivery},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusCancelled},
		{StatusUnderReview, StatusCompleted},
		{StatusUnderReview, StatusCancelled},
		{StatusAwaitingDelivery, StatusCompleted},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]Status{
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusCompleted},
		{StatusAwaitingDelivery, StatusCancelled},
		{StatusUnderReview, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestTransitionTo(t *testing.T) {
	now := time.Now()
	o := Order{ID: "o1", Status: StatusCompleted}
	err := o.TransitionTo(StatusCancelled, now)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, StatusCompleted, o.Status)

	o = Order{ID: "o2", Status: StatusPending}
	require.NoError(t, o.TransitionTo(StatusUnderReview, now))
	assert.Equal(t, StatusUnderReview, o.Status)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestExpired(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := Order{ExpiresAt: &at}
	assert.False(t, o.Expired(at.Add(-time.Second)))
	assert.True(t, o.Expired(at))
	assert.False(t, Order{}.Expired(at))
}

func TestReviewDecisionValidate(t *testing.T) {
	t.Run("reject needs a reason", func(t *testing.T) {
		d := ReviewDecision{OrderID: "o", AdminID: "a", Action: ReviewReject, Reason: "  "}
		require.ErrorIs(t, d.Validate(), apperr.ErrInvalidInput)
	})
	t.Run("unknown action", func(t *testing.T) {
		d := ReviewDecision{OrderID: "o", AdminID: "a", Action: "escalate"}
		require.ErrorIs(t, d.Validate(), apperr.ErrInvalidInput)
	})
	t.Run("approve without reason", func(t *testing.T) {
		d := ReviewDecision{OrderID: "o", AdminID: "a", Action: ReviewApprove}
		require.NoError(t, d.Validate())
	})
}
