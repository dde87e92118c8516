package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		StatusPending:        {StatusAccepted, StatusCancelled},
		StatusAccepted:       {StatusPreparing, StatusCancelled},
		StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
		StatusReadyForPickup: {StatusInTransit, StatusCancelled},
		StatusInTransit:      {StatusDelivered, StatusCancelled},
		StatusDelivered:      {StatusCancelled},
		StatusCancelled:      {StatusPending, StatusAccepted},
	}
	all := []OrderStatus{
		StatusPending, StatusAccepted, StatusPreparing, StatusReadyForPickup,
		StatusInTransit, StatusDelivered, StatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
		assert.ElementsMatch(t, allowed[from], AllowedNext(from))
	}

	assert.False(t, CanTransition(StatusPending, StatusPreparing))
	assert.False(t, CanTransition("BOGUS", StatusPending))
}

func TestAllowedNext_ReturnsCopy(t *testing.T) {
	next := AllowedNext(StatusPending)
	next[0] = StatusDelivered
	assert.Equal(t, StatusAccepted, AllowedNext(StatusPending)[0])
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("READY_FOR_PICKUP")
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForPickup, st)
	assert.Equal(t, "Ready for pickup", st.Label())

	_, err = ParseOrderStatus("ready_for_pickup")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestPriorStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := PriorStatus([]StatusLog{{Status: StatusPending, CreatedAt: now}})
	assert.ErrorIs(t, err, ErrNoPriorStatus)

	prior, err := PriorStatus([]StatusLog{
		{Seq: 1, Status: StatusPending, CreatedAt: now},
		{Seq: 2, Status: StatusAccepted, CreatedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, prior)
}

func TestFees_Totals(t *testing.T) {
	fees := Fees{
		DeliveryFee:       decimal.RequireFromString("2.50"),
		ServiceFeePercent: decimal.RequireFromString("5"),
	}
	delivery, service, total := fees.Totals(decimal.RequireFromString("12.30"))

	assert.Equal(t, "2.50", delivery.StringFixed(2))
	assert.Equal(t, "0.62", service.StringFixed(2))
	assert.Equal(t, "15.42", total.StringFixed(2))
}
