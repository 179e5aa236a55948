package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptray/cliptrayd/internal/model"
)

func TestPaymentHasActivePlan(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo(newTestDB(t))

	active, err := repo.HasActivePlan(ctx, "uid-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, repo.Record(ctx, &model.Payment{
		FirebaseUID: "uid-1",
		Amount:      900,
		Currency:    "usd",
		Status:      model.PaymentUnpaid,
	}))
	active, err = repo.HasActivePlan(ctx, "uid-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, repo.Record(ctx, &model.Payment{
		FirebaseUID: "uid-1",
		Amount:      900,
		Currency:    "usd",
		Status:      model.PaymentPaid,
		Reference:   "inv_001",
	}))
	active, err = repo.HasActivePlan(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, active)

	// another identity stays on the free tier
	active, err = repo.HasActivePlan(ctx, "uid-2")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestPaymentListByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo(newTestDB(t))

	require.NoError(t, repo.Record(ctx, &model.Payment{FirebaseUID: "uid-1", Status: model.PaymentPaid}))
	require.NoError(t, repo.Record(ctx, &model.Payment{FirebaseUID: "uid-1", Status: model.PaymentFailed}))
	require.NoError(t, repo.Record(ctx, &model.Payment{FirebaseUID: "uid-2", Status: model.PaymentPaid}))

	payments, err := repo.ListByUser(ctx, "uid-1")
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}
