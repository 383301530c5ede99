package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestResolveLimitsWithoutSubscription(t *testing.T) {
	subs := &fakeSubscriptionStore{}
	svc := NewPlanService(subs, NewStorageQuotaService(newFakeQuotaStore(1000)), testPlanTable())

	limits, err := svc.ResolveLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, limits.PlanName)
	assert.Equal(t, int64(1000), limits.StorageLimitBytes)
	assert.Equal(t, int64(100), limits.MaxUploadBytes)
}

func TestResolveLimitsActiveSubscription(t *testing.T) {
	subs := &fakeSubscriptionStore{
		sub: &domain.Subscription{
			OwnerID: "u1",
			Plan:    domain.PlanPro,
			Status:  domain.SubscriptionActive,
		},
	}
	svc := NewPlanService(subs, NewStorageQuotaService(newFakeQuotaStore(1000)), testPlanTable())

	limits, err := svc.ResolveLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPro, limits.PlanName)
	assert.Equal(t, int64(100000), limits.StorageLimitBytes)
	assert.Equal(t, int64(10000), limits.MaxUploadBytes)
}

func TestResolveLimitsInactiveSubscriptionFallsBackToFree(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "canceled", status: domain.SubscriptionCanceled},
		{name: "past due", status: domain.SubscriptionPastDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &fakeSubscriptionStore{
				sub: &domain.Subscription{
					OwnerID: "u1",
					Plan:    domain.PlanBusiness,
					Status:  tt.status,
				},
			}
			svc := NewPlanService(subs, NewStorageQuotaService(newFakeQuotaStore(1000)), testPlanTable())

			limits, err := svc.ResolveLimits(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, domain.PlanFree, limits.PlanName)
			assert.Equal(t, int64(1000), limits.StorageLimitBytes)
		})
	}
}

func TestResolveLimitsUnknownPlanFallsBackToFree(t *testing.T) {
	subs := &fakeSubscriptionStore{
		sub: &domain.Subscription{
			OwnerID: "u1",
			Plan:    domain.PlanName("ENTERPRISE"),
			Status:  domain.SubscriptionActive,
		},
	}
	svc := NewPlanService(subs, NewStorageQuotaService(newFakeQuotaStore(1000)), testPlanTable())

	limits, err := svc.ResolveLimits(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, limits.PlanName)
	assert.Equal(t, int64(1000), limits.StorageLimitBytes)
}

func TestApplyPlanChangeSyncsQuotaLimit(t *testing.T) {
	subs := &fakeSubscriptionStore{}
	quotas := newFakeQuotaStore(1000)
	quotaSvc := NewStorageQuotaService(quotas)
	svc := NewPlanService(subs, quotaSvc, testPlanTable())
	ctx := context.Background()

	err := svc.ApplyPlanChange(ctx, "u1", domain.PlanPro, domain.SubscriptionActive)
	require.NoError(t, err)

	quota, err := quotas.GetQuota(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), quota.TotalBytesLimit)

	// Даунгрейд возвращает лимит FREE
	err = svc.ApplyPlanChange(ctx, "u1", domain.PlanPro, domain.SubscriptionCanceled)
	require.NoError(t, err)

	quota, err = quotas.GetQuota(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quota.TotalBytesLimit)
}

func TestNewPlanServiceDefaultsPlanTable(t *testing.T) {
	svc := NewPlanService(&fakeSubscriptionStore{}, NewStorageQuotaService(newFakeQuotaStore(0)), nil)

	plans := svc.Plans()
	require.Contains(t, plans, domain.PlanFree)
	require.Contains(t, plans, domain.PlanPro)
	require.Contains(t, plans, domain.PlanBusiness)
	assert.Less(t, plans[domain.PlanFree].TotalStorageBytes, plans[domain.PlanPro].TotalStorageBytes)
	assert.Less(t, plans[domain.PlanPro].TotalStorageBytes, plans[domain.PlanBusiness].TotalStorageBytes)
}
