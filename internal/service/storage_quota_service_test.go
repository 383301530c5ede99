package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustUsedSpace(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	// Квота создается при первом обращении
	_, err := svc.GetQuota(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.AdjustUsedSpace(ctx, "u1", 100))
	require.NoError(t, svc.AdjustUsedSpace(ctx, "u1", -40))
	assert.Equal(t, int64(60), quotas.used("u1"))

	// Нулевая дельта не трогает хранилище
	require.NoError(t, svc.AdjustUsedSpace(ctx, "u1", 0))
	assert.Equal(t, int64(60), quotas.used("u1"))
}

func TestAdjustUsedSpaceNeverGoesNegative(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	_, err := svc.GetQuota(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.AdjustUsedSpace(ctx, "u1", 10))
	require.NoError(t, svc.AdjustUsedSpace(ctx, "u1", -500))
	assert.Zero(t, quotas.used("u1"))
}

func TestAdjustUsedSpaceConcurrent(t *testing.T) {
	quotas := newFakeQuotaStore(1000000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	_, err := svc.GetQuota(ctx, "u1")
	require.NoError(t, err)

	// Стартуем с запасом, чтобы декременты не упирались в ноль и
	// итоговая сумма сходилась детерминированно
	quotas.setUsed("u1", 100000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = svc.AdjustUsedSpace(ctx, "u1", 100)
		}()
		go func() {
			defer wg.Done()
			_ = svc.AdjustUsedSpace(ctx, "u1", -40)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100000+50*100-50*40), quotas.used("u1"))
}

func TestGetQuotaInfo(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	quotas.setUsed("u1", 250)

	info, err := svc.GetQuotaInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.TotalSpace)
	assert.Equal(t, int64(250), info.UsedSpace)
	assert.Equal(t, int64(750), info.AvailableSpace)
	assert.InDelta(t, 25.0, info.UsagePercent, 0.01)
}

func TestGetQuotaInfoClampsOveruse(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	// Даунгрейд плана мог оставить занято больше лимита
	quotas.setUsed("u1", 1500)

	info, err := svc.GetQuotaInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, info.AvailableSpace)
	assert.InDelta(t, 150.0, info.UsagePercent, 0.01)
}

func TestReconcileFixesDrift(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	quotas.setUsed("u1", 700)
	quotas.recomputed["u1"] = 520

	result, err := svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), result.PreviousBytes)
	assert.Equal(t, int64(520), result.RecomputedBytes)
	assert.Equal(t, int64(-180), result.DriftBytes)
	assert.Equal(t, int64(520), quotas.used("u1"))
}

func TestReconcileNoDrift(t *testing.T) {
	quotas := newFakeQuotaStore(1000)
	svc := NewStorageQuotaService(quotas)
	ctx := context.Background()

	quotas.setUsed("u1", 300)
	quotas.recomputed["u1"] = 300

	result, err := svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, result.DriftBytes)
}

func TestUpdateQuotaLimitRejectsNegative(t *testing.T) {
	svc := NewStorageQuotaService(newFakeQuotaStore(1000))

	err := svc.UpdateQuotaLimit(context.Background(), "u1", -1)
	require.Error(t, err)
}
