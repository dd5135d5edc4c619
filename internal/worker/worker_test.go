package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysys/payment-service/internal/application"
	"github.com/paysys/payment-service/internal/domain"
	"github.com/paysys/payment-service/internal/metrics"
	"github.com/paysys/payment-service/internal/storetest"
	"github.com/paysys/payment-service/internal/worker"
)

func TestPoolStopsOnCancel(t *testing.T) {
	store := storetest.NewMemStore()
	proc := newProcessor(store, storetest.NewFakeGateway(), metrics.NewRegistry(), defaultPolicy())

	pool := worker.NewPool(proc, worker.Config{
		Workers:      2,
		PollInterval: 5 * time.Millisecond,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPoolDrainsPendingTasks(t *testing.T) {
	store := storetest.NewMemStore()
	reg := metrics.NewRegistry()
	gw := storetest.NewFakeGateway(application.ChargeResult{Success: true})
	proc := newProcessor(store, gw, reg, defaultPolicy())

	user := store.SeedUser(dec("1000"))
	var taskIDs []int64
	for i := 0; i < 5; i++ {
		task := store.SeedPendingPayment(user.ID, dec("10"), dec("0.20"), domain.TransactionTypeDeposit)
		taskIDs = append(taskIDs, task.ID)
	}

	pool := worker.NewPool(proc, worker.Config{
		Workers:      3,
		PollInterval: 5 * time.Millisecond,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return reg.Snapshot()[metrics.PaymentsSuccessTotal] == 5
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	for _, id := range taskIDs {
		assert.Equal(t, domain.TaskStatusDone, store.Task(id).Status)
	}
	// 5 deposits of 10 with 0.20 commission each.
	assert.True(t, store.User(user.ID).Balance.Equal(dec("1049.00")),
		"balance = %s", store.User(user.ID).Balance)
}
