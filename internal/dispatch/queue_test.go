package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

func TestQueueProcessesContactJobs(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	// Single worker per kind keeps job execution serialized for the fakes.
	queue := NewQueue(fx.handler, QueueConfig{ContactWorkers: 1, GroupWorkers: 1, QueueSize: 8})
	ctx := context.Background()
	queue.Start(ctx)

	for range 3 {
		if err := queue.EnqueueContact(ctx, contactJob("+998901234567")); err != nil {
			t.Fatalf("EnqueueContact() error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if len(fx.ledger.charges) != 3 {
		t.Fatalf("charges = %d, want 3", len(fx.ledger.charges))
	}
	if len(fx.gw.requests) != 3 {
		t.Fatalf("submits = %d, want 3", len(fx.gw.requests))
	}
}

func TestQueueAssignsJobIDs(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	queue := NewQueue(fx.handler, QueueConfig{ContactWorkers: 1, GroupWorkers: 1, QueueSize: 2})
	ctx := context.Background()
	queue.Start(ctx)

	job := contactJob("+998901234567")
	job.JobID = ""
	if err := queue.EnqueueContact(ctx, job); err != nil {
		t.Fatalf("EnqueueContact() error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if len(fx.ledger.charges) != 1 {
		t.Fatalf("charges = %d, want 1", len(fx.ledger.charges))
	}
}

func TestQueueDrainsAfterContextCancel(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	queue := NewQueue(fx.handler, QueueConfig{ContactWorkers: 1, GroupWorkers: 1, QueueSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)

	for range 5 {
		if err := queue.EnqueueContact(ctx, contactJob("+998901234567")); err != nil {
			t.Fatalf("EnqueueContact() error: %v", err)
		}
	}

	// Canceling the start context mimics a SIGTERM; accepted jobs must
	// still run to completion during Shutdown.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if len(fx.ledger.charges) != 5 {
		t.Fatalf("charges = %d, want all 5 accepted jobs billed", len(fx.ledger.charges))
	}
	if len(fx.gw.requests) != 5 {
		t.Fatalf("submits = %d, want 5", len(fx.gw.requests))
	}
}

func TestQueueRejectedJobDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	queue := NewQueue(fx.handler, QueueConfig{ContactWorkers: 1, GroupWorkers: 1, QueueSize: 8})
	ctx := context.Background()
	queue.Start(ctx)

	// No template for this body: the job is rejected but the worker loop
	// must keep serving the next job.
	bad := contactJob("+998901234567")
	bad.MessageBody = "unapproved text"
	if err := queue.EnqueueContact(ctx, bad); err != nil {
		t.Fatalf("EnqueueContact() error: %v", err)
	}
	if err := queue.EnqueueContact(ctx, contactJob("+998901234567")); err != nil {
		t.Fatalf("EnqueueContact() error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if len(fx.ledger.charges) != 1 {
		t.Fatalf("charges = %d, want only the valid job billed", len(fx.ledger.charges))
	}
	if fx.ledger.charges[0].BalanceType != codes.BalanceTypeIndividual {
		t.Fatalf("unexpected charge: %+v", fx.ledger.charges[0])
	}
}
