package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	sweep := &stubJob{name: "payout_sweep"}
	cancel := &stubJob{name: "unpaid_order_cancel"}
	registry.Register(sweep)
	registry.Register(cancel)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != sweep || jobs[1] != cancel {
		t.Fatalf("jobs returned out of order")
	}
	// caller must not be able to mutate the internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryReplacesDuplicateNames(t *testing.T) {
	first := &stubJob{name: "payout_sweep"}
	second := &stubJob{name: "payout_sweep"}
	registry := NewRegistry(first, nil, second)
	jobs := registry.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected duplicate name to replace, got %d jobs", len(jobs))
	}
	if jobs[0] != second {
		t.Fatalf("expected the later registration to win")
	}
}
