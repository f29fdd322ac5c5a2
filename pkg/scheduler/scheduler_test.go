package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestAddValidatesExpression verifies cron expression validation at
// registration time
func TestAddValidatesExpression(t *testing.T) {
	s := New()

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{
			name: "valid every five minutes",
			job:  Job{Name: "sweep", Expr: "*/5 * * * *", Run: func(ctx context.Context) error { return nil }},
		},
		{
			name:    "invalid expression",
			job:     Job{Name: "bad", Expr: "not-cron", Run: func(ctx context.Context) error { return nil }},
			wantErr: true,
		},
		{
			name:    "missing name",
			job:     Job{Expr: "* * * * *", Run: func(ctx context.Context) error { return nil }},
			wantErr: true,
		},
		{
			name:    "missing run",
			job:     Job{Name: "empty", Expr: "* * * * *"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.job)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add(%s) error = %v, wantErr %v", tt.job.Name, err, tt.wantErr)
			}
		})
	}

	if got := s.Jobs(); len(got) != 1 || got[0] != "sweep" {
		t.Errorf("Jobs() = %v, want [sweep]", got)
	}
}

// TestTickRunsDueJobs verifies due jobs fire and errors stay contained
func TestTickRunsDueJobs(t *testing.T) {
	s := New()
	var ran atomic.Int32

	if err := s.Add(Job{
		Name: "always",
		Expr: "* * * * *",
		Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Job{
		Name: "never",
		Expr: "0 0 29 2 *", // Feb 29 midnight, not the test instant
		Run: func(ctx context.Context) error {
			t.Error("job should not be due")
			return nil
		},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// A minute-aligned reference instant on a non-leap day.
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	s.tick(context.Background(), now)

	deadline := time.After(time.Second)
	for ran.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("due job never ran")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
