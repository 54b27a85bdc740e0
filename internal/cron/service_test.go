package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceRunsRegisteredJob(t *testing.T) {
	s := NewService()
	ran := make(chan struct{}, 1)
	s.Register("tick", "* * * * * *", func() error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if state, ok := s.State("tick"); ok && state.LastStatus == "ok" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("job state not recorded as ok")
}

func TestServiceRecordsJobError(t *testing.T) {
	s := NewService()
	s.Register("failing", "* * * * * *", func() error {
		return errors.New("rollup broken")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if state, ok := s.State("failing"); ok {
			if state.LastStatus != "error" || state.LastError == "" {
				t.Fatalf("state = %+v", state)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never ran")
}

func TestServiceRejectsBadExpr(t *testing.T) {
	s := NewService()
	s.Register("bad", "not a cron expr", func() error { return nil })

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestServiceStateUnknownJob(t *testing.T) {
	s := NewService()
	if _, ok := s.State("missing"); ok {
		t.Error("expected no state for unregistered job")
	}
}
