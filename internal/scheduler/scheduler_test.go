package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"nationsim/internal/services"
)

type stubLister struct {
	ids []int64
	err error
}

func (s stubLister) ListDueIDs(context.Context) ([]int64, error) {
	return s.ids, s.err
}

type stubRunner struct {
	executed []int64
	outcomes map[int64]services.ExecuteOutcome
	errs     map[int64]error
}

func (s *stubRunner) Execute(_ context.Context, agreementID int64) (services.ExecuteOutcome, error) {
	s.executed = append(s.executed, agreementID)
	if err := s.errs[agreementID]; err != nil {
		return services.ExecuteOutcome{}, err
	}
	return s.outcomes[agreementID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickExecutesAllDue(t *testing.T) {
	runner := &stubRunner{outcomes: map[int64]services.ExecuteOutcome{
		1: {Executed: true},
		2: {Executed: true},
	}}
	sched := New(stubLister{ids: []int64{1, 2}}, runner, 0, testLogger())
	sched.Tick(context.Background())
	if len(runner.executed) != 2 || runner.executed[0] != 1 || runner.executed[1] != 2 {
		t.Fatalf("expected executions for 1 and 2, got %v", runner.executed)
	}
}

func TestTickContinuesPastFailure(t *testing.T) {
	runner := &stubRunner{
		outcomes: map[int64]services.ExecuteOutcome{3: {Executed: true}},
		errs:     map[int64]error{1: errors.New("boom")},
	}
	sched := New(stubLister{ids: []int64{1, 3}}, runner, 0, testLogger())
	sched.Tick(context.Background())
	if len(runner.executed) != 2 {
		t.Fatalf("expected both agreements attempted, got %v", runner.executed)
	}
}

func TestTickSurvivesListError(t *testing.T) {
	runner := &stubRunner{}
	sched := New(stubLister{err: errors.New("db down")}, runner, 0, testLogger())
	sched.Tick(context.Background())
	if len(runner.executed) != 0 {
		t.Fatalf("expected no executions, got %v", runner.executed)
	}
}
