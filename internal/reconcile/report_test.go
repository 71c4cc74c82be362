package reconcile_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
	"github.com/mayple/hubspot-portal-syncer/internal/reconcile"
)

func TestResult_Messages(t *testing.T) {
	res := reconcile.Result{
		Pair:              "prod-to-staging",
		ObjectType:        domain.ObjectTypeContact,
		Failed:            []reconcile.Failure{{Name: "lead_score", Err: errors.New("invalid type")}},
		ManualReview:      []string{"industry"},
		SkippedCalculated: []string{"score"},
		TargetOnly:        []string{"stale"},
	}

	msgs := res.Messages()
	want := []string{
		"prod-to-staging (contact): failed creating property lead_score: invalid type",
		"prod-to-staging (contact): property score is calculated - create it manually",
		"prod-to-staging (contact): property industry already exists in target - sync it manually",
		"prod-to-staging (contact): property stale is only in target - delete it manually or sync the other way",
	}
	if len(msgs) != len(want) {
		t.Fatalf("len(msgs) = %d, want %d: %v", len(msgs), len(want), msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestResult_MessagesForAbortedCombination(t *testing.T) {
	res := reconcile.Result{
		Pair:       "prod-to-staging",
		ObjectType: domain.ObjectTypeDeal,
		Err:        errors.New("list failed"),
		// Populated fields must be ignored once Err is set.
		ManualReview: []string{"ignored"},
	}

	msgs := res.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "aborted") {
		t.Errorf("msgs[0] = %q, want an aborted message", msgs[0])
	}
}

func TestReport_HasFailures(t *testing.T) {
	tests := []struct {
		name   string
		report reconcile.Report
		want   bool
	}{
		{
			name:   "clean run",
			report: reconcile.Report{Results: []reconcile.Result{{Created: []string{"a"}}}},
			want:   false,
		},
		{
			name:   "manual review only",
			report: reconcile.Report{Results: []reconcile.Result{{ManualReview: []string{"a"}}}},
			want:   false,
		},
		{
			name:   "creation failure",
			report: reconcile.Report{Results: []reconcile.Result{{Failed: []reconcile.Failure{{Name: "a"}}}}},
			want:   true,
		},
		{
			name:   "group creation failure",
			report: reconcile.Report{Results: []reconcile.Result{{GroupsFailed: []reconcile.Failure{{Name: "g"}}}}},
			want:   true,
		},
		{
			name:   "listing failure",
			report: reconcile.Report{Results: []reconcile.Result{{Err: errors.New("boom")}}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.HasFailures(); got != tt.want {
				t.Errorf("HasFailures() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReport_Totals(t *testing.T) {
	report := reconcile.Report{Results: []reconcile.Result{
		{Created: []string{"a", "b"}, GroupsCreated: []string{"g"}},
		{Failed: []reconcile.Failure{{Name: "c"}}},
	}}

	created, failed := report.Totals()
	if created != 3 {
		t.Errorf("created = %d, want 3", created)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestReport_Render(t *testing.T) {
	report := reconcile.Report{Results: []reconcile.Result{{
		Pair:         "prod-to-staging",
		ObjectType:   domain.ObjectTypeContact,
		Created:      []string{"deal_source"},
		ManualReview: []string{"industry"},
	}}}

	var buf strings.Builder
	report.Render(&buf)
	out := buf.String()

	if !strings.Contains(out, "prod-to-staging (contact)") {
		t.Errorf("output missing combination header:\n%s", out)
	}
	if !strings.Contains(out, "Requires manual attention:") {
		t.Errorf("output missing manual attention section:\n%s", out)
	}
	if !strings.Contains(out, "property industry already exists in target") {
		t.Errorf("output missing manual review line:\n%s", out)
	}
}

func TestReport_RenderDryRun(t *testing.T) {
	report := reconcile.Report{DryRun: true, Results: []reconcile.Result{{
		Pair:       "prod-to-staging",
		ObjectType: domain.ObjectTypeContact,
		Created:    []string{"deal_source"},
	}}}

	var buf strings.Builder
	report.Render(&buf)
	out := buf.String()

	if !strings.Contains(out, "would create") {
		t.Errorf("dry-run output should say \"would create\":\n%s", out)
	}
	if !strings.Contains(out, "no changes were applied") {
		t.Errorf("dry-run output should note nothing was applied:\n%s", out)
	}
}

func TestReport_RenderCleanRun(t *testing.T) {
	report := reconcile.Report{Results: []reconcile.Result{{
		Pair:       "prod-to-staging",
		ObjectType: domain.ObjectTypeContact,
		Created:    []string{"a"},
	}}}

	var buf strings.Builder
	report.Render(&buf)

	if !strings.Contains(buf.String(), "Nothing requires manual attention.") {
		t.Errorf("clean run should report nothing to do:\n%s", buf.String())
	}
}
