package reconcile

import (
	"fmt"
	"io"
)

// Report aggregates the results of a whole run across all portal pairs and
// object types. Rendering is the only place the tool formats text; the core
// deals in values.
type Report struct {
	DryRun  bool
	Results []Result
}

// Totals returns the run-wide counts of created and failed definitions,
// groups included.
func (r *Report) Totals() (created, failed int) {
	for _, res := range r.Results {
		created += len(res.Created) + len(res.GroupsCreated)
		failed += len(res.Failed) + len(res.GroupsFailed)
	}
	return created, failed
}

// HasFailures reports whether any listing or creation failed. Manual-review
// entries alone do not count as failures.
func (r *Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Err != nil || len(res.Failed) > 0 || len(res.GroupsFailed) > 0 {
			return true
		}
	}
	return false
}

// Messages returns the manual-attention lines for one result, formatted the
// same way for every category: "pair (objectType): message".
func (res *Result) Messages() []string {
	prefix := fmt.Sprintf("%s (%s)", res.Pair, res.ObjectType)
	var msgs []string

	add := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf("%s: %s", prefix, fmt.Sprintf(format, args...)))
	}

	if res.Err != nil {
		add("aborted: %v", res.Err)
		return msgs
	}

	for _, f := range res.GroupsFailed {
		add("failed creating property group %s: %v", f.Name, f.Err)
	}
	for _, name := range res.GroupsManualReview {
		add("property group %s already exists in target - sync it manually", name)
	}
	for _, name := range res.GroupsTargetOnly {
		add("property group %s is only in target - delete it manually or sync the other way", name)
	}
	for _, f := range res.Failed {
		add("failed creating property %s: %v", f.Name, f.Err)
	}
	for _, name := range res.SkippedCalculated {
		add("property %s is calculated - create it manually", name)
	}
	for _, name := range res.ManualReview {
		add("property %s already exists in target - sync it manually", name)
	}
	for _, name := range res.TargetOnly {
		add("property %s is only in target - delete it manually or sync the other way", name)
	}

	return msgs
}

// Render writes the human-readable run summary.
func (r *Report) Render(w io.Writer) {
	verb := "created"
	if r.DryRun {
		verb = "would create"
	}

	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s (%s): aborted: %v\n", res.Pair, res.ObjectType, res.Err)
			continue
		}
		fmt.Fprintf(w, "%s (%s): %s %d properties and %d groups, %d failed, %d need review\n",
			res.Pair, res.ObjectType, verb,
			len(res.Created), len(res.GroupsCreated),
			len(res.Failed)+len(res.GroupsFailed),
			len(res.ManualReview)+len(res.GroupsManualReview)+len(res.SkippedCalculated)+len(res.TargetOnly),
		)
	}

	created, failed := r.Totals()
	fmt.Fprintf(w, "\nTotal: %s %d, failed %d\n", verb, created, failed)
	if r.DryRun {
		fmt.Fprintln(w, "Dry run - no changes were applied.")
	}

	var msgs []string
	for i := range r.Results {
		msgs = append(msgs, r.Results[i].Messages()...)
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "Nothing requires manual attention.")
		return
	}

	fmt.Fprintln(w, "\nRequires manual attention:")
	for _, m := range msgs {
		fmt.Fprintln(w, m)
	}
}
