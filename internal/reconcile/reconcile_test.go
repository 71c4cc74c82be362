package reconcile_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
	"github.com/mayple/hubspot-portal-syncer/internal/reconcile"
)

// fakePortal implements reconcile.PortalAPI in memory. It is safe for
// concurrent use since the runner may process combinations in parallel.
type fakePortal struct {
	mu     sync.Mutex
	props  []domain.Property
	groups []domain.PropertyGroup

	listPropsErr  error
	listGroupsErr error
	createErr     map[string]error

	createdProps  []string
	createdGroups []string
}

func (f *fakePortal) ListProperties(ctx context.Context, objectType domain.ObjectType) ([]domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPropsErr != nil {
		return nil, f.listPropsErr
	}
	return slices.Clone(f.props), nil
}

func (f *fakePortal) CreateProperty(ctx context.Context, objectType domain.ObjectType, p *domain.Property) (*domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[p.Name]; err != nil {
		return nil, err
	}
	f.createdProps = append(f.createdProps, p.Name)
	f.props = append(f.props, *p)
	return p, nil
}

func (f *fakePortal) ListGroups(ctx context.Context, objectType domain.ObjectType) ([]domain.PropertyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listGroupsErr != nil {
		return nil, f.listGroupsErr
	}
	return slices.Clone(f.groups), nil
}

func (f *fakePortal) CreateGroup(ctx context.Context, objectType domain.ObjectType, g *domain.PropertyGroup) (*domain.PropertyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr["group:"+g.Name]; err != nil {
		return nil, err
	}
	f.createdGroups = append(f.createdGroups, g.Name)
	f.groups = append(f.groups, *g)
	return g, nil
}

func prop(name string) domain.Property {
	return domain.Property{
		Name:      name,
		Label:     name,
		Type:      "string",
		FieldType: "text",
		GroupName: "companyinformation",
	}
}

func TestSync_CreatesMissingProperties(t *testing.T) {
	source := &fakePortal{props: []domain.Property{prop("industry"), prop("deal_source")}}
	target := &fakePortal{props: []domain.Property{prop("industry")}}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeCompany, false)

	if res.Err != nil {
		t.Fatalf("Err = %v, want nil", res.Err)
	}
	if !slices.Equal(res.Created, []string{"deal_source"}) {
		t.Errorf("Created = %v, want [deal_source]", res.Created)
	}
	if !slices.Equal(res.ManualReview, []string{"industry"}) {
		t.Errorf("ManualReview = %v, want [industry]", res.ManualReview)
	}
	if len(res.Failed) != 0 {
		t.Errorf("Failed = %v, want empty", res.Failed)
	}
}

func TestSync_EmptyTargetCreatesAll(t *testing.T) {
	source := &fakePortal{props: []domain.Property{prop("a"), prop("b"), prop("c")}}
	target := &fakePortal{}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeContact, false)

	if !slices.Equal(res.Created, []string{"a", "b", "c"}) {
		t.Errorf("Created = %v, want [a b c]", res.Created)
	}
	if len(res.Failed) != 0 || len(res.ManualReview) != 0 {
		t.Errorf("Failed = %v, ManualReview = %v, want both empty", res.Failed, res.ManualReview)
	}
	if !slices.Equal(target.createdProps, []string{"a", "b", "c"}) {
		t.Errorf("target saw creations %v, want source order [a b c]", target.createdProps)
	}
}

func TestSync_IdenticalSetsCreateNothing(t *testing.T) {
	props := []domain.Property{prop("a"), prop("b")}
	source := &fakePortal{props: props}
	target := &fakePortal{props: props}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeDeal, false)

	if len(res.Created) != 0 || len(res.Failed) != 0 {
		t.Errorf("Created = %v, Failed = %v, want both empty", res.Created, res.Failed)
	}
	if !slices.Equal(res.ManualReview, []string{"a", "b"}) {
		t.Errorf("ManualReview = %v, want [a b]", res.ManualReview)
	}
}

func TestSync_CreationFailureIsIsolated(t *testing.T) {
	source := &fakePortal{props: []domain.Property{prop("p"), prop("q"), prop("r")}}
	target := &fakePortal{createErr: map[string]error{"q": errors.New("boom")}}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeTicket, false)

	if !slices.Equal(res.Created, []string{"p", "r"}) {
		t.Errorf("Created = %v, want [p r]", res.Created)
	}
	if len(res.Failed) != 1 || res.Failed[0].Name != "q" {
		t.Fatalf("Failed = %v, want exactly [q]", res.Failed)
	}
	for _, name := range res.Created {
		if name == res.Failed[0].Name {
			t.Errorf("name %q in both Created and Failed", name)
		}
	}
}

func TestSync_SkipsHubSpotOwned(t *testing.T) {
	source := &fakePortal{
		props:  []domain.Property{prop("hs_lead_status"), prop("custom_field")},
		groups: []domain.PropertyGroup{{Name: "hs_core", Label: "Core"}},
	}
	target := &fakePortal{props: []domain.Property{prop("hs_other")}}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeContact, false)

	if !slices.Equal(res.Created, []string{"custom_field"}) {
		t.Errorf("Created = %v, want [custom_field]", res.Created)
	}
	if len(res.GroupsCreated) != 0 {
		t.Errorf("GroupsCreated = %v, want empty", res.GroupsCreated)
	}
	// hs_other exists only in target but is HubSpot-owned, so it is not
	// reported either.
	if len(res.TargetOnly) != 0 {
		t.Errorf("TargetOnly = %v, want empty", res.TargetOnly)
	}
}

func TestSync_CalculatedPropertyNeedsManualCreation(t *testing.T) {
	calc := prop("score")
	calc.Calculated = true
	source := &fakePortal{props: []domain.Property{calc}}
	target := &fakePortal{}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeDeal, false)

	if len(res.Created) != 0 {
		t.Errorf("Created = %v, want empty", res.Created)
	}
	if !slices.Equal(res.SkippedCalculated, []string{"score"}) {
		t.Errorf("SkippedCalculated = %v, want [score]", res.SkippedCalculated)
	}
	if len(target.createdProps) != 0 {
		t.Errorf("target saw creations %v, want none", target.createdProps)
	}
}

func TestSync_ReportsTargetOnlyDefinitions(t *testing.T) {
	source := &fakePortal{props: []domain.Property{prop("a")}}
	target := &fakePortal{
		props:  []domain.Property{prop("a"), prop("stale_field")},
		groups: []domain.PropertyGroup{{Name: "old_group", Label: "Old"}},
	}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeCompany, false)

	if !slices.Equal(res.TargetOnly, []string{"stale_field"}) {
		t.Errorf("TargetOnly = %v, want [stale_field]", res.TargetOnly)
	}
	if !slices.Equal(res.GroupsTargetOnly, []string{"old_group"}) {
		t.Errorf("GroupsTargetOnly = %v, want [old_group]", res.GroupsTargetOnly)
	}
}

func TestSync_SyncsGroupsBeforeProperties(t *testing.T) {
	source := &fakePortal{
		props:  []domain.Property{prop("field")},
		groups: []domain.PropertyGroup{{Name: "custom_group", Label: "Custom"}},
	}
	target := &fakePortal{}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeContact, false)

	if !slices.Equal(res.GroupsCreated, []string{"custom_group"}) {
		t.Errorf("GroupsCreated = %v, want [custom_group]", res.GroupsCreated)
	}
	if len(target.createdGroups) != 1 || len(target.createdProps) != 1 {
		t.Fatalf("target creations groups=%v props=%v", target.createdGroups, target.createdProps)
	}
}

func TestSync_ListingFailureAbortsCombination(t *testing.T) {
	source := &fakePortal{listGroupsErr: errors.New("401 unauthorized")}
	target := &fakePortal{}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeContact, false)

	if res.Err == nil {
		t.Fatal("Err = nil, want ListingError")
	}
	var listErr *reconcile.ListingError
	if !errors.As(res.Err, &listErr) {
		t.Fatalf("Err = %T, want *ListingError", res.Err)
	}
	if listErr.Portal != "source" {
		t.Errorf("Portal = %q, want source", listErr.Portal)
	}
	if len(res.Created) != 0 || len(res.ManualReview) != 0 {
		t.Errorf("partial results recorded after listing failure: %+v", res)
	}
}

func TestSync_DryRunCreatesNothing(t *testing.T) {
	source := &fakePortal{
		props:  []domain.Property{prop("a"), prop("b")},
		groups: []domain.PropertyGroup{{Name: "g", Label: "G"}},
	}
	target := &fakePortal{props: []domain.Property{prop("a")}}

	res := reconcile.Sync(context.Background(), source, target, "a-to-b", domain.ObjectTypeCompany, true)

	if !slices.Equal(res.Created, []string{"b"}) {
		t.Errorf("Created = %v, want [b]", res.Created)
	}
	if !slices.Equal(res.GroupsCreated, []string{"g"}) {
		t.Errorf("GroupsCreated = %v, want [g]", res.GroupsCreated)
	}
	if len(target.createdProps) != 0 || len(target.createdGroups) != 0 {
		t.Errorf("dry run issued creations: props=%v groups=%v", target.createdProps, target.createdGroups)
	}
}
