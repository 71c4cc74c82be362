// Package reconcile implements the property diff between two portals and the
// creation of whatever the target is missing. It never modifies a definition
// that already exists in the target; name collisions are reported for manual
// review instead.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
	"github.com/mayple/hubspot-portal-syncer/internal/hubspot"
)

// PortalAPI is the capability the reconciler needs from a portal. It is
// satisfied by *hubspot.Client and by test fakes.
type PortalAPI interface {
	ListProperties(ctx context.Context, objectType domain.ObjectType) ([]domain.Property, error)
	CreateProperty(ctx context.Context, objectType domain.ObjectType, p *domain.Property) (*domain.Property, error)
	ListGroups(ctx context.Context, objectType domain.ObjectType) ([]domain.PropertyGroup, error)
	CreateGroup(ctx context.Context, objectType domain.ObjectType, g *domain.PropertyGroup) (*domain.PropertyGroup, error)
}

// Compile-time interface check against the real client.
var _ PortalAPI = (*hubspot.Client)(nil)

// ListingError indicates a portal's property or group listing could not be
// retrieved. The whole (pair, object type) combination is aborted when this
// happens; other combinations are unaffected.
type ListingError struct {
	Portal     string // "source" or "target"
	ObjectType domain.ObjectType
	What       string // "properties" or "property groups"
	Err        error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	return fmt.Sprintf("list %s %s from %s portal: %v", e.ObjectType, e.What, e.Portal, e.Err)
}

// Unwrap returns the underlying API error.
func (e *ListingError) Unwrap() error { return e.Err }

// Failure records one definition the target portal refused to create.
type Failure struct {
	Name string
	Err  error
}

// Result holds the outcome of reconciling one object type across one portal
// pair. A name appears in at most one of Created, Failed, and ManualReview.
type Result struct {
	Pair       string
	ObjectType domain.ObjectType

	// Err is set when a listing failed. No other field is populated then.
	Err error

	GroupsCreated      []string
	GroupsFailed       []Failure
	GroupsManualReview []string
	GroupsTargetOnly   []string

	Created           []string
	Failed            []Failure
	ManualReview      []string
	SkippedCalculated []string
	TargetOnly        []string
}

// Sync reconciles one object type from the source portal to the target
// portal. Groups are handled before properties since a property create can
// reference a group that has to exist first. With dryRun set, missing
// definitions are recorded under Created but no create calls are issued.
//
// A creation failure is isolated to its definition; the remaining source
// sequence is still processed, in source order.
func Sync(ctx context.Context, source, target PortalAPI, pair string, objectType domain.ObjectType, dryRun bool) Result {
	res := Result{Pair: pair, ObjectType: objectType}
	log := slog.With("pair", pair, "objectType", objectType.String())

	log.Info("syncing properties and groups")

	srcGroups, err := source.ListGroups(ctx, objectType)
	if err != nil {
		res.Err = &ListingError{Portal: "source", ObjectType: objectType, What: "property groups", Err: err}
		return res
	}
	dstGroups, err := target.ListGroups(ctx, objectType)
	if err != nil {
		res.Err = &ListingError{Portal: "target", ObjectType: objectType, What: "property groups", Err: err}
		return res
	}
	srcProps, err := source.ListProperties(ctx, objectType)
	if err != nil {
		res.Err = &ListingError{Portal: "source", ObjectType: objectType, What: "properties", Err: err}
		return res
	}
	dstProps, err := target.ListProperties(ctx, objectType)
	if err != nil {
		res.Err = &ListingError{Portal: "target", ObjectType: objectType, What: "properties", Err: err}
		return res
	}

	syncGroups(ctx, target, objectType, srcGroups, dstGroups, dryRun, &res, log)
	syncProperties(ctx, target, objectType, srcProps, dstProps, dryRun, &res, log)

	log.Info("sync finished",
		"created", len(res.Created)+len(res.GroupsCreated),
		"failed", len(res.Failed)+len(res.GroupsFailed),
		"manualReview", len(res.ManualReview)+len(res.GroupsManualReview),
	)
	return res
}

func syncGroups(ctx context.Context, target PortalAPI, objectType domain.ObjectType,
	src, dst []domain.PropertyGroup, dryRun bool, res *Result, log *slog.Logger) {

	dstNames := make(map[string]bool, len(dst))
	for _, g := range dst {
		dstNames[g.Name] = true
	}

	// Source order is preserved so reports stay reproducible.
	for _, g := range src {
		if domain.HubSpotOwned(g.Name) {
			log.Debug("skipping HubSpot-owned property group", "name", g.Name)
			continue
		}
		if dstNames[g.Name] {
			res.GroupsManualReview = append(res.GroupsManualReview, g.Name)
			continue
		}
		if dryRun {
			res.GroupsCreated = append(res.GroupsCreated, g.Name)
			continue
		}

		log.Info("creating property group", "name", g.Name)
		create := domain.PropertyGroup{
			Name:         g.Name,
			Label:        g.Label,
			DisplayOrder: g.DisplayOrder,
		}
		if _, err := target.CreateGroup(ctx, objectType, &create); err != nil {
			res.GroupsFailed = append(res.GroupsFailed, Failure{Name: g.Name, Err: err})
			continue
		}
		res.GroupsCreated = append(res.GroupsCreated, g.Name)
	}

	srcNames := make(map[string]bool, len(src))
	for _, g := range src {
		srcNames[g.Name] = true
	}
	for _, g := range dst {
		if domain.HubSpotOwned(g.Name) {
			continue
		}
		if !srcNames[g.Name] {
			res.GroupsTargetOnly = append(res.GroupsTargetOnly, g.Name)
		}
	}
}

func syncProperties(ctx context.Context, target PortalAPI, objectType domain.ObjectType,
	src, dst []domain.Property, dryRun bool, res *Result, log *slog.Logger) {

	dstNames := make(map[string]bool, len(dst))
	for _, p := range dst {
		dstNames[p.Name] = true
	}

	for _, p := range src {
		if domain.HubSpotOwned(p.Name) {
			log.Debug("skipping HubSpot-owned property", "name", p.Name)
			continue
		}
		if dstNames[p.Name] {
			res.ManualReview = append(res.ManualReview, p.Name)
			continue
		}
		if p.Calculated {
			// Calculated properties carry formulas the API will not accept
			// on create; a human has to recreate them.
			res.SkippedCalculated = append(res.SkippedCalculated, p.Name)
			continue
		}
		if dryRun {
			res.Created = append(res.Created, p.Name)
			continue
		}

		log.Info("creating property", "name", p.Name)
		create := createPayload(p)
		if _, err := target.CreateProperty(ctx, objectType, &create); err != nil {
			res.Failed = append(res.Failed, Failure{Name: p.Name, Err: err})
			continue
		}
		res.Created = append(res.Created, p.Name)
	}

	srcNames := make(map[string]bool, len(src))
	for _, p := range src {
		srcNames[p.Name] = true
	}
	for _, p := range dst {
		if domain.HubSpotOwned(p.Name) {
			continue
		}
		if !srcNames[p.Name] {
			res.TargetOnly = append(res.TargetOnly, p.Name)
		}
	}
}

// createPayload strips the server-assigned fields from a listed property so
// the remainder is a valid create request.
func createPayload(p domain.Property) domain.Property {
	p.CreatedAt = ""
	p.UpdatedAt = ""
	p.ArchivedAt = ""
	p.Archived = false
	p.ModificationMetadata = nil
	return p
}
