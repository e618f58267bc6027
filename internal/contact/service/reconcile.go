package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linkage/internal/contact/models"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
)

// reconciliation is what one committed identify did to the graph.
type reconciliation struct {
	chain    *models.Chain
	created  *models.Contact
	survivor int64
	demoted  []int64
	relinked int64
}

func (r *reconciliation) outcome() string {
	switch {
	case len(r.demoted) > 0:
		return "merged"
	case r.created != nil && r.created.IsPrimary():
		return "created_primary"
	case r.created != nil:
		return "created_secondary"
	default:
		return "matched"
	}
}

func (r *reconciliation) events(now time.Time) []models.LinkEvent {
	var events []models.LinkEvent
	if r.created != nil {
		eventType := models.LinkEventSecondaryCreated
		if r.created.IsPrimary() {
			eventType = models.LinkEventPrimaryCreated
		}
		events = append(events, models.NewLinkEvent(eventType, r.created.ID, r.chain.PrimaryContactID, now))
	}
	if len(r.demoted) > 0 {
		merged := models.NewLinkEvent(models.LinkEventChainsMerged, r.survivor, r.chain.PrimaryContactID, now)
		merged.DemotedPrimaryIDs = r.demoted
		merged.RelinkedCount = r.relinked
		events = append(events, merged)
	}
	return events
}

// reconcile runs fetch → decide → create → merge → re-fetch inside one transaction
// that already holds the request's identifier keys.
func reconcile(ctx context.Context, store Store, ids models.Identifiers, now time.Time) (*reconciliation, error) {
	candidates, err := store.FindCandidates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	// The request clock is pinned at arrival; a request that waited on a lock
	// or a retry may hold an earlier instant than rows committed meanwhile.
	now = candidates.NotBefore(now)

	result := &reconciliation{}
	if candidates.NeedsNewContact(ids) {
		created, err := createContact(ctx, store, candidates, ids, now)
		if err != nil {
			return nil, err
		}
		result.created = created
		candidates = append(candidates, *created)
		models.SortOldestFirst(candidates)
	}

	if plan, ok := candidates.PlanMerge(); ok {
		relinked, err := store.Relink(ctx, plan.Survivor.ID, plan.Demoted, now)
		if err != nil {
			return nil, fmt.Errorf("merge chains into %d: %w", plan.Survivor.ID, err)
		}
		candidates = plan.Apply(candidates)
		result.survivor = plan.Survivor.ID
		result.demoted = plan.Demoted
		result.relinked = relinked
	}

	primary, err := resolvePrimary(ctx, store, candidates)
	if err != nil {
		return nil, err
	}
	members, err := store.FindChain(ctx, primary.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch chain %d: %w", primary.ID, err)
	}
	chain, err := models.BuildChain(*primary, members)
	if err != nil {
		return nil, err
	}
	result.chain = chain
	return result, nil
}

// createContact inserts a primary for an unseen identity, or a secondary
// linked to the primary of the oldest chain touched by the request.
func createContact(ctx context.Context, store Store, candidates models.Candidates, ids models.Identifiers, now time.Time) (*models.Contact, error) {
	var (
		contact *models.Contact
		err     error
	)
	if len(candidates) == 0 {
		contact, err = models.NewPrimaryContact(ids, now)
	} else {
		primary, resolveErr := resolvePrimary(ctx, store, candidates)
		if resolveErr != nil {
			return nil, resolveErr
		}
		contact, err = models.NewSecondaryContact(ids, *primary, now)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("create %s contact: %w", contact.LinkPrecedence, err)
	}
	return contact, nil
}

// resolvePrimary returns the primary of the oldest chain in candidates. A
// missing referenced primary is a data-integrity fault and is surfaced as such.
func resolvePrimary(ctx context.Context, store Store, candidates models.Candidates) (*models.Contact, error) {
	oldest, ok := candidates.Oldest()
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot resolve primary of an empty set")
	}
	if oldest.IsPrimary() {
		return &oldest, nil
	}
	if oldest.LinkedID == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("secondary contact %d has no linked primary", oldest.ID))
	}
	primary, err := store.FindByID(ctx, *oldest.LinkedID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("primary contact %d referenced by %d", *oldest.LinkedID, oldest.ID))
		}
		return nil, fmt.Errorf("fetch primary %d: %w", *oldest.LinkedID, err)
	}
	if !primary.IsPrimary() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("contact %d links to secondary %d", oldest.ID, primary.ID))
	}
	return primary, nil
}
