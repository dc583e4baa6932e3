package server

import (
	"context"
	"fmt"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// receiveReport verifies a Flag activity and records a report against
// the resolved post or comment. Redelivered reports are deduplicated by
// the activity's own IRI.
func (ai *ActivityInbox) receiveReport(ctx context.Context, report *activity.Report) error {
	telemetry.Increment("report_requests", 1)

	reason, err := report.Reason()
	if err != nil {
		return fmt.Errorf("%w: %s", fetch.ErrNotFound, err)
	}

	if existing, err := ai.store.FindReport(report.ID); err != nil {
		return err
	} else if existing != nil {
		telemetry.Trace("duplicate report [%s]", report.ID)
		return nil
	}

	object, err := ai.resolveReportObject(ctx, &report.Object)
	if err != nil {
		return err
	}

	// Reports addressed to one of our communities require the reporter
	// to pass the community checks; reports to the site actor don't.
	if len(report.To) > 0 {
		if community, err := ai.store.FindCommunity(report.To[0]); err != nil {
			return err
		} else if community != nil {
			if _, err := ai.verifyPersonInCommunity(ctx, report.Actor, community); err != nil {
				return err
			}
		}
	}

	creator, err := ai.verifyPerson(ctx, report.Actor)
	if err != nil {
		return err
	}

	row := &storage.Report{
		ID:        report.ID,
		CreatorID: creator.ID,
		ObjectID:  object.IRI(),
		Reason:    reason,
	}
	if object.Post != nil {
		row.ObjectType = storage.ReportedPost
	} else {
		row.ObjectType = storage.ReportedComment
	}
	return ai.store.SaveReport(row)
}

// resolveReportObject handles the two report formats: a direct object id
// dereferences as usual; a candidate list is tried in order and the
// first URL that resolves to a reportable object wins. Candidates that
// fail are skipped, never retried all-or-nothing.
func (ai *ActivityInbox) resolveReportObject(ctx context.Context, obj *activity.ReportObject) (*fetch.PostOrComment, error) {
	if obj.ID != "" {
		return ai.fetcher.DereferencePostOrComment(ctx, obj.ID)
	}
	for _, candidate := range obj.Candidates {
		resolved, err := ai.fetcher.DereferencePostOrComment(ctx, candidate)
		if err == nil {
			return resolved, nil
		}
		telemetry.Trace("report candidate [%s] did not resolve", candidate)
	}
	return nil, fmt.Errorf("%w: no report candidate resolved", fetch.ErrNotFound)
}
