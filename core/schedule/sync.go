package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Reconciliation window: bookings are fetched 7 days back and 30 days forward.
const (
	syncWindowBack    = 7 * 24 * time.Hour
	syncWindowForward = 30 * 24 * time.Hour
)

type syncKey struct {
	bookingID string
	email     string
}

// Sync reconciles assignments with the external scheduling SaaS.
//
// Bookings in the window are mapped to service slots by exact time-of-day
// match; attendees whose email is the organizer's or the ministry address are
// skipped. Rows are upserted on (booking id, attendee email) and only updated
// when the booking's updatedAt is newer than the stored one. Synced rows whose
// booking disappeared are deleted; manual rows are never touched.
func (svc *Service) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	now := NowFunc()
	bookings, err := svc.bookings.ListBookings(ctx, now.Add(-syncWindowBack), now.Add(syncWindowForward))
	if err != nil {
		return res, errors.Wrap(err, "fetching bookings")
	}
	res.Fetched = len(bookings)

	slots, err := svc.repo.QueryServiceSlots(ctx, true /* activeOnly */)
	if err != nil {
		return res, errors.Wrap(err, "querying service slots")
	}
	slotsByTime := make(map[string]ServiceSlot, len(slots))
	for _, slot := range slots {
		slotsByTime[slot.StartTime] = slot
	}

	existing, err := svc.repo.QuerySyncedAssignments(ctx)
	if err != nil {
		return res, errors.Wrap(err, "querying synced assignments")
	}
	existingByKey := make(map[syncKey]Assignment, len(existing))
	for _, a := range existing {
		existingByKey[syncKey{a.BookingID, a.StaffEmail}] = a
	}

	knownBookingIDs := make(map[string]bool, len(bookings))
	for _, bkg := range bookings {
		knownBookingIDs[bkg.ID] = true

		slot, ok := slotsByTime[bkg.StartsAt.Format("15:04")]
		if !ok {
			res.Skipped++
			continue
		}

		for _, att := range bkg.Attendees {
			// the organizer booking themselves is not a volunteer signup
			if att.Email == "" || att.Email == bkg.OrganizerEmail || att.Email == svc.conf.MinistryEmail {
				res.Skipped++
				continue
			}

			key := syncKey{bkg.ID, att.Email}
			if prev, ok := existingByKey[key]; ok {
				if !bkg.UpdatedAt.After(prev.BookingUpdatedAt) {
					continue
				}
				prev.ServiceSlotID = slot.ID
				prev.Date = truncateToDay(bkg.StartsAt)
				prev.StaffName = att.Name
				prev.BookingUpdatedAt = bkg.UpdatedAt
				prev.UpdatedAt = time.Now().UTC()
				if _, err := svc.repo.UpdateAssignment(ctx, prev); err != nil {
					return res, errors.Wrap(err, "updating synced assignment")
				}
				res.Updated++
				continue
			}

			nowUTC := time.Now().UTC()
			a := Assignment{
				ServiceSlotID:    slot.ID,
				Date:             truncateToDay(bkg.StartsAt),
				StaffName:        att.Name,
				StaffEmail:       att.Email,
				Role:             "Volunteer",
				Source:           SourceSync,
				BookingID:        bkg.ID,
				BookingUpdatedAt: bkg.UpdatedAt,
				CreatedAt:        nowUTC,
				UpdatedAt:        nowUTC,
			}
			if _, err := svc.repo.CreateAssignment(ctx, a); err != nil {
				return res, errors.Wrap(err, "creating synced assignment")
			}
			res.Created++
		}
	}

	// set difference: stored booking ids no longer known upstream are stale
	stale := make([]string, 0)
	seen := make(map[string]bool)
	for _, a := range existing {
		if knownBookingIDs[a.BookingID] {
			continue
		}
		res.Deleted++
		if !seen[a.BookingID] {
			stale = append(stale, a.BookingID)
			seen[a.BookingID] = true
		}
	}
	if len(stale) > 0 {
		if err := svc.repo.DeleteSyncedAssignmentsByBookingID(ctx, stale...); err != nil {
			return res, errors.Wrap(err, "deleting stale assignments")
		}
	}
	return res, nil
}

// NowFunc is the reconciliation clock; mockable in tests.
var NowFunc = time.Now
