package planner

import (
	"context"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
)

// LashesServiceIDsByCompany is a static allowlist of service ids, per
// company, eligible for planning. It mirrors a narrower shouldPlan variant
// seen in some historical planning paths, kept here as an example of a
// static (non-API-backed) alternative to servicefilter's category lookup.
var LashesServiceIDsByCompany = map[int64]map[int64]struct{}{}

// NewLashesFilter returns a ShouldPlan that admits a booking only if at
// least one of its services is in the company's lashes allowlist. Bookings
// in companies absent from the map are never admitted by this filter.
func NewLashesFilter(servicesByBooking func(ctx context.Context, bookingID int64) ([]int64, error)) ShouldPlan {
	return func(ctx context.Context, b booking.Booking) (bool, error) {
		allowed, ok := LashesServiceIDsByCompany[b.CompanyID]
		if !ok || len(allowed) == 0 {
			return false, nil
		}

		serviceIDs, err := servicesByBooking(ctx, b.ExternalBookingID)
		if err != nil {
			return false, err
		}
		for _, id := range serviceIDs {
			if _, ok := allowed[id]; ok {
				return true, nil
			}
		}
		return false, nil
	}
}
