// Package senderrouter picks which outbound WhatsApp sender should carry a
// booking's messages, based on its first service and the company's routing
// rules.
package senderrouter

import (
	"context"

	"github.com/geocoder89/whatsflow/internal/domain/sender"
)

type BookingsRepo interface {
	FirstServiceID(ctx context.Context, bookingID int64) (int64, bool, error)
}

type ServiceSenderRulesRepo interface {
	CodeForService(ctx context.Context, companyID, serviceID int64) (string, error)
}

type SendersRepo interface {
	ActiveIDByCode(ctx context.Context, companyID int64, senderCode string) (int64, bool, error)
}

type Router struct {
	bookings BookingsRepo
	rules    ServiceSenderRulesRepo
	senders  SendersRepo
}

func New(bookings BookingsRepo, rules ServiceSenderRulesRepo, senders SendersRepo) *Router {
	return &Router{bookings: bookings, rules: rules, senders: senders}
}

// PickSenderCode resolves the routing rule's sender code for a booking,
// keyed on the ascending-smallest serviceId it contains. A booking with no
// services, or no matching rule, routes to the default code.
func (r *Router) PickSenderCode(ctx context.Context, companyID, bookingID int64) (string, error) {
	serviceID, ok, err := r.bookings.FirstServiceID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !ok {
		return sender.DefaultCode, nil
	}
	return r.rules.CodeForService(ctx, companyID, serviceID)
}

// PickSenderID resolves the active sender id for a company and code,
// falling back to the company's default sender when the code itself isn't
// "default" and has no active sender.
func (r *Router) PickSenderID(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	id, ok, err := r.senders.ActiveIDByCode(ctx, companyID, senderCode)
	if err != nil {
		return 0, false, err
	}
	if ok || senderCode == sender.DefaultCode {
		return id, ok, nil
	}
	return r.senders.ActiveIDByCode(ctx, companyID, sender.DefaultCode)
}
