package services

import "errors"

var (
	ErrLockerNotFound     = errors.New("locker not found")
	ErrLockerFull         = errors.New("locker is full")
	ErrDetailNotFound     = errors.New("ticket not found in locker")
	ErrDuplicateTicket    = errors.New("ticket already occupies a slot")
	ErrNoTicket           = errors.New("no tickets available")
	ErrUserRequired       = errors.New("a resolved user is required")
	ErrDraftNotFound      = errors.New("check-in draft not found")
	ErrCheckInInProgress  = errors.New("check-in already in progress")
	ErrCheckOutInProgress = errors.New("check-out already in progress for this slot")
	ErrDeliveryInProgress = errors.New("another delivery is in progress")
	ErrInvalidDocument    = errors.New("document number must have 8 digits")
	ErrLookupSuperseded   = errors.New("lookup superseded by a newer search")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidTicket      = errors.New("invalid ticket code")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSessionMissing     = errors.New("no sessionId or jwt found")
	ErrNoActiveService    = errors.New("no active service selected")
	ErrEmergencyNotFound  = errors.New("emergency item not found")
)
