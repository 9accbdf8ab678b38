package ports

import (
	"context"

	"github.com/srgjo27/custodia/internal/core/domain"
)

// StateStore is the local persistence boundary. Values are JSON encoded.
// Load reports false without error when the key does not exist.
type StateStore interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}

// TicketAPI reads tickets from the custody API. TicketTransaction returns
// (nil, nil) when the ticket has no transaction.
type TicketAPI interface {
	ActiveTickets(ctx context.Context) ([]domain.RemoteTicket, error)
	TicketTransaction(ctx context.Context, code domain.TicketCode) (*domain.TicketTransaction, error)
}

type LockerAPI interface {
	LockersWithDetails(ctx context.Context) ([]domain.Locker, error)
	LockerTransactions(ctx context.Context, lockerID int) (*domain.Locker, error)
	CheckIn(ctx context.Context, lockerID int, items []domain.CheckInItem) error
	CheckOut(ctx context.Context, lockerID int, codes []domain.TicketCode) error
}

// UserDirectory returns (nil, nil) when no user has the document number.
type UserDirectory interface {
	SearchUser(ctx context.Context, documentNumber string) (*domain.User, error)
}

type ScheduleAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	ActiveSchedules(ctx context.Context) ([]domain.Schedule, error)
	StartTransaction(ctx context.Context, scheduleID, documentNumber string) (string, error)
	EndTransaction(ctx context.Context, scheduleID string) error
}

type CredentialSource interface {
	Credentials(ctx context.Context) (domain.Credentials, error)
}

type ActivityRepository interface {
	Append(ctx context.Context, activity domain.Activity) error
	List(ctx context.Context, limit int) ([]domain.Activity, error)
}
