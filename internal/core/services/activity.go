package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/platform/events"
)

func NewActivity(kind domain.ActivityType, lockerID int, item domain.ActivityItem, at time.Time) domain.Activity {
	activity := domain.Activity{
		ID:        uuid.NewString(),
		Type:      kind,
		Item:      item,
		Timestamp: at,
	}
	if lockerID > 0 {
		id := lockerID
		activity.LockerID = &id
	}
	return activity
}

// ActivityLog keeps the newest-first activity list under the "activities" key.
type ActivityLog struct {
	mu    sync.Mutex
	store ports.StateStore
	limit int
}

func NewActivityLog(store ports.StateStore, limit int) *ActivityLog {
	return &ActivityLog{store: store, limit: limit}
}

func (a *ActivityLog) Append(ctx context.Context, activity domain.Activity) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var list []domain.Activity
	if _, err := a.store.Load(ctx, activitiesKey, &list); err != nil {
		return err
	}

	list = append([]domain.Activity{activity}, list...)
	if a.limit > 0 && len(list) > a.limit {
		list = list[:a.limit]
	}

	return a.store.Save(ctx, activitiesKey, list)
}

func (a *ActivityLog) List(ctx context.Context, limit int) ([]domain.Activity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var list []domain.Activity
	if _, err := a.store.Load(ctx, activitiesKey, &list); err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// activityRecorder appends best-effort: the log is informational and a failed
// append never fails the operation that produced it.
type activityRecorder struct {
	repo ports.ActivityRepository
	bus  *events.Bus
	now  func() time.Time
}

func (r activityRecorder) record(ctx context.Context, kind domain.ActivityType, lockerID int, item domain.ActivityItem) {
	if r.repo == nil {
		return
	}
	activity := NewActivity(kind, lockerID, item, r.now())
	if err := r.repo.Append(ctx, activity); err != nil {
		log.Printf("activity log: append %s failed: %v", kind, err)
		return
	}
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Kind:     events.ActivityAppended,
			Source:   events.SourceLocal,
			LockerID: lockerID,
			Ticket:   string(item.TicketCode),
		})
	}
}
