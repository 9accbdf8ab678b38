package services

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/platform/events"
)

type LockerCacheOptions struct {
	PlaceholderCount int
	Capacity         int
	Campus           string
	HiddenLockerID   int
	DedupeWindow     time.Duration
}

// LockerCache holds the best known locker list. Optimistic edits replace a single
// locker's detail list under the lock; snapshots from the server replace everything.
type LockerCache struct {
	mu         sync.RWMutex
	lockers    []domain.Locker
	index      map[int]int
	version    uint64
	nextTempID int64
	lastFetch  time.Time
	fetchSeq   uint64
	appliedSeq uint64

	store  ports.StateStore
	source ports.LockerAPI
	bus    *events.Bus
	opts   LockerCacheOptions
	group  singleflight.Group
	now    func() time.Time
}

func NewLockerCache(store ports.StateStore, source ports.LockerAPI, bus *events.Bus, opts LockerCacheOptions) *LockerCache {
	c := &LockerCache{
		store:  store,
		source: source,
		bus:    bus,
		opts:   opts,
		now:    time.Now,
	}
	c.setLocked(domain.PlaceholderLockers(opts.PlaceholderCount, opts.Capacity, opts.Campus))
	return c
}

// Load seeds the cache from the store mirror so the grid can paint before the first fetch.
func (c *LockerCache) Load(ctx context.Context) (bool, error) {
	var lockers []domain.Locker
	ok, err := c.store.Load(ctx, lockersKey, &lockers)
	if err != nil || !ok || len(lockers) == 0 {
		return false, err
	}

	c.mu.Lock()
	c.setLocked(lockers)
	c.mu.Unlock()

	return true, nil
}

func (c *LockerCache) Lockers() []domain.Locker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Locker, 0, len(c.lockers))
	for _, locker := range c.lockers {
		out = append(out, locker.Clone())
	}
	return out
}

// GridLockers is Lockers without the id reserved away from the operator grid.
func (c *LockerCache) GridLockers() []domain.Locker {
	all := c.Lockers()
	if c.opts.HiddenLockerID == 0 {
		return all
	}
	out := all[:0]
	for _, locker := range all {
		if locker.ID != c.opts.HiddenLockerID {
			out = append(out, locker)
		}
	}
	return out
}

func (c *LockerCache) Locker(id int) (domain.Locker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return domain.Locker{}, false
	}
	return c.lockers[i].Clone(), true
}

func (c *LockerCache) Detail(lockerID int, code domain.TicketCode) (domain.LockerDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[lockerID]
	if !ok {
		return domain.LockerDetail{}, false
	}
	j := c.lockers[i].DetailIndex(code)
	if j < 0 {
		return domain.LockerDetail{}, false
	}
	return c.lockers[i].LockerDetails[j], true
}

func (c *LockerCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// OptimisticCheckIn appends a provisional detail with a negative temporary id.
// It refuses to exceed capacity or to place a ticket that already occupies a slot.
func (c *LockerCache) OptimisticCheckIn(ctx context.Context, lockerID int, occupant domain.Occupant) (domain.LockerDetail, error) {
	c.mu.Lock()

	i, ok := c.index[lockerID]
	if !ok {
		c.mu.Unlock()
		return domain.LockerDetail{}, ErrLockerNotFound
	}
	locker := &c.lockers[i]
	if !locker.HasRoom() {
		c.mu.Unlock()
		return domain.LockerDetail{}, ErrLockerFull
	}
	if c.holdsTicketLocked(occupant.TicketCode) {
		c.mu.Unlock()
		return domain.LockerDetail{}, ErrDuplicateTicket
	}

	at := occupant.CheckedInAt
	if at.IsZero() {
		at = c.now()
	}
	c.nextTempID--
	detail := domain.LockerDetail{
		ID:          c.nextTempID,
		TicketCode:  occupant.TicketCode,
		TeamCode:    occupant.TeamCode,
		Description: occupant.Description,
		InTime:      domain.NewTimestamp(at),
		User:        occupant.User,
	}

	details := make([]domain.LockerDetail, 0, len(locker.LockerDetails)+1)
	details = append(details, locker.LockerDetails...)
	details = append(details, detail)
	locker.LockerDetails = details
	locker.CurrentItems = len(details)

	version := c.commitLocked(ctx)
	c.mu.Unlock()

	c.publish(events.SourceLocal, lockerID, occupant.TicketCode, version)
	return detail, nil
}

// OptimisticCheckOut removes the detail holding code from the locker.
func (c *LockerCache) OptimisticCheckOut(ctx context.Context, lockerID int, code domain.TicketCode) (domain.LockerDetail, error) {
	c.mu.Lock()

	i, ok := c.index[lockerID]
	if !ok {
		c.mu.Unlock()
		return domain.LockerDetail{}, ErrLockerNotFound
	}
	locker := &c.lockers[i]
	j := locker.DetailIndex(code)
	if j < 0 {
		c.mu.Unlock()
		return domain.LockerDetail{}, ErrDetailNotFound
	}
	removed := locker.LockerDetails[j]

	details := make([]domain.LockerDetail, 0, len(locker.LockerDetails)-1)
	details = append(details, locker.LockerDetails[:j]...)
	details = append(details, locker.LockerDetails[j+1:]...)
	locker.LockerDetails = details
	locker.CurrentItems = len(details)

	version := c.commitLocked(ctx)
	c.mu.Unlock()

	c.publish(events.SourceLocal, lockerID, code, version)
	return removed, nil
}

// Replace installs a server snapshot wholesale. Local edits are discarded.
func (c *LockerCache) Replace(ctx context.Context, lockers []domain.Locker) {
	c.replace(ctx, lockers, 0)
}

// replace installs lockers unless a fetch started after seq has already been
// applied. seq 0 always applies.
func (c *LockerCache) replace(ctx context.Context, lockers []domain.Locker, seq uint64) bool {
	for _, locker := range lockers {
		if locker.Occupancy() > locker.EffectiveCapacity() {
			log.Printf("locker cache: server reports locker %d with %d items over capacity %d", locker.ID, locker.Occupancy(), locker.EffectiveCapacity())
		}
	}

	c.mu.Lock()
	if seq != 0 {
		if seq < c.appliedSeq {
			c.mu.Unlock()
			log.Printf("locker cache: dropping snapshot %d, %d is newer", seq, c.appliedSeq)
			return false
		}
		c.appliedSeq = seq
	}
	c.setLocked(lockers)
	version := c.commitLocked(ctx)
	c.mu.Unlock()

	c.publish(events.SourceServer, 0, "", version)
	return true
}

// Refresh fetches a snapshot and replaces the cache. Without force, a call inside
// the dedupe window of the previous fetch is skipped and reports false.
// Concurrent refreshes share one request; a forced refresh never joins a fetch
// that was already in flight, since that one may predate the caller's write.
func (c *LockerCache) Refresh(ctx context.Context, force bool) (bool, error) {
	c.mu.Lock()
	now := c.now()
	if !force && !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.opts.DedupeWindow {
		c.mu.Unlock()
		return false, nil
	}
	c.lastFetch = now
	c.mu.Unlock()

	if force {
		c.group.Forget(lockersKey)
	}

	_, err, _ := c.group.Do(lockersKey, func() (any, error) {
		c.mu.Lock()
		c.fetchSeq++
		seq := c.fetchSeq
		c.mu.Unlock()

		lockers, err := c.source.LockersWithDetails(ctx)
		if err != nil {
			return nil, err
		}
		c.replace(ctx, lockers, seq)
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RefreshLocker re-reads a single locker record from the server and swaps it in,
// leaving every other locker untouched. A capacity the record omits keeps the
// cached one.
func (c *LockerCache) RefreshLocker(ctx context.Context, lockerID int) (domain.Locker, error) {
	fresh, err := c.source.LockerTransactions(ctx, lockerID)
	if err != nil {
		return domain.Locker{}, err
	}
	if fresh == nil {
		return domain.Locker{}, ErrLockerNotFound
	}

	c.mu.Lock()
	i, ok := c.index[lockerID]
	if !ok {
		c.mu.Unlock()
		return domain.Locker{}, ErrLockerNotFound
	}
	locker := fresh.Clone()
	locker.ID = lockerID
	if locker.Capacity <= 0 {
		locker.Capacity = c.lockers[i].Capacity
	}
	if locker.LockerDetails == nil {
		locker.LockerDetails = []domain.LockerDetail{}
	}
	locker.CurrentItems = len(locker.LockerDetails)
	c.lockers[i] = locker
	version := c.commitLocked(ctx)
	out := locker.Clone()
	c.mu.Unlock()

	c.publish(events.SourceServer, lockerID, "", version)
	return out, nil
}

// RequestRefresh asks the background loop for a deduplicated revalidation.
func (c *LockerCache) RequestRefresh() {
	c.publish(events.SourceRequest, 0, "", c.Version())
}

// RunBackgroundRefresh revalidates on a fixed interval and whenever a view requests it.
func (c *LockerCache) RunBackgroundRefresh(ctx context.Context, interval time.Duration) {
	sub := c.bus.Subscribe(8, events.LockersUpdated)
	defer c.bus.Unsubscribe(sub)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Printf("Locker refresh worker started: interval=%s dedupe=%s", interval, c.opts.DedupeWindow)

	for {
		select {
		case <-ctx.Done():
			log.Println("Locker refresh worker stopped.")
			return
		case <-tick:
			c.refreshQuietly(ctx)
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Source == events.SourceRequest {
				c.refreshQuietly(ctx)
			}
		}
	}
}

func (c *LockerCache) refreshQuietly(ctx context.Context) {
	if _, err := c.Refresh(ctx, false); err != nil {
		log.Printf("locker cache: background refresh failed: %v", err)
	}
}

func (c *LockerCache) holdsTicketLocked(code domain.TicketCode) bool {
	for i := range c.lockers {
		if c.lockers[i].DetailIndex(code) >= 0 {
			return true
		}
	}
	return false
}

func (c *LockerCache) setLocked(lockers []domain.Locker) {
	c.lockers = make([]domain.Locker, 0, len(lockers))
	c.index = make(map[int]int, len(lockers))
	for _, locker := range lockers {
		locker = locker.Clone()
		if locker.LockerDetails == nil {
			locker.LockerDetails = []domain.LockerDetail{}
		}
		c.index[locker.ID] = len(c.lockers)
		c.lockers = append(c.lockers, locker)
	}
}

func (c *LockerCache) commitLocked(ctx context.Context) uint64 {
	c.version++
	if err := c.store.Save(ctx, lockersKey, c.lockers); err != nil {
		log.Printf("locker cache: persist failed: %v", err)
	}
	return c.version
}

func (c *LockerCache) publish(source events.Source, lockerID int, code domain.TicketCode, version uint64) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Kind:     events.LockersUpdated,
		Source:   source,
		LockerID: lockerID,
		Ticket:   string(code),
		Version:  version,
	})
}
