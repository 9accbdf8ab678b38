package services_test

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/srgjo27/custodia/internal/adapter/storage/memory"
	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNumbering = domain.TicketNumbering{Prefix: "TS", Total: 5}

func codes(values ...string) []domain.TicketCode {
	out := make([]domain.TicketCode, 0, len(values))
	for _, v := range values {
		out = append(out, domain.TicketCode(v))
	}
	return out
}

func assertPartition(t *testing.T, state domain.TicketState, total int) {
	t.Helper()
	seen := map[domain.TicketCode]int{}
	for _, set := range [][]domain.TicketCode{state.Available, state.Assigned, state.Reserved} {
		for _, code := range set {
			seen[code]++
		}
	}
	assert.Len(t, seen, total)
	for code, n := range seen {
		assert.Equal(t, 1, n, "ticket %s appears in %d sets", code, n)
	}
}

func TestTicketLedger_ReserveTakesLowest(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	first, ok := ledger.ReserveForPreview(ctx)
	require.True(t, ok)
	second, ok := ledger.ReserveForPreview(ctx)
	require.True(t, ok)

	assert.Equal(t, domain.TicketCode("TS-1"), first)
	assert.Equal(t, domain.TicketCode("TS-2"), second)
	assert.Equal(t, codes("TS-3", "TS-4", "TS-5"), ledger.Snapshot().Available)
	assertPartition(t, ledger.Snapshot(), 5)
}

func TestTicketLedger_ReleaseKeepsAvailableSorted(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	ledger.ResyncFromAuthoritative(ctx, codes("TS-1", "TS-2", "TS-4"))
	ledger.Release(ctx, "TS-2")
	ledger.Release(ctx, "TS-1")

	state := ledger.Snapshot()
	assert.Equal(t, codes("TS-1", "TS-2", "TS-3", "TS-5"), state.Available)
	assert.Equal(t, codes("TS-4"), state.Assigned)
	assertPartition(t, state, 5)
}

func TestTicketLedger_ReleaseUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	ledger.Release(ctx, "TS-3")
	ledger.Release(ctx, "XX-1")
	ledger.Release(ctx, "TS-99")

	assert.Equal(t, testNumbering.Universe(), ledger.Snapshot().Available)
}

func TestTicketLedger_ReserveThenReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	before := ledger.Snapshot()

	code, ok := ledger.ReserveForPreview(ctx)
	require.True(t, ok)
	ledger.Release(ctx, code)

	assert.Equal(t, before, ledger.Snapshot())
}

func TestTicketLedger_AssignReserved(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	reserved, _ := ledger.ReserveForPreview(ctx)
	assigned, ok := ledger.Assign(ctx, reserved)

	require.True(t, ok)
	assert.Equal(t, reserved, assigned)
	state := ledger.Snapshot()
	assert.Empty(t, state.Reserved)
	assert.Equal(t, codes("TS-1"), state.Assigned)
}

func TestTicketLedger_AssignWithoutReservationTakesLowest(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	ledger.ResyncFromAuthoritative(ctx, codes("TS-1"))

	assigned, ok := ledger.Assign(ctx, "TS-4")

	require.True(t, ok)
	assert.Equal(t, domain.TicketCode("TS-2"), assigned)
}

func TestTicketLedger_ExhaustedIsNotAnError(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	ledger.ResyncFromAuthoritative(ctx, testNumbering.Universe())

	_, ok := ledger.ReserveForPreview(ctx)
	assert.False(t, ok)
	_, ok = ledger.Assign(ctx, "")
	assert.False(t, ok)
}

func TestTicketLedger_ResyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	occupied := codes("TS-3", "TS-1", "ZZ-9", "TS-40")

	ledger.ResyncFromAuthoritative(ctx, occupied)
	once := ledger.Snapshot()
	ledger.ResyncFromAuthoritative(ctx, occupied)

	assert.Equal(t, once, ledger.Snapshot())
	assert.Equal(t, codes("TS-1", "TS-3"), once.Assigned)
	assert.Equal(t, codes("TS-2", "TS-4", "TS-5"), once.Available)
	assert.Empty(t, once.Reserved)
}

// A reservation the server has since seen occupied by another kiosk moves to
// assigned on resync and a stale cancel must not free it.
func TestTicketLedger_ResyncWinsOverStaleReservation(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	reserved, _ := ledger.ReserveForPreview(ctx)
	ledger.ResyncFromAuthoritative(ctx, codes(string(reserved)))

	assert.False(t, ledger.ReleaseReserved(ctx, reserved))
	assert.Equal(t, codes("TS-1"), ledger.Snapshot().Assigned)

	next, ok := ledger.ReserveForPreview(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.TicketCode("TS-2"), next)
}

// Local state thought TS-2 was free; the server says it is taken.
func TestTicketLedger_ResyncCorrectsLocalDrift(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	ledger.ResyncFromAuthoritative(ctx, codes("TS-1"))

	ledger.ResyncFromAuthoritative(ctx, codes("TS-1", "TS-2"))
	code, ok := ledger.ReserveForPreview(ctx)

	require.True(t, ok)
	assert.Equal(t, domain.TicketCode("TS-3"), code)
}

func TestTicketLedger_ReleaseAllReserved(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	ledger.ReserveForPreview(ctx)
	ledger.ReserveForPreview(ctx)

	assert.Equal(t, 2, ledger.ReleaseAllReserved(ctx))
	assert.Equal(t, 0, ledger.ReleaseAllReserved(ctx))
	assert.Equal(t, testNumbering.Universe(), ledger.Snapshot().Available)
}

func TestTicketLedger_ExpireReservations(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)
	code, _ := ledger.ReserveForPreview(ctx)

	assert.Empty(t, ledger.ExpireReservations(ctx, time.Hour))
	assert.True(t, ledger.IsReserved(code))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, []domain.TicketCode{code}, ledger.ExpireReservations(ctx, time.Millisecond))
	assert.False(t, ledger.IsReserved(code))
	assertPartition(t, ledger.Snapshot(), 5)
}

func TestTicketLedger_LoadRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ledger := services.NewTicketLedger(store, testNumbering)
	ledger.ResyncFromAuthoritative(ctx, codes("TS-2"))
	ledger.ReserveForPreview(ctx)

	restored := services.NewTicketLedger(store, testNumbering)
	ok, err := restored.Load(ctx)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ledger.Snapshot(), restored.Snapshot())
	assert.True(t, restored.IsReserved("TS-1"))
}

func TestTicketLedger_LoadDiscardsForeignState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, "ticketState", domain.TicketState{
		Available: codes("LS-001", "LS-002"),
		Assigned:  codes(),
		Reserved:  codes(),
	}))

	ledger := services.NewTicketLedger(store, testNumbering)
	ok, err := ledger.Load(ctx)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, testNumbering.Universe(), ledger.Snapshot().Available)
}

func TestTicketLedger_SyncFromLockers(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewTicketLedger(memory.NewStore(), testNumbering)

	ledger.SyncFromLockers(ctx, []domain.Locker{
		{ID: 1, LockerDetails: []domain.LockerDetail{{TicketCode: "TS-5"}, {TicketCode: "TS-2"}}},
		{ID: 2},
	})

	assert.Equal(t, codes("TS-2", "TS-5"), ledger.Snapshot().Assigned)
}

var kioskNumbering = domain.TicketNumbering{Prefix: "TS", Total: 50}

func assertSortedAvailable(t *testing.T, numbering domain.TicketNumbering, available []domain.TicketCode) {
	t.Helper()
	assert.True(t, sort.SliceIsSorted(available, func(i, j int) bool {
		a, _ := numbering.Number(available[i])
		b, _ := numbering.Number(available[j])
		return a < b
	}), "available not sorted: %v", available)
}

func TestTicketLedger_FiftyTicketUniverse(t *testing.T) {
	tests := []struct {
		name     string
		run      func(ctx context.Context, l *services.TicketLedger)
		assigned []domain.TicketCode
		reserved []domain.TicketCode
		free     int
		first    domain.TicketCode
	}{
		{
			name: "release returns the previewed ticket to the front",
			run: func(ctx context.Context, l *services.TicketLedger) {
				code, _ := l.ReserveForPreview(ctx)
				l.Release(ctx, code)
			},
			free:  50,
			first: "TS-1",
		},
		{
			name: "resync takes a local reservation as assigned",
			run: func(ctx context.Context, l *services.TicketLedger) {
				for i := 0; i < 5; i++ {
					l.ReserveForPreview(ctx)
				}
				for _, code := range codes("TS-1", "TS-2", "TS-3", "TS-4") {
					l.ReleaseReserved(ctx, code)
				}
				l.ResyncFromAuthoritative(ctx, codes("TS-5", "TS-9"))
			},
			assigned: codes("TS-5", "TS-9"),
			free:     48,
			first:    "TS-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l := services.NewTicketLedger(memory.NewStore(), kioskNumbering)

			tt.run(ctx, l)

			state := l.Snapshot()
			assertPartition(t, state, 50)
			assertSortedAvailable(t, kioskNumbering, state.Available)
			assert.ElementsMatch(t, tt.assigned, state.Assigned)
			assert.ElementsMatch(t, tt.reserved, state.Reserved)
			require.Len(t, state.Available, tt.free)
			assert.Equal(t, tt.first, state.Available[0])

			for _, code := range tt.assigned {
				assert.NotContains(t, state.Available, code)
			}
		})
	}
}

func TestTicketLedger_RandomOperationsKeepPartition(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	l := services.NewTicketLedger(memory.NewStore(), kioskNumbering)

	pick := func(list []domain.TicketCode) domain.TicketCode {
		if len(list) == 0 {
			return ""
		}
		return list[rng.Intn(len(list))]
	}

	for step := 0; step < 500; step++ {
		before := l.Snapshot()
		op := rng.Intn(7)

		switch op {
		case 0, 1:
			code, ok := l.ReserveForPreview(ctx)
			if len(before.Available) > 0 {
				require.True(t, ok)
				assert.Equal(t, before.Available[0], code, "step %d", step)
			} else {
				assert.False(t, ok)
			}
		case 2:
			l.Assign(ctx, pick(before.Reserved))
		case 3:
			l.Release(ctx, pick(append(before.Assigned, before.Reserved...)))
		case 4:
			l.ReleaseReserved(ctx, pick(before.Reserved))
		case 5:
			if rng.Intn(4) == 0 {
				l.ReleaseAllReserved(ctx)
			}
		case 6:
			var occupied []domain.TicketCode
			for i := 0; i < rng.Intn(10); i++ {
				occupied = append(occupied, domain.TicketCode(fmt.Sprintf("TS-%d", 1+rng.Intn(60))))
			}
			l.ResyncFromAuthoritative(ctx, occupied)
			assert.Empty(t, l.Snapshot().Reserved)
		}

		state := l.Snapshot()
		assertPartition(t, state, 50)
		assertSortedAvailable(t, kioskNumbering, state.Available)
		if t.Failed() {
			t.Fatalf("partition broken at step %d (op %d)", step, op)
		}
	}
}
