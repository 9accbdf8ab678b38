package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/srgjo27/custodia/internal/adapter/custodyapi"
	"github.com/srgjo27/custodia/internal/adapter/handler"
	"github.com/srgjo27/custodia/internal/adapter/storage/memory"
	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports/mocks"
	"github.com/srgjo27/custodia/internal/core/services"
	"github.com/srgjo27/custodia/internal/platform/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type kiosk struct {
	server    *httptest.Server
	tickets   *mocks.TicketAPI
	lockers   *mocks.LockerAPI
	directory *mocks.UserDirectory
	schedules *mocks.ScheduleAPI
	checkIns  *services.CheckInService
	cache     *services.LockerCache
}

func newKiosk(t *testing.T) *kiosk {
	t.Helper()
	store := memory.NewStore()
	bus := events.New()
	numbering := domain.TicketNumbering{Prefix: "TS", Total: 10}

	k := &kiosk{
		tickets:   mocks.NewTicketAPI(t),
		lockers:   mocks.NewLockerAPI(t),
		directory: mocks.NewUserDirectory(t),
		schedules: mocks.NewScheduleAPI(t),
	}

	ledger := services.NewTicketLedger(store, numbering)
	k.cache = services.NewLockerCache(store, k.lockers, bus, services.LockerCacheOptions{PlaceholderCount: 3, Capacity: 2, HiddenLockerID: 3})
	activity := services.NewActivityLog(store, 100)
	emergency := services.NewEmergencyService(store, ledger, activity, bus)
	reconciler := services.NewReconciler(k.tickets, ledger, k.cache, bus, emergency)
	k.checkIns = services.NewCheckInService(ledger, k.cache, reconciler, k.lockers, activity, bus, services.CheckInOptions{ConfirmRefreshDelay: time.Millisecond})
	state := services.NewSessionState(store)

	h := handler.NewKioskHandler(handler.Deps{
		Cache:      k.cache,
		Ledger:     ledger,
		Reconciler: reconciler,
		CheckIns:   k.checkIns,
		Lookup:     services.NewUserLookup(k.directory, 0),
		Search:     services.NewTicketSearch(k.tickets, numbering),
		Activities: activity,
		Emergency:  emergency,
		Sessions:   services.NewSessionService(k.schedules, k.directory, state, store),
	})

	k.server = httptest.NewServer(h.Routes())
	t.Cleanup(k.server.Close)
	return k
}

func (k *kiosk) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, k.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestKiosk_ListLockersHidesReservedId(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodGet, "/lockers", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	lockers := decode[[]map[string]any](t, resp)
	require.Len(t, lockers, 2)
	assert.Equal(t, "EMPTY", lockers[0]["state"])
}

func TestKiosk_GetLockerNotFound(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodGet, "/lockers/77", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "locker not found", decode[map[string]string](t, resp)["error"])
}

func TestKiosk_CheckInFlow(t *testing.T) {
	k := newKiosk(t)
	k.tickets.On("ActiveTickets", mock.Anything).Return([]domain.RemoteTicket{}, nil)

	resp := k.do(t, http.MethodPost, "/lockers/1/check-ins", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	draft := decode[services.CheckInDraft](t, resp)
	assert.Equal(t, domain.TicketCode("TS-1"), draft.Ticket)

	k.directory.On("SearchUser", mock.Anything, "12345678").Return(&domain.User{FirstName: "Ana", DocumentNumber: "12345678"}, nil)
	k.lockers.On("CheckIn", mock.Anything, 1, mock.Anything).Return(nil)
	k.lockers.On("LockersWithDetails", mock.Anything).Return([]domain.Locker{{ID: 1, Capacity: 2}}, nil).Maybe()

	resp = k.do(t, http.MethodPost, "/check-ins/"+draft.ID+"/confirm", map[string]string{"documentNumber": "12345678"})
	k.checkIns.Wait()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decode[services.CheckInResult](t, resp)
	assert.Equal(t, services.CheckInConfirmed, result.State)

	resp = k.do(t, http.MethodGet, "/activities?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Activity](t, resp), 1)
}

func TestKiosk_ConfirmUpstreamFailureIsBadGateway(t *testing.T) {
	k := newKiosk(t)
	k.tickets.On("ActiveTickets", mock.Anything).Return([]domain.RemoteTicket{}, nil)
	draft, err := k.checkIns.Open(context.Background(), 2)
	require.NoError(t, err)

	k.directory.On("SearchUser", mock.Anything, "12345678").Return(&domain.User{DocumentNumber: "12345678"}, nil)
	k.lockers.On("CheckIn", mock.Anything, 2, mock.Anything).Return(&custodyapi.HTTPError{StatusCode: http.StatusInternalServerError})
	k.lockers.On("LockersWithDetails", mock.Anything).Return([]domain.Locker{{ID: 2, Capacity: 2}}, nil)

	resp := k.do(t, http.MethodPost, "/check-ins/"+draft.ID+"/confirm", map[string]string{"documentNumber": "12345678"})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestKiosk_ConfirmRejectsBadDocument(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodPost, "/check-ins/whatever/confirm", map[string]string{"documentNumber": "12"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKiosk_CheckOutMissingTicket(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodPost, "/lockers/1/check-outs", map[string]string{"ticketCode": "TS-9"})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKiosk_CancelAll(t *testing.T) {
	k := newKiosk(t)
	k.tickets.On("ActiveTickets", mock.Anything).Return([]domain.RemoteTicket{}, nil)
	_, err := k.checkIns.Open(context.Background(), 1)
	require.NoError(t, err)

	resp := k.do(t, http.MethodDelete, "/check-ins", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["released"])
}

func TestKiosk_TicketTransaction(t *testing.T) {
	k := newKiosk(t)
	k.tickets.On("TicketTransaction", mock.Anything, domain.TicketCode("TS-4")).Return(&domain.TicketTransaction{TicketCode: "TS-4", LockerCode: "LS-2"}, nil)

	resp := k.do(t, http.MethodGet, "/tickets/4/transaction", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "LS-2", body["lockerCode"])
	assert.EqualValues(t, 2, body["lockerNumber"])
}

func TestKiosk_EmergencyItems(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodPost, "/emergency-items", map[string]string{"dni": "12345678", "location": "Hall", "description": "Umbrella"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = k.do(t, http.MethodGet, "/emergency-items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.EmergencyItem](t, resp), 1)

	resp = k.do(t, http.MethodPost, "/emergency-items/0/deliver", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = k.do(t, http.MethodPost, "/emergency-items/0/deliver", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKiosk_EndServiceWithoutSession(t *testing.T) {
	k := newKiosk(t)

	resp := k.do(t, http.MethodPost, "/session/end", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestKiosk_GetCheckInRunsGuard(t *testing.T) {
	k := newKiosk(t)
	k.tickets.On("ActiveTickets", mock.Anything).Return([]domain.RemoteTicket{}, nil)
	draft, err := k.checkIns.Open(context.Background(), 1)
	require.NoError(t, err)

	resp := k.do(t, http.MethodGet, "/check-ins/"+draft.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, true, view["reserved"])
	assert.Equal(t, false, view["canConfirm"])
	assert.Equal(t, services.ErrUserRequired.Error(), view["reason"])

	k.directory.On("SearchUser", mock.Anything, "12345678").Return(&domain.User{FirstName: "Ana", DocumentNumber: "12345678"}, nil)
	resp = k.do(t, http.MethodGet, "/check-ins/"+draft.ID+"?documentNumber=12345678", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[map[string]any](t, resp)
	assert.Equal(t, true, view["canConfirm"])
	assert.Equal(t, "TS-1", view["ticket"])

	resp = k.do(t, http.MethodGet, "/check-ins/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKiosk_GetLockerRefreshesFromServer(t *testing.T) {
	k := newKiosk(t)
	k.lockers.On("LockerTransactions", mock.Anything, 1).Return(&domain.Locker{
		ID:            1,
		Capacity:      2,
		LockerDetails: []domain.LockerDetail{{ID: 3, TicketCode: "TS-4"}, {ID: 4, TicketCode: "TS-5"}},
	}, nil).Once()

	resp := k.do(t, http.MethodGet, "/lockers/1?refresh=true", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, "FULL", view["state"])
	_, ok := k.cache.Detail(1, "TS-4")
	assert.True(t, ok)
}
