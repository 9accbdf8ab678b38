package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/srgjo27/custodia/internal/adapter/custodyapi"
	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/core/services"
)

type Deps struct {
	Cache      *services.LockerCache
	Ledger     *services.TicketLedger
	Reconciler *services.Reconciler
	CheckIns   *services.CheckInService
	Lookup     *services.UserLookup
	Search     *services.TicketSearch
	Activities ports.ActivityRepository
	Emergency  *services.EmergencyService
	Sessions   *services.SessionService
	Realtime   http.Handler
}

// KioskHandler serves the JSON API the kiosk front end talks to.
type KioskHandler struct {
	deps Deps
}

func NewKioskHandler(deps Deps) *KioskHandler {
	return &KioskHandler{deps: deps}
}

type lockerView struct {
	domain.Locker
	State domain.LockerState `json:"state"`
}

func newLockerView(locker domain.Locker) lockerView {
	return lockerView{Locker: locker, State: locker.State()}
}

func (h *KioskHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/lockers", func(r chi.Router) {
		r.Get("/", h.ListLockers)
		r.Post("/refresh", h.RefreshLockers)
		r.Get("/{id}", h.GetLocker)
		r.Post("/{id}/check-ins", h.OpenCheckIn)
		r.Post("/{id}/check-outs", h.CheckOut)
	})

	r.Route("/check-ins", func(r chi.Router) {
		r.Delete("/", h.CancelAllCheckIns)
		r.Get("/{draftID}", h.GetCheckIn)
		r.Post("/{draftID}/confirm", h.ConfirmCheckIn)
		r.Delete("/{draftID}", h.CancelCheckIn)
	})

	r.Get("/users/{documentNumber}", h.GetUser)

	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.GetTickets)
		r.Post("/sync", h.SyncTickets)
		r.Get("/{code}/transaction", h.GetTicketTransaction)
	})

	r.Get("/activities", h.ListActivities)

	r.Route("/emergency-items", func(r chi.Router) {
		r.Get("/", h.ListEmergencyItems)
		r.Post("/", h.RegisterEmergencyItem)
		r.Post("/{index}/deliver", h.DeliverEmergencyItem)
	})

	r.Post("/session/login", h.Login)
	r.Post("/session/start", h.StartService)
	r.Post("/session/end", h.EndService)
	r.Get("/session", h.CurrentSession)
	r.Get("/services", h.ListServices)

	if h.deps.Realtime != nil {
		r.Handle("/realtime/*", h.deps.Realtime)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps domain failures to status codes. Anything unrecognised
// is logged and reported without detail.
func writeServiceError(w http.ResponseWriter, err error) {
	var httpErr *custodyapi.HTTPError
	var netErr net.Error

	switch {
	case errors.Is(err, services.ErrLockerNotFound),
		errors.Is(err, services.ErrDetailNotFound),
		errors.Is(err, services.ErrDraftNotFound),
		errors.Is(err, services.ErrTicketNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrEmergencyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrLockerFull),
		errors.Is(err, services.ErrDuplicateTicket),
		errors.Is(err, services.ErrNoTicket),
		errors.Is(err, services.ErrCheckInInProgress),
		errors.Is(err, services.ErrCheckOutInProgress),
		errors.Is(err, services.ErrDeliveryInProgress),
		errors.Is(err, services.ErrLookupSuperseded),
		errors.Is(err, services.ErrNoActiveService):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidDocument),
		errors.Is(err, services.ErrInvalidTicket),
		errors.Is(err, services.ErrUserRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrSessionMissing),
		errors.Is(err, custodyapi.ErrSessionMissing):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &httpErr), errors.As(err, &netErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func intParam(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	return n, err == nil
}

func (h *KioskHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lockersVersion": h.deps.Cache.Version()})
}

func (h *KioskHandler) ListLockers(w http.ResponseWriter, r *http.Request) {
	lockers := h.deps.Cache.GridLockers()
	views := make([]lockerView, 0, len(lockers))
	for _, locker := range lockers {
		views = append(views, newLockerView(locker))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *KioskHandler) GetLocker(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid locker id")
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		locker, err := h.deps.Cache.RefreshLocker(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newLockerView(locker))
		return
	}
	locker, ok := h.deps.Cache.Locker(id)
	if !ok {
		writeServiceError(w, services.ErrLockerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newLockerView(locker))
}

func (h *KioskHandler) RefreshLockers(w http.ResponseWriter, r *http.Request) {
	lockers, err := h.deps.Reconciler.FetchLockerSnapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]lockerView, 0, len(lockers))
	for _, locker := range lockers {
		views = append(views, newLockerView(locker))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *KioskHandler) OpenCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid locker id")
		return
	}
	draft, err := h.deps.CheckIns.Open(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

type checkInView struct {
	services.CheckInDraft
	Reserved   bool   `json:"reserved"`
	CanConfirm bool   `json:"canConfirm"`
	Reason     string `json:"reason,omitempty"`
}

// GetCheckIn reports whether the draft could be confirmed right now, for the
// optional documentNumber query parameter.
func (h *KioskHandler) GetCheckIn(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")
	draft, ok := h.deps.CheckIns.Draft(draftID)
	if !ok {
		writeServiceError(w, services.ErrDraftNotFound)
		return
	}

	var user *domain.User
	if dni := r.URL.Query().Get("documentNumber"); dni != "" {
		found, err := h.deps.Lookup.Resolve(r.Context(), dni)
		switch {
		case err == nil:
			user = found
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrInvalidDocument):
		default:
			writeServiceError(w, err)
			return
		}
	}

	view := checkInView{
		CheckInDraft: draft,
		Reserved:     h.deps.Ledger.IsReserved(draft.Ticket),
	}
	if err := h.deps.CheckIns.CanCheckIn(draftID, user); err != nil {
		view.Reason = err.Error()
	} else {
		view.CanConfirm = true
	}
	writeJSON(w, http.StatusOK, view)
}

type confirmRequest struct {
	DocumentNumber string `json:"documentNumber"`
	TeamCode       string `json:"teamCode,omitempty"`
}

func (h *KioskHandler) ConfirmCheckIn(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, err := h.deps.Lookup.Resolve(r.Context(), req.DocumentNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.deps.CheckIns.Confirm(r.Context(), chi.URLParam(r, "draftID"), user, req.TeamCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *KioskHandler) CancelCheckIn(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CheckIns.Cancel(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KioskHandler) CancelAllCheckIns(w http.ResponseWriter, r *http.Request) {
	released := h.deps.CheckIns.CancelAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

type checkOutRequest struct {
	TicketCode string `json:"ticketCode"`
}

func (h *KioskHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid locker id")
		return
	}
	var req checkOutRequest
	if err := decodeJSON(r, &req); err != nil || req.TicketCode == "" {
		writeError(w, http.StatusBadRequest, "ticketCode is required")
		return
	}

	if err := h.deps.CheckIns.CheckOut(r.Context(), id, domain.TicketCode(req.TicketCode)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KioskHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Lookup.Search(r.Context(), chi.URLParam(r, "documentNumber"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *KioskHandler) GetTickets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Ledger.Snapshot())
}

func (h *KioskHandler) SyncTickets(w http.ResponseWriter, r *http.Request) {
	available, err := h.deps.Reconciler.SyncWithServer(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.TicketCode{"available": available})
}

type ticketTransactionView struct {
	*domain.TicketTransaction
	LockerNumber int `json:"lockerNumber,omitempty"`
}

func (h *KioskHandler) GetTicketTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.deps.Search.Find(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view := ticketTransactionView{TicketTransaction: tx}
	if n, ok := tx.LockerNumber(); ok {
		view.LockerNumber = n
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *KioskHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	activities, err := h.deps.Activities.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *KioskHandler) ListEmergencyItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Emergency.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *KioskHandler) RegisterEmergencyItem(w http.ResponseWriter, r *http.Request) {
	var req services.EmergencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	item, err := h.deps.Emergency.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *KioskHandler) DeliverEmergencyItem(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	item, err := h.deps.Emergency.Deliver(r.Context(), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *KioskHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := h.deps.Sessions.Login(r.Context(), req.Username, req.Password); err != nil {
		var httpErr *custodyapi.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, err)
		return
	}
	h.CurrentSession(w, r)
}

func (h *KioskHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.deps.Sessions.ActiveServices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if schedules == nil {
		schedules = []domain.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

type startServiceRequest struct {
	ServiceID      string `json:"serviceId"`
	DocumentNumber string `json:"documentNumber"`
}

func (h *KioskHandler) StartService(w http.ResponseWriter, r *http.Request) {
	var req startServiceRequest
	if err := decodeJSON(r, &req); err != nil || req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "serviceId is required")
		return
	}
	info, err := h.deps.Sessions.StartService(r.Context(), req.ServiceID, req.DocumentNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *KioskHandler) EndService(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Sessions.EndService(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	h.deps.CheckIns.CancelAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *KioskHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Sessions.Current(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
