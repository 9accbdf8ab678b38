package custodyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
)

var (
	ErrNotFound       = errors.New("custody api: not found")
	ErrSessionMissing = errors.New("no sessionId or jwt found")
)

// HTTPError is returned for any non-2xx answer. A 404 also matches ErrNotFound.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("custody api: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

var (
	_ ports.TicketAPI     = (*Client)(nil)
	_ ports.LockerAPI     = (*Client)(nil)
	_ ports.UserDirectory = (*Client)(nil)
	_ ports.ScheduleAPI   = (*Client)(nil)
)

type Config struct {
	BaseURL   string
	AuthURL   string
	Campus    string
	Timeout   time.Duration
	BatchSize int
}

type auth int

const (
	authNone auth = iota
	authOptional
	authRequired
)

// Client talks to the remote custody service. Every call carries the
// persisted session headers taken from creds.
type Client struct {
	cfg   Config
	creds ports.CredentialSource
	http  *http.Client
}

func NewClient(cfg Config, creds ports.CredentialSource) *Client {
	return NewClientWithTransport(cfg, creds, otelhttp.NewTransport(http.DefaultTransport))
}

func NewClientWithTransport(cfg Config, creds ports.CredentialSource, transport http.RoundTripper) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	if cfg.AuthURL == "" {
		cfg.AuthURL = strings.TrimSuffix(cfg.BaseURL, "/api/v1")
	}

	return &Client{
		cfg:   cfg,
		creds: creds,
		http:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	q := url.Values{"username": {username}, "password": {password}}
	var out struct {
		JWT string `json:"jwt"`
	}
	if err := c.do(ctx, http.MethodPost, c.cfg.AuthURL, "/auth/login", q, nil, &out, authNone); err != nil {
		return "", err
	}
	if out.JWT == "" {
		return "", errors.New("custody api: login returned no jwt")
	}
	return out.JWT, nil
}

func (c *Client) ActiveSchedules(ctx context.Context) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, "/schedules/active", c.campus(), nil, &out, authOptional)
	return out, err
}

func (c *Client) StartTransaction(ctx context.Context, scheduleID, documentNumber string) (string, error) {
	body := map[string]string{"documentNumber": documentNumber}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	path := "/schedules/" + url.PathEscape(scheduleID) + "/transactions/start"
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL, path, nil, body, &out, authOptional); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *Client) EndTransaction(ctx context.Context, scheduleID string) error {
	path := "/schedules/" + url.PathEscape(scheduleID) + "/transactions/end"
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL, path, nil, nil, nil, authRequired)
}

func (c *Client) SearchUser(ctx context.Context, documentNumber string) (*domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, "/users/search", url.Values{"searchValue": {documentNumber}}, nil, &user, authRequired)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) LockersWithDetails(ctx context.Context) ([]domain.Locker, error) {
	var out []domain.Locker
	err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, "/lockers/active/with-details", c.campus(), nil, &out, authRequired)
	return out, err
}

func (c *Client) LockerTransactions(ctx context.Context, lockerID int) (*domain.Locker, error) {
	var locker domain.Locker
	path := "/lockers/" + strconv.Itoa(lockerID) + "/transactions"
	if err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, path, nil, nil, &locker, authRequired); err != nil {
		return nil, err
	}
	return &locker, nil
}

// CheckIn posts items in chunks of at most BatchSize. Chunks already accepted
// are not rolled back when a later one fails; the caller reconciles.
func (c *Client) CheckIn(ctx context.Context, lockerID int, items []domain.CheckInItem) error {
	path := "/lockers/" + strconv.Itoa(lockerID) + "/transactions/check-in"
	for _, chunk := range chunks(items, c.cfg.BatchSize) {
		if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL, path, nil, chunk, nil, authRequired); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) CheckOut(ctx context.Context, lockerID int, codes []domain.TicketCode) error {
	path := "/lockers/" + strconv.Itoa(lockerID) + "/transactions/check-out"
	for _, chunk := range chunks(codes, c.cfg.BatchSize) {
		if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL, path, nil, chunk, nil, authRequired); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ActiveTickets(ctx context.Context) ([]domain.RemoteTicket, error) {
	var out []domain.RemoteTicket
	err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, "/tickets/active", nil, nil, &out, authRequired)
	return out, err
}

func (c *Client) TicketTransaction(ctx context.Context, code domain.TicketCode) (*domain.TicketTransaction, error) {
	var tx domain.TicketTransaction
	err := c.do(ctx, http.MethodGet, c.cfg.BaseURL, "/tickets/transaction", url.Values{"ticketCode": {string(code)}}, nil, &tx, authRequired)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) campus() url.Values {
	if c.cfg.Campus == "" {
		return nil
	}
	return url.Values{"campus": {c.cfg.Campus}}
}

func (c *Client) do(ctx context.Context, method, base, path string, query url.Values, body, out any, mode auth) error {
	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("custody api: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("custody api: %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if mode != authNone {
		if err := c.authorize(ctx, req, mode); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("custody api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("custody api: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request, mode auth) error {
	if c.creds == nil {
		if mode == authRequired {
			return ErrSessionMissing
		}
		return nil
	}

	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("custody api: read session: %w", err)
	}
	if mode == authRequired && (creds.JWT == "" || creds.SessionID == "") {
		return ErrSessionMissing
	}

	if creds.SessionID != "" {
		req.Header.Set("Session-id", creds.SessionID)
	}
	if creds.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+creds.JWT)
	}
	return nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
