package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
)

// SessionState reads and writes the persisted login and service selection.
// It is the CredentialSource the custody client takes its headers from.
type SessionState struct {
	store ports.StateStore
}

func NewSessionState(store ports.StateStore) *SessionState {
	return &SessionState{store: store}
}

// Credentials returns whatever is stored. Missing values are left empty; the
// caller decides which endpoints need them.
func (s *SessionState) Credentials(ctx context.Context) (domain.Credentials, error) {
	var creds domain.Credentials
	if _, err := s.store.Load(ctx, jwtKey, &creds.JWT); err != nil {
		return creds, err
	}
	if _, err := s.store.Load(ctx, sessionIDKey, &creds.SessionID); err != nil {
		return creds, err
	}
	return creds, nil
}

func (s *SessionState) Info(ctx context.Context) (domain.SessionInfo, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return domain.SessionInfo{}, err
	}

	info := domain.SessionInfo{LoggedIn: creds.JWT != "", SessionID: creds.SessionID}
	for key, dst := range map[string]*string{
		selectedServiceKey:     &info.ServiceID,
		selectedServiceNameKey: &info.ServiceName,
		selectedStaffKey:       &info.Staff,
	} {
		if _, err := s.store.Load(ctx, key, dst); err != nil {
			return domain.SessionInfo{}, err
		}
	}
	return info, nil
}

// SessionService covers login and the start and end of a custody service.
type SessionService struct {
	api       ports.ScheduleAPI
	directory ports.UserDirectory
	state     *SessionState
	store     ports.StateStore
}

func NewSessionService(api ports.ScheduleAPI, directory ports.UserDirectory, state *SessionState, store ports.StateStore) *SessionService {
	return &SessionService{api: api, directory: directory, state: state, store: store}
}

func (s *SessionService) Login(ctx context.Context, username, password string) error {
	jwt, err := s.api.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return s.store.Save(ctx, jwtKey, jwt)
}

func (s *SessionService) ActiveServices(ctx context.Context) ([]domain.Schedule, error) {
	schedules, err := s.api.ActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("active services: %w", err)
	}
	return schedules, nil
}

// StartService opens a custody session on serviceID for the staff member
// identified by documentNumber and persists the selection.
func (s *SessionService) StartService(ctx context.Context, serviceID, documentNumber string) (domain.SessionInfo, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if !domain.ValidDocumentNumber(documentNumber) {
		return domain.SessionInfo{}, ErrInvalidDocument
	}

	var serviceName string
	if schedules, err := s.api.ActiveSchedules(ctx); err != nil {
		log.Printf("session: could not resolve service name for %s: %v", serviceID, err)
	} else {
		for _, schedule := range schedules {
			if fmt.Sprint(schedule.ID) == serviceID {
				serviceName = schedule.Name
				break
			}
		}
	}

	var staff string
	if user, err := s.directory.SearchUser(ctx, documentNumber); err != nil {
		log.Printf("session: could not resolve staff %s: %v", documentNumber, err)
	} else if user != nil {
		staff = user.FullName()
	}

	sessionID, err := s.api.StartTransaction(ctx, serviceID, documentNumber)
	if err != nil {
		return domain.SessionInfo{}, fmt.Errorf("start service: %w", err)
	}

	for key, value := range map[string]string{
		sessionIDKey:           sessionID,
		selectedServiceKey:     serviceID,
		selectedServiceNameKey: serviceName,
		selectedStaffKey:       staff,
	} {
		if err := s.store.Save(ctx, key, value); err != nil {
			return domain.SessionInfo{}, fmt.Errorf("save session: %w", err)
		}
	}

	return s.state.Info(ctx)
}

// EndService closes the selected service and forgets the selection. The login survives.
func (s *SessionService) EndService(ctx context.Context) error {
	info, err := s.state.Info(ctx)
	if err != nil {
		return err
	}
	if info.SessionID == "" {
		return ErrSessionMissing
	}
	if info.ServiceID == "" {
		return ErrNoActiveService
	}

	if err := s.api.EndTransaction(ctx, info.ServiceID); err != nil {
		return fmt.Errorf("end service: %w", err)
	}

	return s.store.Delete(ctx, sessionIDKey, selectedServiceKey, selectedServiceNameKey, selectedStaffKey)
}

func (s *SessionService) Current(ctx context.Context) (domain.SessionInfo, error) {
	return s.state.Info(ctx)
}
