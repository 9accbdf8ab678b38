package domain

// Schedule is an active custody service returned by GET /schedules/active.
type Schedule struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
	Campus    string `json:"campus"`
}

type Credentials struct {
	JWT       string
	SessionID string
}

type SessionInfo struct {
	LoggedIn    bool   `json:"loggedIn"`
	SessionID   string `json:"sessionId,omitempty"`
	ServiceID   string `json:"selectedService,omitempty"`
	ServiceName string `json:"selectedServiceName,omitempty"`
	Staff       string `json:"selectedStaff,omitempty"`
}
