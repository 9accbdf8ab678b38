package services

// Keys under which kiosk state is mirrored in the StateStore.
const (
	jwtKey                 = "jwt"
	sessionIDKey           = "sessionId"
	selectedServiceKey     = "selectedService"
	selectedServiceNameKey = "selectedServiceName"
	selectedStaffKey       = "selectedStaff"
	lockersKey             = "lockers"
	ticketStateKey         = "ticketState"
	activitiesKey          = "activities"
	emergencyItemsKey      = "emergencyItems"
)
