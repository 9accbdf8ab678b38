package domain

const DocumentNumberLength = 8

type User struct {
	ID             int64  `json:"id,omitempty"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	PhoneNumber    string `json:"phoneNumber"`
	DocumentNumber string `json:"documentNumber"`
	Birthday       string `json:"birthday,omitempty"`
	Email          string `json:"email,omitempty"`
	SuggestedTeam  string `json:"suggestedTeam,omitempty"`
	Role           string `json:"role,omitempty"`
	IsActive       bool   `json:"isActive,omitempty"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ValidDocumentNumber reports whether s is an 8-digit national id.
func ValidDocumentNumber(s string) bool {
	if len(s) != DocumentNumberLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
