// Package model defines domain entities for the application.
package model

import "time"

// Person is a registered user. GSID comes from the login identity provider,
// PSID from the chat platform once the account has been linked.
type Person struct {
	ID          int64      `json:"id"`
	GSID        string     `json:"gsid"`
	PSID        *string    `json:"psid,omitempty"`
	Email       *string    `json:"email,omitempty"`
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Timezone    *string    `json:"timezone,omitempty"`
	UpdatedTime *time.Time `json:"updated_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsLinked reports whether the person has a chat platform id.
func (p *Person) IsLinked() bool {
	return p.PSID != nil && *p.PSID != ""
}

// LinkedPSID returns the chat platform id, or "" if the account is not linked.
func (p *Person) LinkedPSID() string {
	if p.PSID == nil {
		return ""
	}
	return *p.PSID
}
