package domain

import "time"

// Member is the local identity record of a person. ExternalID is assigned by
// the identity source and never changes once stored.
type Member struct {
	ID         string
	ExternalID int
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemberProfile is a person as reported by the identity source.
type MemberProfile struct {
	ExternalID           int
	Name                 string
	OccupationID         *int
	EmploymentContractID *int
}
