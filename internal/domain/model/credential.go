package model

import "time"

// AccountClass distinguishes trial accounts from paid ones.
type AccountClass string

const (
	AccountTrial    AccountClass = "trial"
	AccountOfficial AccountClass = "official"
)

// Credentials are the account details generated by the operator panel.
type Credentials struct {
	Username    string
	Password    string
	ExpiresAt   time.Time
	AccessLinks []string
}

// StoredCredentials is a credentials set persisted for a phone number.
type StoredCredentials struct {
	Phone   string
	Class   AccountClass
	Creds   Credentials
	SavedAt time.Time
}

// TrialGrant records the most recent trial issuance for a phone number.
// Absence of a record means the user never had a trial and is eligible.
type TrialGrant struct {
	Phone       string
	LastTrialAt time.Time
}
