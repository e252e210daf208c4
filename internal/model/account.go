package model

// Account is one credential bundle in the pool, keyed by Email.
type Account struct {
	Email              string        `db:"email" json:"email"`
	Password           string        `db:"password" json:"password"`
	RecoveryEmail      string        `db:"recovery_email" json:"recoveryEmail"`
	AuthenticatorToken string        `db:"authenticator_token" json:"authenticatorToken"`
	AppPassword        string        `db:"app_password" json:"appPassword"`
	AuthenticatorURL   string        `db:"authenticator_url" json:"authenticatorUrl"`
	MessagesURL        string        `db:"messages_url" json:"messagesUrl"`
	SheeridURL         string        `db:"-" json:"sheeridUrl,omitempty"`
	Sold               bool          `db:"sold" json:"sold"`
	Finished           bool          `db:"finished" json:"finished"`
	Status             AccountStatus `db:"status" json:"status"`
}

// Claimable reports whether the account may be handed to a worker.
func (a *Account) Claimable() bool {
	return !a.Sold && a.Status == StatusIdle
}

// NewAccount returns a fresh pool entry: idle, not sold, not finished.
func NewAccount(email string) *Account {
	return &Account{Email: email, Status: StatusIdle}
}

// ProfilePatch holds the profile columns found on one import line.
// A nil field was not present and must be left untouched.
type ProfilePatch struct {
	Password           *string
	RecoveryEmail      *string
	AuthenticatorToken *string
	AppPassword        *string
	AuthenticatorURL   *string
	MessagesURL        *string
}

// Apply copies the present fields onto the account. Operational state
// (status, sold, finished, sheerid link) is never touched.
func (p ProfilePatch) Apply(a *Account) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Password, p.Password)
	set(&a.RecoveryEmail, p.RecoveryEmail)
	set(&a.AuthenticatorToken, p.AuthenticatorToken)
	set(&a.AppPassword, p.AppPassword)
	set(&a.AuthenticatorURL, p.AuthenticatorURL)
	set(&a.MessagesURL, p.MessagesURL)
}

type UpdateAccountParams struct {
	OriginalEmail      string
	Email              string
	Password           *string
	RecoveryEmail      *string
	AuthenticatorToken *string
	Status             *AccountStatus
	Sold               *bool
	Finished           *bool
}

// StatusView is the listing returned to operators: every account plus
// a count per status.
type StatusView struct {
	Accounts []Account             `json:"accounts"`
	Counts   map[AccountStatus]int `json:"counts"`
	Total    int                   `json:"total"`
}

func NewStatusView(accounts []Account) *StatusView {
	counts := make(map[AccountStatus]int, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[s] = 0
	}
	for _, a := range accounts {
		counts[a.Status]++
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return &StatusView{Accounts: accounts, Counts: counts, Total: len(accounts)}
}
