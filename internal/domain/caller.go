package domain

// Caller is the verified identity behind a request. It is passed to each
// engine call explicitly.
type Caller struct {
	AccountID string
	Admin     bool
}

func (c Caller) Valid() bool { return c.AccountID != "" }
