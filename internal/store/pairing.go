package store

// PendingPairing is an outstanding pairing request awaiting approval.
type PendingPairing struct {
	Code      string `json:"code"`
	Channel   string `json:"channel"`
	Sender    string `json:"sender"`
	ChatID    string `json:"chat_id,omitempty"`
	CreatedAt int64  `json:"created_at_ms"`
}

// PairingStore gates channel access behind an approval code. A (channel,
// sender) pair is either paired (messages flow through) or not (the sender
// must request a code and have it approved out of band).
type PairingStore interface {
	// IsPaired reports whether sender on channel has an approved pairing.
	IsPaired(sender, channel string) bool

	// RequestPairing issues (or re-issues) a pairing code for sender on
	// channel. Idempotent: a sender with an existing pending request for the
	// same channel gets back the same code. Returns an error if the
	// channel's pending-request cap is exceeded.
	RequestPairing(sender, channel, chatID, clientID string) (string, error)

	// Approve approves a pending code on behalf of the "default" client.
	Approve(code string) (channel, sender string, err error)

	// ApproveWithClient approves a pending code, tracking failed attempts
	// per clientID so one client's failures can't deny another.
	ApproveWithClient(code, clientID string) (channel, sender string, err error)

	// Revoke removes an existing pairing. Reports whether one existed.
	Revoke(sender, channel string) (bool, error)

	// ListPending returns all outstanding (unapproved) pairing requests.
	ListPending() ([]PendingPairing, error)
}
