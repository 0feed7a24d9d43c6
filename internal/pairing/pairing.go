// Package pairing implements channel access pairing: a sender on a channel
// must request a short code and have it approved out of band before their
// messages are treated as trusted input.
//
// Ported from original_source/src/pairing (Rust): code generation, the
// idempotent-pending-request rule, the per-channel pending cap, and the
// per-client failed-attempt lockout all match that implementation's
// behavior, verified against its test suite.
package pairing

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oxicrab/oxicrab/internal/persist"
)

const (
	// CodeLength is the number of characters in a generated pairing code.
	CodeLength = 8
	// CodeAlphabet excludes visually ambiguous characters (0/O, 1/I/L).
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// MaxPendingPerChannel caps outstanding (unapproved) requests per channel.
	MaxPendingPerChannel = 50
	// MaxFailedAttempts is the per-client approve-code failure budget before lockout.
	MaxFailedAttempts = 5
)

// pendingRequest is an outstanding code awaiting approval.
type pendingRequest struct {
	Code      string `json:"code"`
	Channel   string `json:"channel"`
	Sender    string `json:"sender"`
	ChatID    string `json:"chat_id,omitempty"`
	CreatedAt int64  `json:"created_at_ms"`
}

// pairedKey identifies an approved (channel, sender) pair.
type pairedKey struct {
	Channel string
	Sender  string
}

// document is the on-disk JSON shape.
type document struct {
	Pending []pendingRequest    `json:"pending"`
	Paired  []pairedKey         `json:"paired"`
}

// Service is a file-persisted pairing store. All exported methods are
// safe for concurrent use.
type Service struct {
	path string

	mu             sync.Mutex
	pending        []pendingRequest
	paired         map[pairedKey]bool
	failedAttempts map[string][]time.Time

	now func() time.Time
}

// NewService opens (or creates) a pairing store persisted at path.
func NewService(path string) *Service {
	s := &Service{
		path:           path,
		paired:         make(map[pairedKey]bool),
		failedAttempts: make(map[string][]time.Time),
		now:            time.Now,
	}
	s.load()
	return s
}

func (s *Service) load() {
	var doc document
	if err := persist.ReadFileJSON(s.path, &doc); err != nil {
		return
	}
	s.pending = doc.Pending
	for _, k := range doc.Paired {
		s.paired[k] = true
	}
}

// saveLocked persists state; caller must hold s.mu.
func (s *Service) saveLocked() error {
	doc := document{Pending: s.pending}
	for k := range s.paired {
		doc.Paired = append(doc.Paired, k)
	}
	return persist.WriteFileAtomic(s.path, doc)
}

// GenerateCode produces a random CodeLength-character code from CodeAlphabet.
func GenerateCode() string {
	b := make([]byte, CodeLength)
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively fatal for the process anyway;
		// fall back to a degraded but still usable time-seeded code.
		for i := range buf {
			buf[i] = byte(time.Now().UnixNano() >> uint(i))
		}
	}
	for i, r := range buf {
		b[i] = CodeAlphabet[int(r)%len(CodeAlphabet)]
	}
	return string(b)
}

// IsPaired reports whether sender on channel is approved.
func (s *Service) IsPaired(channel, sender string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paired[pairedKey{channel, sender}]
}

// RequestPairing issues a code for (channel, sender), or returns the
// existing one if a request is already pending. Returns ("", nil) if the
// channel's pending cap is exceeded.
func (s *Service) RequestPairing(channel, sender, chatID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.Channel == channel && p.Sender == sender {
			return p.Code, nil
		}
	}

	count := 0
	for _, p := range s.pending {
		if p.Channel == channel {
			count++
		}
	}
	if count >= MaxPendingPerChannel {
		return "", nil
	}

	code := GenerateCode()
	s.pending = append(s.pending, pendingRequest{
		Code:      code,
		Channel:   channel,
		Sender:    sender,
		ChatID:    chatID,
		CreatedAt: s.now().UnixMilli(),
	})
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return code, nil
}

// Approve approves code on behalf of the "default" client.
func (s *Service) Approve(code string) (channel, sender string, err error) {
	return s.ApproveWithClient(code, "default")
}

// ApproveWithClient approves code, tracking failures against clientID so a
// client that's exhausted MaxFailedAttempts is refused without consuming
// another client's budget.
func (s *Service) ApproveWithClient(code, clientID string) (channel, sender string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneFailedAttemptsLocked(clientID)
	if len(s.failedAttempts[clientID]) >= MaxFailedAttempts {
		return "", "", fmt.Errorf("too many failed approval attempts for client %q", clientID)
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	for i, p := range s.pending {
		if strings.ToUpper(p.Code) != normalized {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.paired[pairedKey{p.Channel, p.Sender}] = true
		if err := s.saveLocked(); err != nil {
			return "", "", err
		}
		return p.Channel, p.Sender, nil
	}

	s.failedAttempts[clientID] = append(s.failedAttempts[clientID], s.now())
	return "", "", nil
}

func (s *Service) pruneFailedAttemptsLocked(clientID string) {
	cutoff := s.now().Add(-1 * time.Hour)
	var kept []time.Time
	for _, t := range s.failedAttempts[clientID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.failedAttempts[clientID] = kept
}

// Revoke removes an existing approved pairing, reporting whether one existed.
func (s *Service) Revoke(channel, sender string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairedKey{channel, sender}
	if !s.paired[key] {
		return false, nil
	}
	delete(s.paired, key)
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// ListPending returns all outstanding pairing requests.
func (s *Service) ListPending() []PendingPairing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingPairing, len(s.pending))
	for i, p := range s.pending {
		out[i] = PendingPairing{
			Code:      p.Code,
			Channel:   p.Channel,
			Sender:    p.Sender,
			ChatID:    p.ChatID,
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

// PendingPairing is the public view of an outstanding request.
type PendingPairing struct {
	Code      string
	Channel   string
	Sender    string
	ChatID    string
	CreatedAt int64
}
