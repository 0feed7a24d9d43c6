package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oxicrab/oxicrab/internal/pairing"
	"github.com/oxicrab/oxicrab/internal/store"
)

// PGPairingStore implements store.PairingStore backed by Postgres. Failed
// approval attempts are tracked in-process (per gateway instance) rather
// than in the database, matching the file-backed pairing.Service's
// in-memory rate limiting — a deliberately cheap, non-durable guard against
// code-guessing, not an audit log.
type PGPairingStore struct {
	db *sql.DB

	mu             sync.Mutex
	failedAttempts map[string][]time.Time
	now            func() time.Time
}

func NewPGPairingStore(db *sql.DB) *PGPairingStore {
	return &PGPairingStore{
		db:             db,
		failedAttempts: make(map[string][]time.Time),
		now:            time.Now,
	}
}

func (s *PGPairingStore) IsPaired(sender, channel string) bool {
	var exists bool
	_ = s.db.QueryRowContext(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM pairings WHERE channel = $1 AND sender = $2)`,
		channel, sender).Scan(&exists)
	return exists
}

func (s *PGPairingStore) RequestPairing(sender, channel, chatID, clientID string) (string, error) {
	ctx := context.Background()

	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM pairing_requests WHERE channel = $1 AND sender = $2`,
		channel, sender).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pairing_requests WHERE channel = $1`, channel).Scan(&count); err != nil {
		return "", err
	}
	if count >= pairing.MaxPendingPerChannel {
		return "", nil
	}

	code := pairing.GenerateCode()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pairing_requests (code, channel, sender, chat_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		code, channel, sender, chatID, s.now())
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *PGPairingStore) Approve(code string) (string, string, error) {
	return s.ApproveWithClient(code, "default")
}

func (s *PGPairingStore) ApproveWithClient(code, clientID string) (string, string, error) {
	s.mu.Lock()
	cutoff := s.now().Add(-1 * time.Hour)
	var kept []time.Time
	for _, t := range s.failedAttempts[clientID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.failedAttempts[clientID] = kept
	if len(kept) >= pairing.MaxFailedAttempts {
		s.mu.Unlock()
		return "", "", fmt.Errorf("too many failed approval attempts for client %q", clientID)
	}
	s.mu.Unlock()

	ctx := context.Background()
	normalized := strings.ToUpper(strings.TrimSpace(code))

	var channel, sender string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel, sender FROM pairing_requests WHERE UPPER(code) = $1`, normalized).
		Scan(&channel, &sender)
	if err == sql.ErrNoRows {
		s.mu.Lock()
		s.failedAttempts[clientID] = append(s.failedAttempts[clientID], s.now())
		s.mu.Unlock()
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pairings (channel, sender, approved_at) VALUES ($1, $2, $3)
		 ON CONFLICT (channel, sender) DO NOTHING`,
		channel, sender, s.now()); err != nil {
		return "", "", err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pairing_requests WHERE UPPER(code) = $1`, normalized); err != nil {
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	return channel, sender, nil
}

func (s *PGPairingStore) Revoke(sender, channel string) (bool, error) {
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM pairings WHERE channel = $1 AND sender = $2`, channel, sender)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PGPairingStore) ListPending() ([]store.PendingPairing, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT code, channel, sender, COALESCE(chat_id, ''), created_at FROM pairing_requests`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PendingPairing
	for rows.Next() {
		var p store.PendingPairing
		var createdAt time.Time
		if err := rows.Scan(&p.Code, &p.Channel, &p.Sender, &p.ChatID, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = createdAt.UnixMilli()
		out = append(out, p)
	}
	return out, rows.Err()
}
