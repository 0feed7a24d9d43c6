package file

import (
	"github.com/oxicrab/oxicrab/internal/pairing"
	"github.com/oxicrab/oxicrab/internal/store"
)

// FilePairingStore wraps pairing.Service to implement store.PairingStore.
type FilePairingStore struct {
	svc *pairing.Service
}

func NewFilePairingStore(svc *pairing.Service) *FilePairingStore {
	return &FilePairingStore{svc: svc}
}

func (f *FilePairingStore) IsPaired(sender, channel string) bool {
	return f.svc.IsPaired(channel, sender)
}

func (f *FilePairingStore) RequestPairing(sender, channel, chatID, clientID string) (string, error) {
	return f.svc.RequestPairing(channel, sender, chatID)
}

func (f *FilePairingStore) Approve(code string) (string, string, error) {
	return f.svc.Approve(code)
}

func (f *FilePairingStore) ApproveWithClient(code, clientID string) (string, string, error) {
	return f.svc.ApproveWithClient(code, clientID)
}

func (f *FilePairingStore) Revoke(sender, channel string) (bool, error) {
	return f.svc.Revoke(channel, sender)
}

func (f *FilePairingStore) ListPending() ([]store.PendingPairing, error) {
	pending := f.svc.ListPending()
	out := make([]store.PendingPairing, len(pending))
	for i, p := range pending {
		out[i] = store.PendingPairing{
			Code:      p.Code,
			Channel:   p.Channel,
			Sender:    p.Sender,
			ChatID:    p.ChatID,
			CreatedAt: p.CreatedAt,
		}
	}
	return out, nil
}
