package bot

import "sync"

// Token records which bot owns the right to run a turn sequence. A lobby
// keeps exactly one, shared by every observer that might trigger a bot turn.
type Token struct {
	mu    sync.Mutex
	owner string
	epoch uint64
	held  bool
}

// Acquire claims the token for owner at epoch. It succeeds when the token is
// free or was claimed under an older epoch, which a reset has invalidated.
func (t *Token) Acquire(owner string, epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held && t.epoch >= epoch {
		return false
	}
	t.owner, t.epoch, t.held = owner, epoch, true
	return true
}

func (t *Token) Holds(owner string, epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held && t.owner == owner && t.epoch == epoch
}

// Release frees the token if owner still holds it at epoch. Releasing a token
// someone else has since claimed is a no-op.
func (t *Token) Release(owner string, epoch uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held && t.owner == owner && t.epoch == epoch {
		t.owner, t.epoch, t.held = "", 0, false
	}
}

func (t *Token) Owner() (string, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner, t.epoch, t.held
}
