package invoice

import (
	"encoding/json"
	"log/slog"

	"github.com/odyssey-erp/po-console/internal/shared"
)

// DraftKey is the session key of the in-progress invoice.
const DraftKey = shared.KeyInvoiceDraft

// SaveDraft stores the state in the session. Failures only get logged; a
// lost draft never blocks editing.
func SaveDraft(sess *shared.Session, s State, logger *slog.Logger) {
	if sess == nil {
		return
	}
	s.normalize()
	data, err := json.Marshal(s)
	if err != nil {
		if logger != nil {
			logger.Warn("encode invoice draft", slog.Any("error", err))
		}
		return
	}
	sess.Set(DraftKey, string(data))
}

// LoadDraft restores the stored state. A missing or unreadable draft yields
// a blank form and false.
func LoadDraft(sess *shared.Session) (State, bool) {
	if sess == nil {
		return NewState(), false
	}
	raw := sess.Get(DraftKey)
	if raw == "" {
		return NewState(), false
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return NewState(), false
	}
	s.normalize()
	return s, true
}

// ClearDraft drops the stored state.
func ClearDraft(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.Delete(DraftKey)
}
