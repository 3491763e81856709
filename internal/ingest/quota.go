package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QuotaLedger tracks API unit spend against a daily ceiling, persisted to a
// small JSON file so a second invocation on the same UTC day respects the
// cumulative budget.
type QuotaLedger struct {
	mu         sync.Mutex
	path       string
	dailyLimit int

	state quotaState
}

type quotaState struct {
	Date  string `json:"date"`
	Spent int    `json:"spent"`
}

func NewQuotaLedger(path string, dailyLimit int) (*QuotaLedger, error) {
	if dailyLimit <= 0 {
		return nil, fmt.Errorf("daily limit must be > 0")
	}
	ledger := &QuotaLedger{
		path:       path,
		dailyLimit: dailyLimit,
	}
	if err := ledger.load(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Spend reserves units against today's budget, returning ErrQuotaExceeded
// without recording when the ceiling would be crossed.
func (l *QuotaLedger) Spend(units int) error {
	if units <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if l.state.Date != today {
		l.state = quotaState{Date: today}
	}
	if l.state.Spent+units > l.dailyLimit {
		return fmt.Errorf("%w: %d of %d units spent, %d requested", ErrQuotaExceeded, l.state.Spent, l.dailyLimit, units)
	}

	l.state.Spent += units
	return l.save()
}

// Remaining reports today's unspent units.
func (l *QuotaLedger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if l.state.Date != today {
		return l.dailyLimit
	}
	return l.dailyLimit - l.state.Spent
}

func (l *QuotaLedger) load() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read quota ledger %q: %w", l.path, err)
	}
	if err := json.Unmarshal(raw, &l.state); err != nil {
		// A corrupt ledger resets the day rather than blocking ingest.
		l.state = quotaState{}
	}
	return nil
}

func (l *QuotaLedger) save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create quota ledger dir: %w", err)
	}
	raw, err := json.Marshal(l.state)
	if err != nil {
		return fmt.Errorf("encode quota ledger: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o644); err != nil {
		return fmt.Errorf("write quota ledger %q: %w", l.path, err)
	}
	return nil
}
