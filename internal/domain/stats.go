package domain

import "time"

// SyncStats is a snapshot of the most recent sync pass, published for
// the status endpoint.
type SyncStats struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	Users         int       `json:"users"`
	OrdersChecked int       `json:"orders_checked"`
	Repositioned  int       `json:"repositioned"`
	Resolved      int       `json:"resolved"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
}

// UserSyncResult counts what one user's cycle did. Resolved covers
// orders observed filled or canceled on the venue; Skipped covers
// fetch failures and recovered per-order faults.
type UserSyncResult struct {
	Checked      int
	Repositioned int
	Resolved     int
	Skipped      int
	Failed       int
}

// Add folds one user's counters into the pass totals.
func (s *SyncStats) Add(r UserSyncResult) {
	s.OrdersChecked += r.Checked
	s.Repositioned += r.Repositioned
	s.Resolved += r.Resolved
	s.Skipped += r.Skipped
	s.Failed += r.Failed
}

// Elapsed reports the pass duration for logging.
func (s *SyncStats) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMs) * time.Millisecond
}
