package executor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/memekipedia/tradecore/internal/domain"
)

const journalKeyPrefix = "trade_"

// journalRecord is one trade lifecycle transition persisted to the WAL.
// The latest record per intent wins on recovery.
type journalRecord struct {
	IntentID string    `json:"intent_id"`
	State    string    `json:"state"`
	Ref      string    `json:"ref,omitempty"`
	Mode     string    `json:"mode"`
	CurveID  string    `json:"curve_id,omitempty"`
	Amount   string    `json:"amount"`
	Counter  string    `json:"counter,omitempty"`
	Time     time.Time `json:"time"`
}

// tradeJournal persists trade state transitions so that a restart can tell
// which submissions were left in flight and must be reconciled against the
// ledger before anything is retried.
type tradeJournal struct {
	mu   sync.Mutex
	wal  *gowal.Wal
	seq  uint64
	last map[string]journalRecord
}

func newTradeJournal(dir string) (*tradeJournal, error) {
	walCfg := gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: 1000,
		MaxSegments:      100,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(walCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trade journal WAL")
	}

	j := &tradeJournal{wal: wal, last: make(map[string]journalRecord)}
	for msg := range wal.Iterator() {
		var rec journalRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			continue
		}
		j.last[rec.IntentID] = rec
		j.seq++
	}
	return j, nil
}

func (j *tradeJournal) append(rec journalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal record")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	if err := j.wal.Write(j.seq, journalKeyPrefix+rec.IntentID, data); err != nil {
		return errors.Wrap(err, "failed to write journal record")
	}
	j.last[rec.IntentID] = rec
	return nil
}

// pending returns trades whose last journaled state is non-terminal. Their
// submissions may or may not have landed; callers must re-query the ledger.
func (j *tradeJournal) pending() []journalRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []journalRecord
	for _, rec := range j.last {
		switch rec.State {
		case domain.TradeStateConfirmed.String(), domain.TradeStateFailed.String(), domain.TradeStateExpired.String():
		default:
			out = append(out, rec)
		}
	}
	return out
}

func (j *tradeJournal) close() error {
	return j.wal.Close()
}
