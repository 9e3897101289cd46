package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBrokenChain is returned by Verify when an entry does not link to its predecessor
// or its hash does not match its content.
var ErrBrokenChain = errors.New("audit chain is broken")

var genesisHash = strings.Repeat("0", 64)

// Event describes a money movement attempt.
type Event struct {
	Action          string `json:"action"`
	SourceAccountID uint64 `json:"source_account_id"`
	TargetAccountID uint64 `json:"target_account_id"`
	Amount          int64  `json:"amount"`
	Outcome         string `json:"outcome"`
	Detail          string `json:"detail,omitempty"`
}

// Entry is one link of the chain.
type Entry struct {
	ID           string    `json:"id"`
	RecordedAt   time.Time `json:"recorded_at"`
	PreviousHash string    `json:"previous_hash"`
	Event        Event     `json:"event"`
	Hash         string    `json:"hash"`
}

// Trail is an append-only, hash-chained audit log. Every entry is written to
// the sink as one JSON line; only the hash of the last entry is kept in memory.
type Trail struct {
	mu    sync.Mutex
	sink  io.Writer
	last  string
	count int
}

// NewTrail starts a new chain at the genesis hash.
func NewTrail(sink io.Writer) *Trail {
	return &Trail{sink: sink, last: genesisHash}
}

// ResumeTrail verifies the entries already in existing and continues their
// chain, writing new entries to sink.
func ResumeTrail(existing io.Reader, sink io.Writer) (*Trail, error) {
	entries, err := ReadEntries(existing)
	if err != nil {
		return nil, err
	}
	if err := Verify(entries); err != nil {
		return nil, err
	}

	t := NewTrail(sink)
	if n := len(entries); n > 0 {
		t.last = entries[n-1].Hash
	}
	return t, nil
}

// Record links ev to the chain and writes it to the sink. The chain only
// advances when the write succeeds.
func (t *Trail) Record(ev Event) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := Entry{
		ID:           uuid.NewString(),
		RecordedAt:   time.Now().UTC(),
		PreviousHash: t.last,
		Event:        ev,
	}
	e.Hash = entryHash(e)

	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode audit entry: %w", err)
	}
	if _, err := t.sink.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("failed to write audit entry: %w", err)
	}

	t.last = e.Hash
	t.count++
	return e, nil
}

// LastHash is the hash the next entry will link to.
func (t *Trail) LastHash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Recorded is the number of entries written since the trail was opened.
func (t *Trail) Recorded() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// ReadEntries decodes a JSON-lines audit log.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry on line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// Verify checks that entries form an unbroken chain from the genesis hash.
func Verify(entries []Entry) error {
	prev := genesisHash
	for i, e := range entries {
		if e.PreviousHash != prev {
			return fmt.Errorf("%w: entry %d does not link to its predecessor", ErrBrokenChain, i)
		}
		if entryHash(e) != e.Hash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrBrokenChain, i)
		}
		prev = e.Hash
	}
	return nil
}

func entryHash(e Entry) string {
	payload, _ := json.Marshal(e.Event)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", e.PreviousHash, e.ID, e.RecordedAt.Format(time.RFC3339Nano), payload)))
	return hex.EncodeToString(sum[:])
}
