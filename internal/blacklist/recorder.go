// Package blacklist counts how often each word gets masked, for diagnostic
// export. The counts never influence masking output.
package blacklist

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Entry is one word with its masked-occurrence count.
type Entry struct {
	Word  string `json:"word" db:"word"`
	Count int64  `json:"count" db:"count"`
}

// Recorder accumulates masked-word frequencies in memory. Safe for
// concurrent use. It satisfies the masking core's Recorder interface.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int64

	// dirty tracks words changed since the last Flush, for incremental
	// persistence.
	dirty map[string]struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counts: make(map[string]int64),
		dirty:  make(map[string]struct{}),
	}
}

// Record counts one masked occurrence of word. The word is lowercased and
// cut at its first space before counting; empty results are dropped.
func (r *Recorder) Record(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if i := strings.IndexByte(word, ' '); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return
	}
	r.mu.Lock()
	r.counts[word]++
	r.dirty[word] = struct{}{}
	r.mu.Unlock()
}

// Snapshot returns all entries ordered by count, largest first; ties break
// alphabetically.
func (r *Recorder) Snapshot() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.counts))
	for word, count := range r.counts {
		entries = append(entries, Entry{Word: word, Count: count})
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Word < entries[j].Word
	})
	return entries
}

// Len returns the number of distinct recorded words.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}

// takeDirty returns the entries changed since the previous call and clears
// the dirty set. If persisting them fails the caller re-marks them via
// restoreDirty.
func (r *Recorder) takeDirty() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dirty) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(r.dirty))
	for word := range r.dirty {
		entries = append(entries, Entry{Word: word, Count: r.counts[word]})
	}
	r.dirty = make(map[string]struct{})
	return entries
}

func (r *Recorder) restoreDirty(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.dirty[e.Word] = struct{}{}
	}
}

// Export renders the blacklist in its on-disk format: one `"word", count`
// line per entry, largest count first.
func (r *Recorder) Export() string {
	var sb strings.Builder
	for _, e := range r.Snapshot() {
		fmt.Fprintf(&sb, "%q, %d\n", e.Word, e.Count)
	}
	return sb.String()
}
