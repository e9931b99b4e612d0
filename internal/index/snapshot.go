package index

import (
	"sort"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// snapshot is the in-memory entry set with its secondary indexes.
// Entries are immutable once inserted; a replace swaps the pointer.
type snapshot struct {
	entries map[string]*domain.IndexEntry
	byHash  map[string]map[string]struct{}
	byDoc   map[string]map[string]struct{}
}

func newSnapshot() *snapshot {
	return &snapshot{
		entries: make(map[string]*domain.IndexEntry),
		byHash:  make(map[string]map[string]struct{}),
		byDoc:   make(map[string]map[string]struct{}),
	}
}

func (s *snapshot) put(e *domain.IndexEntry) {
	if old, ok := s.entries[e.ID]; ok {
		s.unlink(old)
	}
	s.entries[e.ID] = e
	link(s.byHash, e.ContentHash, e.ID)
	link(s.byDoc, e.DocumentID, e.ID)
}

func (s *snapshot) remove(id string) {
	if old, ok := s.entries[id]; ok {
		s.unlink(old)
		delete(s.entries, id)
	}
}

func (s *snapshot) unlink(e *domain.IndexEntry) {
	unlink(s.byHash, e.ContentHash, e.ID)
	unlink(s.byDoc, e.DocumentID, e.ID)
}

// isDuplicate reports whether an earlier-inserted entry shares e's content hash.
func (s *snapshot) isDuplicate(e *domain.IndexEntry) bool {
	group := s.byHash[e.ContentHash]
	if len(group) < 2 {
		return false
	}
	for id := range group {
		if other := s.entries[id]; other != nil && other.Seq < e.Seq {
			return true
		}
	}
	return false
}

// duplicateGroups returns, per content hash with more than one entry,
// the IDs to remove: everything except the lowest Seq.
// Groups are ordered by their retained entry's Seq for deterministic runs.
func (s *snapshot) duplicateGroups() [][]string {
	type group struct {
		keepSeq int64
		victims []string
	}
	var groups []group

	for _, ids := range s.byHash {
		if len(ids) < 2 {
			continue
		}
		members := make([]*domain.IndexEntry, 0, len(ids))
		for id := range ids {
			members = append(members, s.entries[id])
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })

		victims := make([]string, 0, len(members)-1)
		for _, m := range members[1:] {
			victims = append(victims, m.ID)
		}
		groups = append(groups, group{keepSeq: members[0].Seq, victims: victims})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].keepSeq < groups[j].keepSeq })
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.victims
	}
	return out
}

// documentEntries returns a document's entries ordered by position.
func (s *snapshot) documentEntries(documentID string) []*domain.IndexEntry {
	ids := s.byDoc[documentID]
	out := make([]*domain.IndexEntry, 0, len(ids))
	for id := range ids {
		out = append(out, s.entries[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ordered returns all entries by insertion order.
func (s *snapshot) ordered() []*domain.IndexEntry {
	out := make([]*domain.IndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *snapshot) duplicateCount() int {
	n := 0
	for _, ids := range s.byHash {
		if len(ids) > 1 {
			n += len(ids) - 1
		}
	}
	return n
}

func link(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func unlink(m map[string]map[string]struct{}, key, id string) {
	if set, ok := m[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}
