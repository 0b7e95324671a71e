package party

import (
	"io"
	"sort"
)

// IDSlice is a sorted slice of IDs.
type IDSlice []ID

// NewIDSlice returns a sorted copy of partyIDs.
func NewIDSlice(partyIDs []ID) IDSlice {
	ids := IDSlice(make([]ID, len(partyIDs)))
	copy(ids, partyIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of parties.
func (partyIDs IDSlice) Len() int { return len(partyIDs) }

// Valid returns true if the slice is sorted, contains no duplicates,
// and no empty id.
func (partyIDs IDSlice) Valid() bool {
	for i := range partyIDs {
		if partyIDs[i] == "" {
			return false
		}
		if i > 0 && partyIDs[i-1] >= partyIDs[i] {
			return false
		}
	}
	return true
}

// Contains returns true if partyIDs contains all the given ids.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) Contains(ids ...ID) bool {
	for _, id := range ids {
		if _, ok := partyIDs.search(id); !ok {
			return false
		}
	}
	return true
}

// GetIndex returns the index of id in partyIDs, or -1 if it is absent.
// Assumes that partyIDs is sorted.
func (partyIDs IDSlice) GetIndex(id ID) int {
	if idx, ok := partyIDs.search(id); ok {
		return idx
	}
	return -1
}

func (partyIDs IDSlice) search(x ID) (int, bool) {
	idx := sort.Search(len(partyIDs), func(i int) bool { return partyIDs[i] >= x })
	if idx < len(partyIDs) && partyIDs[idx] == x {
		return idx, true
	}
	return 0, false
}

// Copy returns an identical copy of the receiver.
func (partyIDs IDSlice) Copy() IDSlice {
	a := make(IDSlice, len(partyIDs))
	copy(a, partyIDs)
	return a
}

// Remove returns a new slice with id removed, or an identical copy if id
// was not present.
func (partyIDs IDSlice) Remove(id ID) IDSlice {
	out := make(IDSlice, 0, len(partyIDs))
	for _, currentID := range partyIDs {
		if currentID != id {
			out = append(out, currentID)
		}
	}
	return out
}

// WriteTo implements io.WriterTo interface.
func (partyIDs IDSlice) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, id := range partyIDs {
		n, err := id.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain.
func (IDSlice) Domain() string {
	return "Party IDs"
}
