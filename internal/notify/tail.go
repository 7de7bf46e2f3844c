package notify

import (
	"github.com/shuntaka9576/agentoast/internal/store"
)

// Tail follows rows appended to the store, including rows written by other
// processes. Each Next call returns the rows inserted since the previous
// call, oldest first, and advances the cursor. Replace-by-pane inserts get a
// fresh id, so a replacement surfaces as a new row. Not safe for concurrent
// use; each consumer owns its own Tail.
type Tail struct {
	store  *store.Store
	lastID int64
}

// NewTail starts a tail at the store's current high-water mark, so only rows
// inserted after construction are reported.
func NewTail(st *store.Store) (*Tail, error) {
	id, err := st.MaxID()
	if err != nil {
		return nil, err
	}
	return &Tail{store: st, lastID: id}, nil
}

// Next returns rows inserted since the last call, oldest first.
func (t *Tail) Next() ([]store.Notification, error) {
	rows, err := t.store.ListAfter(t.lastID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if last := rows[len(rows)-1].ID; last > t.lastID {
		t.lastID = last
	}
	return rows, nil
}
