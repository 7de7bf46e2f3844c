package group

// ItemKind is the type of one line in the flattened navigation list.
type ItemKind int

const (
	ItemHeader ItemKind = iota
	ItemPane
	ItemOrphan
)

// Item is one line of the flattened view: a group header or a row.
type Item struct {
	Kind     ItemKind
	GroupKey string

	// Group is set for headers.
	Group *Group

	// Row is set for pane and orphan items.
	Row *Row
}

// Identity names an item by what it is, not where it sits, so selection
// survives rebuilds that reorder or remove lines.
type Identity struct {
	Kind           ItemKind
	GroupKey       string
	PaneID         string
	NotificationID int64
}

// Identity derives the stable identity of an item.
func (it Item) Identity() Identity {
	id := Identity{Kind: it.Kind, GroupKey: it.GroupKey}
	if it.Row != nil {
		if it.Row.Pane != nil {
			id.PaneID = it.Row.Pane.Pane.ID
		}
		if it.Row.Notification != nil {
			id.NotificationID = it.Row.Notification.ID
		}
	}
	return id
}

// Flatten renders groups into one navigable list of headers and rows.
func Flatten(groups []Group) []Item {
	var items []Item
	for i := range groups {
		g := &groups[i]
		items = append(items, Item{Kind: ItemHeader, GroupKey: g.Key, Group: g})
		for j := range g.Rows {
			r := &g.Rows[j]
			kind := ItemPane
			if r.Kind == RowOrphan {
				kind = ItemOrphan
			}
			items = append(items, Item{Kind: kind, GroupKey: g.Key, Row: r})
		}
	}
	return items
}

// FindIndex locates the item matching a previous selection. Exact identity
// wins; failing that, the same pane or notification is found wherever it
// moved, including a pane row whose notification went orphan or the reverse.
// Returns -1 when nothing related remains.
func FindIndex(items []Item, want Identity) int {
	for i, it := range items {
		if it.Identity() == want {
			return i
		}
	}
	if want.PaneID != "" {
		for i, it := range items {
			if it.Row != nil && it.Row.Pane != nil && it.Row.Pane.Pane.ID == want.PaneID {
				return i
			}
		}
	}
	if want.NotificationID != 0 {
		for i, it := range items {
			if it.Row != nil && it.Row.Notification != nil && it.Row.Notification.ID == want.NotificationID {
				return i
			}
		}
	}
	if want.Kind == ItemHeader && want.GroupKey != "" {
		for i, it := range items {
			if it.Kind == ItemHeader && it.GroupKey == want.GroupKey {
				return i
			}
		}
	}
	return -1
}

// ClampIndex keeps a fallback cursor inside the list when FindIndex loses
// the selection entirely.
func ClampIndex(items []Item, idx int) int {
	if len(items) == 0 {
		return -1
	}
	if idx < 0 {
		return 0
	}
	if idx >= len(items) {
		return len(items) - 1
	}
	return idx
}
