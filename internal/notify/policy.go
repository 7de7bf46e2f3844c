// Package notify routes candidate notification events through the
// suppression policy and into the store, the toast surface, and terminal
// focus side effects.
package notify

// Action is the suppression-policy verdict for one candidate event.
type Action int

const (
	// ActionStoreSilent stores the notification with no toast and no focus
	// change. Muted groups land here, force-focus included: mute outranks
	// everything.
	ActionStoreSilent Action = iota

	// ActionFocusOnly switches terminal focus immediately and skips visible
	// history entirely. Force-focus events are never stored.
	ActionFocusOnly

	// ActionStoreOnly stores without a toast because the originating pane
	// is already on screen in front of the user.
	ActionStoreOnly

	// ActionStoreAndToast stores and surfaces a toast.
	ActionStoreAndToast
)

func (a Action) String() string {
	switch a {
	case ActionStoreSilent:
		return "store-silent"
	case ActionFocusOnly:
		return "focus-only"
	case ActionStoreOnly:
		return "store-only"
	case ActionStoreAndToast:
		return "store-and-toast"
	default:
		return "unknown"
	}
}

// Stores reports whether the action inserts into the notification store.
func (a Action) Stores() bool {
	return a != ActionFocusOnly
}

// Toasts reports whether the action surfaces a toast.
func (a Action) Toasts() bool {
	return a == ActionStoreAndToast
}

// Decide applies the suppression table. Rows are evaluated in order: mute
// first, then force-focus, then pane visibility.
func Decide(muted, forceFocus, paneVisible bool) Action {
	switch {
	case muted:
		return ActionStoreSilent
	case forceFocus:
		return ActionFocusOnly
	case paneVisible:
		return ActionStoreOnly
	default:
		return ActionStoreAndToast
	}
}
