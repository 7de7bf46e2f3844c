package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/shuntaka9576/agentoast/internal/group"
)

// filterSource adapts the flattened item list to the fuzzy matcher. Each
// item contributes one searchable line built from whatever a user would
// plausibly type: repo name, agent, pane location, branch, badge, body.
type filterSource struct {
	items []group.Item
}

func (s filterSource) String(i int) string {
	return searchText(s.items[i])
}

func (s filterSource) Len() int {
	return len(s.items)
}

func searchText(it group.Item) string {
	var parts []string
	switch it.Kind {
	case group.ItemHeader:
		if it.Group != nil {
			parts = append(parts, it.Group.Name, it.Group.Key)
		}
	case group.ItemPane:
		if p := it.Row.Pane; p != nil {
			parts = append(parts, string(p.AgentType), p.Pane.ID, p.Pane.Session, p.Pane.WindowName, p.Branch)
		}
		if n := it.Row.Notification; n != nil {
			parts = append(parts, n.Badge, n.Body)
		}
	case group.ItemOrphan:
		if n := it.Row.Notification; n != nil {
			parts = append(parts, n.Badge, n.Body, n.Repo, n.TmuxPane)
		}
	}
	return strings.Join(parts, " ")
}

// Filter is the incremental fuzzy filter over the panel list. While active
// it owns keystrokes; once accepted the query keeps narrowing the list until
// cleared.
type Filter struct {
	input  textinput.Model
	active bool
}

func NewFilter() *Filter {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"
	ti.CharLimit = 80
	return &Filter{input: ti}
}

// Open focuses the text input so keystrokes edit the query.
func (f *Filter) Open() tea.Cmd {
	f.active = true
	return f.input.Focus()
}

// Accept leaves the query applied but returns key handling to the list.
func (f *Filter) Accept() {
	f.active = false
	f.input.Blur()
}

// Clear drops the query entirely.
func (f *Filter) Clear() {
	f.active = false
	f.input.Blur()
	f.input.SetValue("")
}

// Active reports whether the input currently captures keystrokes.
func (f *Filter) Active() bool {
	return f.active
}

// Query returns the trimmed filter text, empty when no filter applies.
func (f *Filter) Query() string {
	return strings.TrimSpace(f.input.Value())
}

func (f *Filter) Update(msg tea.Msg) tea.Cmd {
	if !f.active {
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

// View renders the query line shown in the panel header.
func (f *Filter) View() string {
	if f.active {
		return f.input.View()
	}
	return filterPromptStyle.Render("/") + filterMatchStyle.Render(f.Query())
}

// Apply narrows items to fuzzy matches. Group headers survive when the
// header itself or any of its rows match; a matching header keeps all its
// rows visible.
func (f *Filter) Apply(items []group.Item) []group.Item {
	query := f.Query()
	if query == "" {
		return items
	}

	matches := fuzzy.FindFrom(query, filterSource{items: items})
	matched := make(map[int]bool, len(matches))
	for _, m := range matches {
		matched[m.Index] = true
	}

	keep := make(map[int]bool, len(items))
	for i := 0; i < len(items); i++ {
		if items[i].Kind != group.ItemHeader {
			continue
		}
		end := i + 1
		for end < len(items) && items[end].Kind != group.ItemHeader {
			end++
		}
		headerHit := matched[i]
		anyHit := headerHit
		for j := i + 1; j < end; j++ {
			if matched[j] {
				anyHit = true
			}
		}
		if anyHit {
			keep[i] = true
			for j := i + 1; j < end; j++ {
				if headerHit || matched[j] {
					keep[j] = true
				}
			}
		}
		i = end - 1
	}

	out := make([]group.Item, 0, len(items))
	for i, it := range items {
		if keep[i] {
			out = append(out, it)
		}
	}
	return out
}
