package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/friends/internal/friends"
	"github.com/Makepad-fr/friends/internal/model"
	"github.com/Makepad-fr/friends/internal/ui"
)

// listItem adapts a friend to bubbles/list.Item
type listItem struct {
	model.Item
}

// Implement list.Item interface
func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return i.Achievement }
func (i listItem) FilterValue() string { return i.Name }

// Two lines per friend: heart + name, then achievement and date.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 2 }
func (d itemDelegate) Spacing() int                              { return 1 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()
	name := it.Name
	if it.Liked {
		name = t.Liked.Render(name)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, ui.Heart(it.Liked), name)
	fmt.Fprintf(w, "    %s %s", it.Achievement, t.Muted.Render("· "+it.Date))
}

type loadedMsg struct{ err error }

type keyMap struct {
	like, favorites, refresh key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		like:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "like")),
		favorites: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorites only")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	}
}

// modelTUI is the friends screen. Every mutation goes through the store,
// which persists in the background; the list is rebuilt from the store after.
type modelTUI struct {
	store   *friends.Store
	list    list.Model
	spinner spinner.Model
	keys    keyMap

	loading bool
	loadErr error
	width   int
	height  int
}

func newModel(store *friends.Store) modelTUI {
	t := ui.Current()
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = t.Title
	l.Styles.HelpStyle = t.Help
	l.Styles.PaginationStyle = t.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("friend", "friends")

	km := newKeyMap()
	extra := func() []key.Binding { return []key.Binding{km.like, km.favorites, km.refresh} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := modelTUI{
		store:   store,
		list:    l,
		spinner: sp,
		keys:    km,
		loading: !store.Loaded(),
		width:   80,
		height:  24,
	}
	m.refreshList()
	return m
}

// Run starts the interactive feed. The store is loaded inside the program so
// the loading state is visible; the caller owns closing the store.
func Run(store *friends.Store) error {
	p := tea.NewProgram(newModel(store), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m modelTUI) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.store.Load(context.Background())}
	}
}

func (m modelTUI) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width-4, m.height-2)
		return m, nil

	case loadedMsg:
		m.loading = false
		m.loadErr = msg.err
		return m, m.refreshList()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}
		// keys belong to the filter input while typing
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case msg.String() == "q":
			return m, tea.Quit
		case key.Matches(msg, m.keys.like):
			if it, ok := m.list.SelectedItem().(listItem); ok {
				m.store.Toggle(it.ID)
				return m, m.refreshList()
			}
			return m, nil
		case key.Matches(msg, m.keys.favorites):
			m.store.SetFavoritesOnly(!m.store.FavoritesOnly())
			return m, m.refreshList()
		case key.Matches(msg, m.keys.refresh):
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.loadCmd())
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// refreshList mirrors the store's visible feed into the list. Without a
// filter the cursor stays on the same friend; with one, bubbles refilters
// through the returned command and keeps its own cursor.
func (m *modelTUI) refreshList() tea.Cmd {
	var selected string
	if it, ok := m.list.SelectedItem().(listItem); ok {
		selected = it.ID
	}
	snap := m.store.Snapshot()
	visible := snap.Visible()

	items := make([]list.Item, 0, len(visible))
	cursor := 0
	for i, it := range visible {
		if it.ID == selected {
			cursor = i
		}
		items = append(items, listItem{Item: it})
	}
	m.list.Title = header(snap)
	cmd := m.list.SetItems(items)
	if m.list.FilterState() == list.Unfiltered {
		m.list.Select(cursor)
	}
	return cmd
}

func header(snap friends.Snapshot) string {
	t := ui.Current()
	liked, _ := snap.Items.Stats()
	title := "Friends"
	if snap.FavoritesOnly {
		title = "Favorites"
	}
	return fmt.Sprintf("%s   %s %d  %s %d",
		t.Title.Render(title),
		t.Liked.Render(t.SymLiked), liked,
		t.Accent.Render("Total"), len(snap.Items),
	)
}

func (m modelTUI) View() string {
	t := ui.Current()
	if m.loading {
		return ui.PanelString(m.spinner.View() + " loading friends…")
	}

	var b strings.Builder
	if m.loadErr != nil {
		b.WriteString(t.Error.Render("storage unavailable, showing defaults: "+m.loadErr.Error()) + "\n")
	}
	if len(m.list.Items()) == 0 {
		if m.store.FavoritesOnly() {
			b.WriteString(m.list.Title + "\n\n")
			b.WriteString(t.Muted.Render("No favorites yet. Press f to see everyone, space to like.") + "\n")
		} else {
			b.WriteString(t.Muted.Render("Nobody here yet.") + "\n")
		}
		return ui.PanelString(strings.TrimRight(b.String(), "\n"))
	}
	b.WriteString(m.list.View())
	return ui.PanelString(b.String())
}
