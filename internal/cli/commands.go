package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/friends/internal/friends"
	"github.com/Makepad-fr/friends/internal/model"
	"github.com/Makepad-fr/friends/internal/tui"
	"github.com/Makepad-fr/friends/internal/ui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive feed (default)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
}

func (a *app) runTUI() error {
	if err := tui.Run(friends.Default()); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// load runs the initial read; a storage failure is reported but the defaults
// are still usable, so it never stops the command.
func (a *app) load(ctx context.Context) *friends.Store {
	s := friends.Default()
	if err := s.Load(ctx); err != nil {
		ui.Hint("warning: " + err.Error())
	}
	return s
}

func newListCmd(a *app) *cobra.Command {
	var favoritesOnly, group bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List friends",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.load(cmd.Context())
			s.SetFavoritesOnly(favoritesOnly)
			ui.Panel(a.out(cmd), listLines(s.Snapshot(), group))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&favoritesOnly, "favorites", "f", false, "only liked friends")
	cmd.Flags().BoolVar(&group, "group", false, "group output by liked/other")
	return cmd
}

func newLikeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Toggle like for a friend",
		Args:  exactArgs(1, "friends like <id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.load(cmd.Context())
			id := args[0]
			if !s.Toggle(id) {
				ui.Hint(fmt.Sprintf("no friend with id %q, nothing changed", id))
				ui.Hint("Hint: run `friends ls` to see ids")
				return nil
			}
			if err := s.Flush(cmd.Context()); err != nil {
				// non-fatal: the toggle happened, it just did not stick
				a.log.Warn("toggle not persisted", zap.String("id", id), zap.Error(err))
				ui.Hint("warning: could not save: " + err.Error())
			}
			items := s.Items()
			it := items[items.IndexOf(id)]
			if it.Liked {
				ui.OK("liked " + it.Name)
			} else {
				ui.OK("unliked " + it.Name)
			}
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var it model.Item
	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a friend to the feed",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("usage: friends add <name...>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.load(cmd.Context())
			it.Name = strings.Join(args, " ")
			added, err := s.Add(it)
			if err != nil {
				return usagef("add: %v", err)
			}
			if err := s.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			ui.OK(fmt.Sprintf("added %s (id %s)", added.Name, added.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&it.ID, "id", "", "id to use (default: a new UUID)")
	cmd.Flags().StringVar(&it.Achievement, "achievement", "", "what they achieved")
	cmd.Flags().StringVar(&it.Date, "date", "just now", "when it happened")
	cmd.Flags().StringVar(&it.Image, "image", "", "image reference")
	return cmd
}

func newReseedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reseed",
		Short: "Replace the feed with the default friends",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := friends.Default()
			s.Reseed()
			if err := s.Flush(cmd.Context()); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			ui.OK(fmt.Sprintf("feed reset to %d friends", len(s.Items())))
			return nil
		},
	}
}

// -------------- rendering helpers --------------

func listLines(snap friends.Snapshot, group bool) []string {
	t := ui.Current()
	liked, _ := snap.Items.Stats()
	title := "Friends"
	if snap.FavoritesOnly {
		title = "Favorites"
	}
	header := fmt.Sprintf("%s  %s %d  %s %d",
		t.Title.Render(title),
		t.Liked.Render(t.SymLiked), liked,
		t.Accent.Render("Total"), len(snap.Items),
	)

	lines := []string{header, t.Muted.Render(ui.ProgressBar(liked, len(snap.Items), 28)), ""}
	visible := snap.Visible()
	if group && !snap.FavoritesOnly {
		lines = append(lines, groupLines(visible)...)
	} else {
		lines = append(lines, flatLines(visible, snap.FavoritesOnly)...)
	}
	lines = append(lines, "", t.Muted.Render("Tip: like with `friends like <id>`"))
	return lines
}

func flatLines(items model.Collection, favoritesOnly bool) []string {
	t := ui.Current()
	if len(items) == 0 {
		if favoritesOnly {
			return []string{t.Muted.Render("no favorites yet")}
		}
		return []string{t.Muted.Render("no friends")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		text := it.Name
		if it.Achievement != "" {
			text += " — " + it.Achievement
		}
		if r := []rune(text); len(r) > 80 {
			text = string(r[:77]) + "..."
		}
		out = append(out, fmt.Sprintf("%s %s %s %s",
			t.Muted.Render(fmt.Sprintf("[%s]", it.ID)), ui.Heart(it.Liked), text,
			t.Muted.Render("· "+it.Date)))
	}
	return out
}

func groupLines(items model.Collection) []string {
	t := ui.Current()
	var liked, other model.Collection
	for _, it := range items {
		if it.Liked {
			liked = append(liked, it)
		} else {
			other = append(other, it)
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Liked"))
	if len(liked) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(liked, false)...)
	}
	lines = append(lines, "", t.Accent.Render("Others"))
	if len(other) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(other, false)...)
	}
	return lines
}

func newConfigCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective config (flags, env and file merged)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write {
				if err := a.cfg.Save(a.cfgPath); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				ui.OK("wrote " + a.cfgPath)
				return nil
			}
			enc := yaml.NewEncoder(a.out(cmd))
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "save the effective config to the config file")
	return cmd
}
