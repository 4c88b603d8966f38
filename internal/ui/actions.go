package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shelfmark/shelf/internal/backend"
	"github.com/shelfmark/shelf/internal/records"
)

// ActionTimeout bounds each write issued from the UI.
const ActionTimeout = 10 * time.Second

var errReadOnly = errors.New("no backend configured")

// runAction performs fn off the UI goroutine, then reloads the collections
// so the write shows up even when the realtime feed is down.
func (m Model) runAction(verb string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	refresh := m.refresh
	return func() tea.Msg {
		actx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := fn(actx); err != nil {
			return actionDoneMsg{verb: verb, err: err}
		}
		if refresh != nil {
			if err := refresh(actx); err != nil {
				return actionDoneMsg{verb: verb + ", reload failed", err: err}
			}
		}
		return actionDoneMsg{verb: verb}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	refresh := m.refresh
	ctx := m.ctx
	return func() tea.Msg {
		actx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if err := refresh(actx); err != nil {
			return actionDoneMsg{verb: "reload", err: err}
		}
		return actionDoneMsg{verb: "reloaded"}
	}
}

func (m Model) openCmd(b records.Bookmark) tea.Cmd {
	open := m.openURL
	store := m.actions
	return m.runAction("opened "+records.Domain(b.URL), func(ctx context.Context) error {
		if err := open(b.URL); err != nil {
			return fmt.Errorf("open browser: %w", err)
		}
		if store == nil {
			return nil
		}
		_, err := backend.RecordVisit(ctx, store, b)
		return err
	})
}

func (m Model) copyCmd(b records.Bookmark) tea.Cmd {
	copyText := m.copyText
	return func() tea.Msg {
		if err := copyText(b.URL); err != nil {
			return actionDoneMsg{verb: "copy", err: err}
		}
		return actionDoneMsg{verb: "copied " + truncate(b.URL, 60)}
	}
}

func (m Model) favoriteCmd(b records.Bookmark) tea.Cmd {
	verb := "added to favorites"
	if b.IsFavorite {
		verb = "removed from favorites"
	}
	store := m.actions
	return m.runAction(verb, func(ctx context.Context) error {
		if store == nil {
			return errReadOnly
		}
		_, err := backend.ToggleFavorite(ctx, store, b)
		return err
	})
}

func (m Model) archiveCmd(b records.Bookmark) tea.Cmd {
	verb := "archived"
	if b.IsArchived {
		verb = "restored"
	}
	store := m.actions
	return m.runAction(verb, func(ctx context.Context) error {
		if store == nil {
			return errReadOnly
		}
		_, err := backend.SetArchived(ctx, store, b.ID, !b.IsArchived)
		return err
	})
}

func (m Model) deleteCmd(b records.Bookmark) tea.Cmd {
	store := m.actions
	return m.runAction("deleted", func(ctx context.Context) error {
		if store == nil {
			return errReadOnly
		}
		return store.DeleteBookmark(ctx, b.ID)
	})
}
