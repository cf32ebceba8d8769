package model

import (
	"errors"
	"fmt"
	"strings"
)

// Item is one entry of the friends feed.
// ID never changes once created; Liked is the only field flipped at runtime.
type Item struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Achievement string `json:"achievement" yaml:"achievement"`
	Date        string `json:"date" yaml:"date"`
	Image       string `json:"image" yaml:"image"` // asset name or URL, never loaded here
	Liked       bool   `json:"liked" yaml:"liked"`
}

var (
	ErrMissingID   = errors.New("item has no id")
	ErrMissingName = errors.New("item has no name")
	ErrDuplicateID = errors.New("duplicate id")
)

// Validate checks the fields a feed entry cannot live without.
func (it Item) Validate() error {
	if strings.TrimSpace(it.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(it.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// Collection is the ordered feed. Order is display order.
type Collection []Item

// Clone returns an independent copy. Items hold no pointers so a shallow copy is enough.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Validate checks every item and that ids are unique.
func (c Collection) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, it := range c {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("entry %d: %w %q", i, ErrDuplicateID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// IndexOf returns the position of id, or -1.
func (c Collection) IndexOf(id string) int {
	for i, it := range c {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Favorites is the liked subset, in feed order.
func (c Collection) Favorites() Collection {
	out := make(Collection, 0, len(c))
	for _, it := range c {
		if it.Liked {
			out = append(out, it)
		}
	}
	return out
}

// Stats counts liked and other entries.
func (c Collection) Stats() (liked, other int) {
	for _, it := range c {
		if it.Liked {
			liked++
		} else {
			other++
		}
	}
	return
}
