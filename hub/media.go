package hub

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// Tags carries the media metadata attached to an item or a playing stream.
type Tags struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration int64  `json:"duration,omitempty"` // seconds
	Cover    string `json:"cover,omitempty"`    // URL served by the transport
}

// Item is one entry of a browser listing.
type Item struct {
	Name string `json:"name"`
	Type string `json:"type"` // "directory", "file", "category", "media"
	Tags *Tags  `json:"tags,omitempty"`
}

// Sort is the requested order of a browser listing: a field name and a
// direction. The zero value means the browser's natural order (by name).
type Sort struct {
	Field string `json:"field,omitempty"` // "name", "title", "artist", "album", "genre", "duration"
	Desc  bool   `json:"desc,omitempty"`
}

// SortItems orders a listing in place per sort. String fields compare
// case-insensitively; an unknown or empty field falls back to the item name,
// as does any tie, so listings stay deterministic.
func SortItems(items []Item, sort Sort) {
	slices.SortStableFunc(items, func(a, b Item) int {
		var c int
		if sort.Field == "duration" {
			c = cmp.Compare(itemTags(a).Duration, itemTags(b).Duration)
		} else {
			c = strings.Compare(strings.ToLower(sortKey(a, sort.Field)), strings.ToLower(sortKey(b, sort.Field)))
		}
		if c == 0 {
			c = strings.Compare(a.Name, b.Name)
		}
		if sort.Desc {
			c = -c
		}
		return c
	})
}

func itemTags(it Item) Tags {
	if it.Tags == nil {
		return Tags{}
	}
	return *it.Tags
}

func sortKey(it Item, field string) string {
	t := itemTags(it)
	switch field {
	case "title":
		if t.Title != "" {
			return t.Title
		}
	case "artist":
		return t.Artist
	case "album":
		return t.Album
	case "genre":
		return t.Genre
	}
	return it.Name
}

// Browser exposes a navigable tree of media. Implementations are provided by
// domain modules and addressed by id through the "browser" method group.
type Browser interface {
	ID() string
	Name() string
	Description() string
	// List returns the children of path, "" being the root, ordered per sort.
	List(ctx context.Context, path string, sort Sort) ([]Item, error)
}

// PlayerState is the playback state of a player.
type PlayerState string

const (
	StateStopped PlayerState = "stopped"
	StatePaused  PlayerState = "paused"
	StatePlaying PlayerState = "playing"
)

// ParsePlayerState validates a wire-supplied state name.
func ParsePlayerState(s string) (PlayerState, bool) {
	switch PlayerState(s) {
	case StateStopped, StatePaused, StatePlaying:
		return PlayerState(s), true
	}
	return "", false
}

// PlayerStatus is a snapshot of a player.
type PlayerStatus struct {
	State    PlayerState `json:"state"`
	Name     string      `json:"name,omitempty"`
	Pos      int64       `json:"pos"`      // seconds
	Duration int64       `json:"duration"` // seconds
	Volume   float64     `json:"volume"`
	Tags     *Tags       `json:"tags,omitempty"`
}

// Player drives one playback pipeline. The pipeline itself (codec, output)
// sits behind the implementation; this interface is only its control plane.
type Player interface {
	ID() string
	Play(ctx context.Context, path string) error
	SetState(ctx context.Context, state PlayerState) (PlayerState, error)
	SetPos(ctx context.Context, pos int64) error
	SetVolume(ctx context.Context, volume float64) (float64, error)
	Status(ctx context.Context) (PlayerStatus, error)
}

// Entry is one element of a playlist.
type Entry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Current bool   `json:"current"`
}

// Playlist is an ordered queue of media, addressed by id through the
// "playlist" method group. Entries are keyed by opaque unique ids.
type Playlist interface {
	ID() string
	Entries(ctx context.Context) ([]Entry, error)
	Add(ctx context.Context, name, path string) (Entry, error)
	Play(ctx context.Context, entryID string) error
	Remove(ctx context.Context, entryID string) error
}
