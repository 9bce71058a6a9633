// Package paging implements forward keyset pagination for list endpoints.
// Cursors are opaque strings produced by waffle's cursor codec.
package paging

import (
	"strconv"
	"strings"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page is the JSON shape of a paged list response.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ParseLimit reads a "limit" query value, clamping it to [1, MaxLimit].
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Keyset holds a decoded "after" cursor.
type Keyset struct {
	Cursor *wafflemongo.Cursor
	Limit  int
}

// ConfigureKeyset decodes after. An undecodable cursor restarts from the
// first page.
func ConfigureKeyset(after string, limit int) Keyset {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ks := Keyset{Limit: limit}
	if after != "" {
		if c, ok := wafflemongo.DecodeCursor(after); ok {
			ks.Cursor = &c
		}
	}
	return ks
}

// ApplyToFind sorts by (sortField, _id) ascending and fetches one extra row
// to detect a following page.
func (ks Keyset) ApplyToFind(find *options.FindOptions, sortField string) *options.FindOptions {
	return find.SetSort(bson.D{
		{Key: sortField, Value: 1},
		{Key: "_id", Value: 1},
	}).SetLimit(int64(ks.Limit + 1))
}

// Window returns the filter clause that starts after the cursor, or nil.
func (ks Keyset) Window(sortField string) bson.M {
	if ks.Cursor == nil {
		return nil
	}
	return wafflemongo.KeysetWindow(sortField, "gt", ks.Cursor.CI, ks.Cursor.ID)
}

// Build trims rows fetched with ApplyToFind and fills in the next cursor.
func Build[T any](rows []T, limit int, keyFn func(T) string, idFn func(T) primitive.ObjectID) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	return Page[T]{Items: rows, NextCursor: wafflemongo.EncodeCursor(keyFn(last), idFn(last))}
}
