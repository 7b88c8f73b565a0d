// Package models defines the domain types for LoreKeeper projects.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category names one of the three content collections of a project.
type Category string

const (
	Chapters   Category = "chapters"
	Characters Category = "characters"
	Lore       Category = "lore"
)

// Categories lists every category in registry order.
var Categories = []Category{Chapters, Characters, Lore}

// ParseCategory validates a raw category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Chapters, Characters, Lore:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Dir is the project-relative directory holding the category's files.
func (c Category) Dir() string { return string(c) }

// Ext is the file extension used for the category's content files.
func (c Category) Ext() string {
	if c == Chapters {
		return ".md"
	}
	return ".json"
}

// Path returns the project-relative content path for an item id.
func (c Category) Path(id string) string {
	return c.Dir() + "/" + id + c.Ext()
}

// ParsePath splits a project-relative content path into category and id.
// ok is false for paths outside the content directories or with the wrong
// extension for their category.
func ParsePath(rel string) (c Category, id string, ok bool) {
	dir, name, found := strings.Cut(strings.ReplaceAll(rel, "\\", "/"), "/")
	if !found || strings.Contains(name, "/") {
		return "", "", false
	}
	c, err := ParseCategory(dir)
	if err != nil || string(c) != dir {
		return "", "", false
	}
	id, hasExt := strings.CutSuffix(name, c.Ext())
	if !hasExt || id == "" || strings.HasPrefix(id, ".") {
		return "", "", false
	}
	return c, id, true
}

// RegistryItem is one entry of the registry. ID doubles as the file stem.
type RegistryItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	LastModified int64  `json:"lastModified,omitempty"` // unix millis
}

// Registry is the ordered index of every project entity.
type Registry struct {
	Chapters   []RegistryItem `json:"chapters"`
	Characters []RegistryItem `json:"characters"`
	Lore       []RegistryItem `json:"lore"`
}

// Items returns the slice for a category.
func (r *Registry) Items(c Category) []RegistryItem {
	switch c {
	case Chapters:
		return r.Chapters
	case Characters:
		return r.Characters
	case Lore:
		return r.Lore
	}
	return nil
}

// SetItems replaces the slice for a category.
func (r *Registry) SetItems(c Category, items []RegistryItem) {
	switch c {
	case Chapters:
		r.Chapters = items
	case Characters:
		r.Characters = items
	case Lore:
		r.Lore = items
	}
}

// IndexOf returns the position of id in the category, or -1.
func (r *Registry) IndexOf(c Category, id string) int {
	for i, it := range r.Items(c) {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy with non-nil slices.
func (r Registry) Clone() Registry {
	cp := func(in []RegistryItem) []RegistryItem {
		out := make([]RegistryItem, len(in))
		copy(out, in)
		return out
	}
	return Registry{
		Chapters:   cp(r.Chapters),
		Characters: cp(r.Characters),
		Lore:       cp(r.Lore),
	}
}

// Len returns the total number of items across categories.
func (r Registry) Len() int {
	return len(r.Chapters) + len(r.Characters) + len(r.Lore)
}

// Character is the content of characters/{id}.json.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
}

// LoreEntry is the content of lore/{id}.json.
type LoreEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// DecodeSheet checks that data is a character or lore document of category
// c and returns its embedded id.
func DecodeSheet(c Category, data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return "", errors.New("sheet must be a JSON object")
	}
	switch c {
	case Characters:
		var v Character
		if err := json.Unmarshal(data, &v); err != nil {
			return "", err
		}
		return v.ID, nil
	case Lore:
		var v LoreEntry
		if err := json.Unmarshal(data, &v); err != nil {
			return "", err
		}
		return v.ID, nil
	}
	return "", fmt.Errorf("%s items are not JSON sheets", c)
}
