package core

import (
	"fmt"
	"strings"
)

// DefaultCategoryNames is the fixed category set, in display order.
var DefaultCategoryNames = []string{
	"Food & Drink",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Healthcare",
	"Utilities",
	"Travel",
	"Education",
	"Business",
	"Other",
}

// OtherCategory is the catch-all category name.
const OtherCategory = "Other"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryRef names a category either by its display name or by its id.
// Refs are resolved against a Catalog (or the categories table) before an
// expense is stored; an unresolved ref never reaches a stored Expense.
type CategoryRef struct {
	name string
	id   int64
}

func ByName(name string) CategoryRef { return CategoryRef{name: strings.TrimSpace(name)} }
func ByID(id int64) CategoryRef { return CategoryRef{id: id} }

func (r CategoryRef) IsByID() bool { return r.id != 0 }
func (r CategoryRef) ID() int64 { return r.id }
func (r CategoryRef) Name() string { return r.name }
func (r CategoryRef) IsZero() bool { return r.id == 0 && r.name == "" }

func (r CategoryRef) String() string {
	if r.IsByID() {
		return fmt.Sprintf("#%d", r.id)
	}
	return r.name
}

// Catalog is an ordered, name-unique set of categories.
type Catalog struct {
	list   []Category
	byName map[string]Category
	byID   map[int64]Category
}

// NewCatalog builds the default catalog followed by any extra names.
// Duplicate names (case-insensitive) and blanks are ignored.
func NewCatalog(extra ...string) *Catalog {
	c := &Catalog{
		byName: make(map[string]Category),
		byID:   make(map[int64]Category),
	}
	for _, n := range DefaultCategoryNames {
		c.add(n)
	}
	for _, n := range extra {
		c.add(n)
	}
	return c
}

// CatalogFrom wraps categories already loaded from storage.
func CatalogFrom(cats []Category) *Catalog {
	c := &Catalog{
		byName: make(map[string]Category),
		byID:   make(map[int64]Category),
	}
	for _, cat := range cats {
		key := strings.ToLower(cat.Name)
		if _, dup := c.byName[key]; dup {
			continue
		}
		c.list = append(c.list, cat)
		c.byName[key] = cat
		c.byID[cat.ID] = cat
	}
	return c
}

func (c *Catalog) add(name string) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)
	if name == "" {
		return
	}
	if _, dup := c.byName[key]; dup {
		return
	}
	cat := Category{ID: int64(len(c.list) + 1), Name: name}
	c.list = append(c.list, cat)
	c.byName[key] = cat
	c.byID[cat.ID] = cat
}

// All returns the categories in catalog order.
func (c *Catalog) All() []Category {
	out := make([]Category, len(c.list))
	copy(out, c.list)
	return out
}

// Names returns the category names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.list))
	for i, cat := range c.list {
		out[i] = cat.Name
	}
	return out
}

// Lookup finds a category by case-insensitive name.
func (c *Catalog) Lookup(name string) (Category, bool) {
	cat, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return cat, ok
}

// Resolve turns a ref into a concrete category.
func (c *Catalog) Resolve(ref CategoryRef) (Category, error) {
	if ref.IsZero() {
		return Category{}, ErrMissingCategory
	}
	if ref.IsByID() {
		if cat, ok := c.byID[ref.ID()]; ok {
			return cat, nil
		}
		return Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, ref)
	}
	if cat, ok := c.Lookup(ref.Name()); ok {
		return cat, nil
	}
	return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, ref.Name())
}
