package exam

import "strings"

// CategoryIndex is an id-indexed category table. Parents are referenced by
// id; only one level of nesting is used by the product.
type CategoryIndex struct {
	byID     map[string]Category
	children map[string][]string
}

func NewCategoryIndex(cats []Category) *CategoryIndex {
	idx := &CategoryIndex{
		byID:     make(map[string]Category, len(cats)),
		children: map[string][]string{},
	}
	for _, c := range cats {
		idx.byID[c.ID] = c
		if c.ParentID != nil {
			idx.children[*c.ParentID] = append(idx.children[*c.ParentID], c.ID)
		}
	}
	return idx
}

func (x *CategoryIndex) Get(id string) (Category, bool) {
	if x == nil {
		return Category{}, false
	}
	c, ok := x.byID[id]
	return c, ok
}

// Children returns the direct subcategories of id.
func (x *CategoryIndex) Children(id string) []string {
	if x == nil {
		return nil
	}
	return x.children[id]
}

// Path renders "Parent > Child" for id, or the raw id when unknown.
func (x *CategoryIndex) Path(id string) string {
	c, ok := x.Get(id)
	if !ok {
		return id
	}
	if c.ParentID == nil {
		return c.Name
	}
	parent, ok := x.Get(*c.ParentID)
	if !ok {
		return c.Name
	}
	return parent.Name + " > " + c.Name
}

// Describe joins the paths of ids with " AND ", matching rule semantics.
func (x *CategoryIndex) Describe(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, x.Path(id))
	}
	return strings.Join(parts, " AND ")
}
