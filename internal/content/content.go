// Package content declares the site's custom post types and their category
// taxonomies, and holds the registry the host keeps them in.
package content

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrDuplicateType is returned when a post type or taxonomy name is
// registered twice.
var ErrDuplicateType = errors.New("content: type already registered")

// Labels are the admin UI strings for a post type or taxonomy. Unset labels
// are omitted.
type Labels struct {
	Name            string `json:"name,omitempty"`
	SingularName    string `json:"singular_name,omitempty"`
	MenuName        string `json:"menu_name,omitempty"`
	ParentItemColon string `json:"parent_item_colon,omitempty"`
	AllItems        string `json:"all_items,omitempty"`
	ViewItem        string `json:"view_item,omitempty"`
	AddNewItem      string `json:"add_new_item,omitempty"`
	AddNew          string `json:"add_new,omitempty"`
	EditItem        string `json:"edit_item,omitempty"`
	UpdateItem      string `json:"update_item,omitempty"`
	SearchItems     string `json:"search_items,omitempty"`
	NotFound        string `json:"not_found,omitempty"`
	NotFoundInTrash string `json:"not_found_in_trash,omitempty"`
	NewItemName     string `json:"new_item_name,omitempty"`
}

// Rewrite holds the permalink settings of a post type.
type Rewrite struct {
	Slug string `json:"slug"`
}

// PostType is a custom content type declaration.
type PostType struct {
	Name              string   `json:"name"`
	Labels            Labels   `json:"labels"`
	MenuPosition      int      `json:"menu_position"`
	Public            bool     `json:"public"`
	PubliclyQueryable bool     `json:"publicly_queryable"`
	HasArchive        bool     `json:"has_archive"`
	CanExport         bool     `json:"can_export"`
	CapabilityType    string   `json:"capability_type"`
	Rewrite           Rewrite  `json:"rewrite"`
	Supports          []string `json:"supports"`
	Hierarchical      bool     `json:"hierarchical"`
}

// Taxonomy is a classification attached to a post type.
type Taxonomy struct {
	Name         string `json:"name"`
	ObjectType   string `json:"object_type"`
	Labels       Labels `json:"labels"`
	ShowUI       bool   `json:"show_ui"`
	ShowTagCloud bool   `json:"show_tagcloud"`
	Hierarchical bool   `json:"hierarchical"`
}

// Registry is the host's content model. Declarations are kept in
// registration order. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	postTypes  []PostType
	taxonomies []Taxonomy
	logger     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "content").Logger(),
	}
}

// RegisterPostType adds pt. Names must be unique.
func (r *Registry) RegisterPostType(pt PostType) error {
	if pt.Name == "" {
		return fmt.Errorf("content: post type name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.postTypes {
		if existing.Name == pt.Name {
			return fmt.Errorf("%w: post type %q", ErrDuplicateType, pt.Name)
		}
	}
	pt.Supports = append([]string(nil), pt.Supports...)
	r.postTypes = append(r.postTypes, pt)
	r.logger.Debug().Str("post_type", pt.Name).Str("slug", pt.Rewrite.Slug).Msg("post type registered")
	return nil
}

// RegisterTaxonomy adds tax. The object type does not have to be registered
// yet; taxonomies are declared before their post types.
func (r *Registry) RegisterTaxonomy(tax Taxonomy) error {
	if tax.Name == "" {
		return fmt.Errorf("content: taxonomy name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.taxonomies {
		if existing.Name == tax.Name {
			return fmt.Errorf("%w: taxonomy %q", ErrDuplicateType, tax.Name)
		}
	}
	r.taxonomies = append(r.taxonomies, tax)
	r.logger.Debug().Str("taxonomy", tax.Name).Str("object_type", tax.ObjectType).Msg("taxonomy registered")
	return nil
}

// PostTypes returns a snapshot of the registered post types.
func (r *Registry) PostTypes() []PostType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PostType, len(r.postTypes))
	copy(out, r.postTypes)
	return out
}

// Taxonomies returns a snapshot of the registered taxonomies.
func (r *Registry) Taxonomies() []Taxonomy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Taxonomy, len(r.taxonomies))
	copy(out, r.taxonomies)
	return out
}

// PostType looks up a post type by name.
func (r *Registry) PostType(name string) (PostType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pt := range r.postTypes {
		if pt.Name == name {
			return pt, true
		}
	}
	return PostType{}, false
}

// TaxonomiesFor returns the taxonomies attached to the named post type.
func (r *Registry) TaxonomiesFor(postType string) []Taxonomy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Taxonomy
	for _, tax := range r.taxonomies {
		if tax.ObjectType == postType {
			out = append(out, tax)
		}
	}
	return out
}
