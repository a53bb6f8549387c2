package content

import (
	"context"
	"fmt"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Post type and taxonomy names. The "accomodation" spelling is the stored
// identifier and must not change.
const (
	PostAccommodation = "post_accomodation"
	PostExperience    = "post_experience"
	PostOffers        = "post_offers"

	CategoryOffers        = "category_offers"
	CategoryExperience    = "category_experience"
	CategoryAccommodation = "category_accomodation"
)

// HookInit is the event both declaration actions are bound to. Taxonomies
// run first.
const (
	HookInit           = "init"
	PriorityTaxonomies = 0
	PriorityPostTypes  = hooks.DefaultPriority
)

// Translator translates label strings.
type Translator interface {
	T(msgid string) string
}

type identity struct{}

func (identity) T(msgid string) string { return msgid }

var supports = []string{"title", "editor", "author", "thumbnail", "excerpt", "page-attributes"}

// postTypeLabels builds the full label set from the plural and singular
// names, translating each string.
func postTypeLabels(tr Translator, plural, singular string) Labels {
	return Labels{
		Name:            tr.T(plural),
		SingularName:    tr.T(singular),
		MenuName:        tr.T(plural),
		ParentItemColon: tr.T("Parent " + singular),
		AllItems:        tr.T("All " + plural),
		ViewItem:        tr.T("View " + singular),
		AddNewItem:      tr.T("Add New " + singular),
		AddNew:          tr.T("Add New"),
		EditItem:        tr.T("Edit " + singular),
		UpdateItem:      tr.T("Update " + singular),
		SearchItems:     tr.T("Search " + singular),
		NotFound:        tr.T("Not Found"),
		NotFoundInTrash: tr.T("Not found in Trash"),
	}
}

// PostTypes returns the accommodation, experience and offer declarations
// with labels translated by tr. A nil tr leaves labels untranslated.
func PostTypes(tr Translator) []PostType {
	if tr == nil {
		tr = identity{}
	}
	decl := func(name, plural, singular, slug string, position int, archive bool) PostType {
		return PostType{
			Name:              name,
			Labels:            postTypeLabels(tr, plural, singular),
			MenuPosition:      position,
			Public:            true,
			PubliclyQueryable: true,
			HasArchive:        archive,
			CanExport:         true,
			CapabilityType:    "page",
			Rewrite:           Rewrite{Slug: slug},
			Supports:          append([]string(nil), supports...),
			Hierarchical:      true,
		}
	}
	return []PostType{
		decl(PostAccommodation, "Accomodation", "Accomodation", "stay", 4, false),
		decl(PostExperience, "Experiences", "Experience", "experiences", 5, true),
		decl(PostOffers, "Offers", "Offer", "offers", 6, true),
	}
}

// Taxonomies returns the category taxonomy declarations.
func Taxonomies() []Taxonomy {
	decl := func(name, objectType string) Taxonomy {
		return Taxonomy{
			Name:       name,
			ObjectType: objectType,
			Labels: Labels{
				Name:        "Category",
				AddNewItem:  "Add New Category",
				NewItemName: "New Category",
			},
			ShowUI:       true,
			ShowTagCloud: false,
			Hierarchical: true,
		}
	}
	return []Taxonomy{
		decl(CategoryOffers, PostOffers),
		decl(CategoryExperience, PostExperience),
		decl(CategoryAccommodation, PostAccommodation),
	}
}

// RegisterPostTypesAction returns the init handler declaring the post types.
// Labels are translated when the action runs, after the text domain loaded.
func RegisterPostTypesAction(reg *Registry, tr Translator) hooks.Action {
	return func(context.Context, ...any) error {
		for _, pt := range PostTypes(tr) {
			if err := reg.RegisterPostType(pt); err != nil {
				return fmt.Errorf("register post types: %w", err)
			}
		}
		return nil
	}
}

// RegisterTaxonomiesAction returns the init handler declaring the taxonomies.
func RegisterTaxonomiesAction(reg *Registry) hooks.Action {
	return func(context.Context, ...any) error {
		for _, tax := range Taxonomies() {
			if err := reg.RegisterTaxonomy(tax); err != nil {
				return fmt.Errorf("register taxonomies: %w", err)
			}
		}
		return nil
	}
}
