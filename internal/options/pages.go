package options

// Option keys read by the tracking snippets.
const (
	KeyPixel      = "facebook_pixel"
	KeyAnalytics  = "ga_tracking_id"
	KeyTagManager = "gtm_tracking_id"
	KeyHotjar     = "hotjar_tracking_id"
)

// Page is an admin settings screen grouping option fields.
type Page struct {
	Title      string   `json:"page_title"`
	MenuTitle  string   `json:"menu_title"`
	Slug       string   `json:"menu_slug,omitempty"`
	Parent     string   `json:"parent_slug,omitempty"`
	Capability string   `json:"capability,omitempty"`
	Redirect   bool     `json:"redirect"`
	Fields     []string `json:"fields,omitempty"`
}

// RootSlug is the slug of the top-level settings page.
const RootSlug = "theme-general-settings"

// Pages returns the plugin's settings screens, the root page first.
func Pages() []Page {
	return []Page{
		{
			Title:      "Flux DNA Settings",
			MenuTitle:  "Flux DNA",
			Slug:       RootSlug,
			Capability: "edit_posts",
		},
		{
			Title:     "Analytics Settings",
			MenuTitle: "Analytics",
			Parent:    RootSlug,
			Fields:    []string{KeyAnalytics, KeyTagManager, KeyPixel, KeyHotjar},
		},
		{
			Title:     "Brand Settings",
			MenuTitle: "Brand",
			Parent:    RootSlug,
		},
	}
}
