package protocol

import "time"

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Status      string    `json:"status"`
	Plugin      string    `json:"plugin"`
	Version     string    `json:"version"`
	Active      bool      `json:"active"`
	Uptime      string    `json:"uptime"`
	NATSRunning bool      `json:"nats_running"`
	StartedAt   time.Time `json:"started_at"`
	HookCount   int       `json:"hook_count"`
	ScriptCount int       `json:"script_count"`
	OptionsRev  uint64    `json:"options_revision"`
}

// HookInfo is one entry in the GET /api/v1/hooks response.
type HookInfo struct {
	Kind     string `json:"kind"`
	Event    string `json:"event"`
	ID       string `json:"id,omitempty"`
	Priority int    `json:"priority"`
	Arity    int    `json:"arity"`
}

// HooksResponse is returned by GET /api/v1/hooks.
type HooksResponse struct {
	Hooks []HookInfo `json:"hooks"`
}

// PostTypeInfo summarises a registered post type.
type PostTypeInfo struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Slug         string   `json:"slug"`
	MenuPosition int      `json:"menu_position"`
	HasArchive   bool     `json:"has_archive"`
	Taxonomies   []string `json:"taxonomies"`
}

// ContentResponse is returned by GET /api/v1/content.
type ContentResponse struct {
	PostTypes []PostTypeInfo `json:"post_types"`
}

// OptionsPage is one entry in the GET /api/v1/options/pages response.
type OptionsPage struct {
	Title      string         `json:"page_title"`
	MenuTitle  string         `json:"menu_title"`
	Slug       string         `json:"menu_slug,omitempty"`
	Parent     string         `json:"parent_slug,omitempty"`
	Capability string         `json:"capability,omitempty"`
	Fields     []OptionsField `json:"fields,omitempty"`
}

// OptionsField reports whether a settings field has a value. Values are
// never returned.
type OptionsField struct {
	Key string `json:"key"`
	Set bool   `json:"set"`
}

// OptionsPagesResponse is returned by GET /api/v1/options/pages.
type OptionsPagesResponse struct {
	Pages []OptionsPage `json:"pages"`
}

// ScriptInfo is one entry in the GET /api/v1/scripts response.
type ScriptInfo struct {
	Name     string    `json:"name"`
	FilePath string    `json:"file_path"`
	Bindings int       `json:"bindings"`
	Events   []string  `json:"events"`
	LoadedAt time.Time `json:"loaded_at"`
	Calls    int64     `json:"calls"`
	Errors   int64     `json:"errors"`
}

// ScriptsResponse is returned by GET /api/v1/scripts.
type ScriptsResponse struct {
	Scripts []ScriptInfo `json:"scripts"`
}

// ActivationResponse is returned by the plugin activate and deactivate
// endpoints.
type ActivationResponse struct {
	Plugin string `json:"plugin"`
	Active bool   `json:"active"`
}
