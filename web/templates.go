package web

import (
	"embed"
	"encoding/json"
	"html/template"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/widget"
)

//go:embed templates/*.html
var templateFS embed.FS

// EntityPage is the data of entity_form.html.
type EntityPage struct {
	EntityID  string
	Title     string
	Token     string
	CSRFName  string
	CSRFToken string
	Saved     bool
	Widgets   []WidgetView
	Address   *form.AddressForm
}

// WidgetView is one coordinate field of an entity form.
type WidgetView struct {
	Field  string
	Label  string
	Config widget.WidgetConfig
	Lat    string
	Lng    string
	Zoom   string
}

// SettingsPage is the data of settings_form.html.
type SettingsPage struct {
	Key       string
	Settings  widget.Settings
	Errors    widget.FieldErrors
	CSRFName  string
	CSRFToken string
	Saved     bool
}

// LoginPage is the data of login.html.
type LoginPage struct {
	Username  string
	Next      string
	Error     string
	Disabled  bool
	CSRFName  string
	CSRFToken string
}

var addressLabels = map[string]string{
	form.RoleAddressLine1: "Street address",
	form.RoleAddressLine2: "Street address line 2",
	form.RolePostalCode:   "Postal code",
	form.RoleLocality:     "City",
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"hiddenClass": func(kind, instanceID string) string {
		class := map[string]string{"lat": form.LatClass, "lng": form.LngClass, "zoom": form.ZoomClass}[kind]
		return class + " " + form.ForClass(instanceID)
	},
	"textRoles":        func() []string { return form.TextRoles },
	"addressLabel":     func(role string) string { return addressLabels[role] },
	"addressContainer": func() string { return form.AddressContainerClass },
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("web").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
