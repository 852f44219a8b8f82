// Package form mirrors the parts of a rendered entity form the widget writes
// to: hidden coordinate inputs and the optional address sub-form.
package form

import "strings"

// Hidden coordinate input classes. Each is paired with ForClass(instanceID).
const (
	LatClass  = "geolocation-widget-lat"
	LngClass  = "geolocation-widget-lng"
	ZoomClass = "geolocation-widget-zoom"
)

// Address sub-form roles, used as CSS classes on its inputs and selects.
const (
	RoleCountry            = "country"
	RolePostalCode         = "postal-code"
	RoleAdministrativeArea = "administrative-area"
	RoleLocality           = "locality"
	RoleAddressLine1       = "address-line1"
	RoleAddressLine2       = "address-line2"
)

// AddressContainerClass marks the element wrapping the address sub-form.
const AddressContainerClass = "field--type-address"

// TextRoles are the address inputs that hold free text.
var TextRoles = []string{RoleAddressLine1, RoleAddressLine2, RolePostalCode, RoleLocality}

// ForClass returns the class scoping an input to one widget instance.
func ForClass(instanceID string) string {
	return "for--" + instanceID
}

// HiddenSelector addresses a hidden coordinate input of one widget instance.
func HiddenSelector(class, instanceID string) string {
	return "input." + class + "." + ForClass(instanceID)
}

// AddressSelector addresses an element of the address sub-form by role.
func AddressSelector(role string) string {
	tag := "input"
	if role == RoleCountry || role == RoleAdministrativeArea {
		tag = "select"
	}
	return "." + AddressContainerClass + " " + tag + "." + role
}

// Option is one entry of a select element.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// AddressForm is a snapshot of an address sub-form.
type AddressForm struct {
	Country   string   `json:"country"`
	Countries []Option `json:"countries,omitempty"`
	// Inputs holds the text inputs present, keyed by role.
	Inputs map[string]string `json:"inputs"`
	// AdministrativeAreas is nil when the country has no region selector.
	AdministrativeAreas []Option `json:"administrative_areas,omitempty"`
	AdministrativeArea  string   `json:"administrative_area,omitempty"`
}

// Clone returns a deep copy.
func (a AddressForm) Clone() AddressForm {
	out := a
	out.Countries = append([]Option(nil), a.Countries...)
	out.AdministrativeAreas = append([]Option(nil), a.AdministrativeAreas...)
	if a.Inputs != nil {
		out.Inputs = make(map[string]string, len(a.Inputs))
		for k, v := range a.Inputs {
			out.Inputs[k] = v
		}
	}
	return out
}

// SameCountry reports whether the sub-form country equals code, ignoring case.
func (a AddressForm) SameCountry(code string) bool {
	return strings.EqualFold(strings.TrimSpace(a.Country), strings.TrimSpace(code))
}

// OffersCountry reports whether the country selector has an option for code.
// A sub-form without an option list accepts any country.
func (a AddressForm) OffersCountry(code string) bool {
	if len(a.Countries) == 0 {
		return true
	}
	code = strings.TrimSpace(code)
	for _, opt := range a.Countries {
		if strings.EqualFold(opt.Value, code) {
			return true
		}
	}
	return false
}

// ChangeKind names the client-side operation that mirrors a write.
type ChangeKind string

const (
	ChangeSetValue     ChangeKind = "set_value"
	ChangeSelectOption ChangeKind = "select_option"
)

// Change is one write to the region, replayed in the browser.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Selector string     `json:"selector"`
	Value    string     `json:"value"`
	// Trigger asks the client to dispatch a change event after writing.
	Trigger bool `json:"trigger,omitempty"`
}

// Region is the writable surface of a rendered form.
// Every method tolerates the target being absent and reports whether it wrote.
type Region interface {
	// SetHidden writes a hidden coordinate input of one widget instance.
	SetHidden(class, instanceID, value string) bool
	// Address returns a snapshot of the address sub-form, if the form has one.
	Address() (AddressForm, bool)
	// SetAddressInput writes a text input of the address sub-form.
	SetAddressInput(role, value string) bool
	// SelectAdministrativeArea selects the region option whose visible text is text.
	SelectAdministrativeArea(text string) bool
	// SelectCountry changes the country selector, which makes the client
	// rebuild the sub-form.
	SelectCountry(code string) bool
	// OnRerendered runs fn once, after the address sub-form is next rebuilt.
	// The returned func cancels the subscription.
	OnRerendered(fn func()) (cancel func())
}
