package address

import (
	"testing"

	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inputs(t *testing.T, doc *form.Document) map[string]string {
	t.Helper()
	sub, ok := doc.Address()
	require.True(t, ok)
	return sub.Inputs
}

func TestBridge_AppliesDetails(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	bridge := NewBridge(zerolog.Nop())

	outcome := bridge.Apply(doc, map[string]string{
		"postcode":     "12345",
		"city":         "Springfield",
		"road":         "Main St",
		"house_number": "42",
		"state":        "Oregon",
		"country_code": "us",
	})

	assert.Equal(t, Applied, outcome)
	got := inputs(t, doc)
	assert.Equal(t, "Main St 42", got[form.RoleAddressLine1])
	assert.Equal(t, "12345", got[form.RolePostalCode])
	assert.Equal(t, "Springfield", got[form.RoleLocality])
	assert.Equal(t, "", got[form.RoleAddressLine2])

	sub, _ := doc.Address()
	assert.Equal(t, "OR", sub.AdministrativeArea)
}

func TestBridge_FieldPriority(t *testing.T) {
	tests := []struct {
		name    string
		address map[string]string
		role    string
		want    string
	}{
		{
			name:    "town when no city",
			address: map[string]string{"town": "Smallville", "county": "Lowell"},
			role:    form.RoleLocality,
			want:    "Smallville",
		},
		{
			name:    "city beats village",
			address: map[string]string{"village": "Hamlet", "city": "Metropolis"},
			role:    form.RoleLocality,
			want:    "Metropolis",
		},
		{
			name:    "neighbourhood as last resort",
			address: map[string]string{"neighbourhood": "Kreuzberg"},
			role:    form.RoleLocality,
			want:    "Kreuzberg",
		},
		{
			name:    "footway when no road",
			address: map[string]string{"footway": "Riverside Path"},
			role:    form.RoleAddressLine1,
			want:    "Riverside Path",
		},
		{
			name:    "road beats pedestrian",
			address: map[string]string{"pedestrian": "Mall", "road": "High St"},
			role:    form.RoleAddressLine1,
			want:    "High St",
		},
		{
			name:    "building fills line 2",
			address: map[string]string{"road": "High St", "building": "Tower A"},
			role:    form.RoleAddressLine2,
			want:    "Tower A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := form.NewDocument(SubForm("US"))
			NewBridge(zerolog.Nop()).Apply(doc, tt.address)
			assert.Equal(t, tt.want, inputs(t, doc)[tt.role])
		})
	}
}

func TestBridge_StateMatchedByText(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	NewBridge(zerolog.Nop()).Apply(doc, map[string]string{"state": "WA", "country_code": "us"})

	sub, _ := doc.Address()
	assert.Empty(t, sub.AdministrativeArea, "option values are not matched")
}

func TestBridge_NoSubForm(t *testing.T) {
	doc := form.NewDocument(nil)
	outcome := NewBridge(zerolog.Nop()).Apply(doc, map[string]string{"postcode": "12345"})
	assert.Equal(t, Absent, outcome)
}

func TestBridge_EmptyAddress(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	outcome := NewBridge(zerolog.Nop()).Apply(doc, nil)
	assert.Equal(t, NoAddress, outcome)
}

func TestBridge_MissingInputsSkipped(t *testing.T) {
	sub := SubForm("US")
	delete(sub.Inputs, form.RoleAddressLine1)
	delete(sub.Inputs, form.RoleAddressLine2)
	doc := form.NewDocument(sub)

	outcome := NewBridge(zerolog.Nop()).Apply(doc, map[string]string{
		"road": "Main St", "house_number": "42", "postcode": "12345", "country_code": "us",
	})

	assert.Equal(t, Applied, outcome)
	got := inputs(t, doc)
	assert.Equal(t, "12345", got[form.RolePostalCode])
	_, hasLine1 := got[form.RoleAddressLine1]
	assert.False(t, hasLine1)
}

func TestBridge_CountryMismatchDefers(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	bridge := NewBridge(zerolog.Nop())

	var changes []form.Change
	doc.SetListener(func(c form.Change) { changes = append(changes, c) })

	outcome := bridge.Apply(doc, map[string]string{
		"country_code": "de",
		"postcode":     "10117",
		"city":         "Berlin",
		"road":         "Unter den Linden",
		"house_number": "77",
	})

	require.Equal(t, Deferred, outcome)
	assert.True(t, bridge.Pending(doc))

	sub, _ := doc.Address()
	assert.Equal(t, "DE", sub.Country)
	assert.Empty(t, sub.Inputs[form.RoleLocality], "details wait for the re-render")

	require.Len(t, changes, 1)
	assert.Equal(t, form.ChangeSelectOption, changes[0].Kind)
	assert.Equal(t, "DE", changes[0].Value)
	assert.True(t, changes[0].Trigger)

	doc.ReplaceAddress(SubForm("DE"))

	got := inputs(t, doc)
	assert.Equal(t, "Berlin", got[form.RoleLocality])
	assert.Equal(t, "10117", got[form.RolePostalCode])
	assert.Equal(t, "Unter den Linden 77", got[form.RoleAddressLine1])
	assert.False(t, bridge.Pending(doc))
}

func TestBridge_UnofferedCountryAppliesInPlace(t *testing.T) {
	doc := form.NewDocument(SubForm("DE"))
	bridge := NewBridge(zerolog.Nop())

	var changes []form.Change
	doc.SetListener(func(c form.Change) { changes = append(changes, c) })

	outcome := bridge.Apply(doc, map[string]string{
		"country_code": "pl",
		"postcode":     "00-001",
		"city":         "Warszawa",
	})

	require.Equal(t, Applied, outcome)
	assert.False(t, bridge.Pending(doc))

	sub, _ := doc.Address()
	assert.Equal(t, "DE", sub.Country, "selector has no option for PL")
	assert.Equal(t, "Warszawa", sub.Inputs[form.RoleLocality])
	assert.Equal(t, "00-001", sub.Inputs[form.RolePostalCode])
	for _, c := range changes {
		assert.NotEqual(t, form.AddressSelector(form.RoleCountry), c.Selector)
	}
}

func TestBridge_NewerResultReplacesPending(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	bridge := NewBridge(zerolog.Nop())

	bridge.Apply(doc, map[string]string{"country_code": "de", "city": "Berlin"})
	bridge.Apply(doc, map[string]string{"country_code": "fr", "city": "Paris"})

	doc.ReplaceAddress(SubForm("FR"))

	assert.Equal(t, "Paris", inputs(t, doc)[form.RoleLocality])
}

func TestBridge_ForgetDropsPending(t *testing.T) {
	doc := form.NewDocument(SubForm("US"))
	bridge := NewBridge(zerolog.Nop())

	bridge.Apply(doc, map[string]string{"country_code": "de", "city": "Berlin"})
	bridge.Forget(doc)
	doc.ReplaceAddress(SubForm("DE"))

	assert.Empty(t, inputs(t, doc)[form.RoleLocality])
}

func TestSubForm(t *testing.T) {
	us := SubForm("us")
	assert.Equal(t, "US", us.Country)
	assert.NotEmpty(t, us.AdministrativeAreas)
	assert.Len(t, us.Inputs, 4)

	de := SubForm("DE")
	assert.Nil(t, de.AdministrativeAreas)

	assert.True(t, SupportedCountry("de"))
	assert.False(t, SupportedCountry("XX"))
	assert.Equal(t, "Austria", Countries()[0].Text)
}
