package form

import "sync"

type hiddenKey struct {
	class      string
	instanceID string
}

// Document is the server-side copy of one rendered form. Writes are recorded
// and passed to the listener so they can be replayed in the browser.
type Document struct {
	mu          sync.Mutex
	hidden      map[hiddenKey]string
	address     *AddressForm
	listener    func(Change)
	listenerID  int
	subscribers map[int]func()
	nextSub     int
}

var _ Region = (*Document)(nil)

// NewDocument creates a document. address may be nil when the form has no
// address sub-form.
func NewDocument(address *AddressForm) *Document {
	d := &Document{
		hidden:      make(map[hiddenKey]string),
		subscribers: make(map[int]func()),
	}
	if address != nil {
		a := address.Clone()
		d.address = &a
	}
	return d
}

// SetListener installs the function receiving every change, replacing the
// previous one. The returned remove clears it only while it is still the
// installed listener.
func (d *Document) SetListener(fn func(Change)) (remove func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listenerID++
	id := d.listenerID
	d.listener = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.listenerID == id {
			d.listener = nil
		}
	}
}

// AddHidden registers the three hidden coordinate inputs of a widget instance.
func (d *Document) AddHidden(instanceID, lat, lng, zoom string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hidden[hiddenKey{LatClass, instanceID}] = lat
	d.hidden[hiddenKey{LngClass, instanceID}] = lng
	d.hidden[hiddenKey{ZoomClass, instanceID}] = zoom
}

// Hidden returns the value of a hidden input.
func (d *Document) Hidden(class, instanceID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.hidden[hiddenKey{class, instanceID}]
	return v, ok
}

func (d *Document) SetHidden(class, instanceID, value string) bool {
	d.mu.Lock()
	key := hiddenKey{class, instanceID}
	if _, ok := d.hidden[key]; !ok {
		d.mu.Unlock()
		return false
	}
	d.hidden[key] = value
	d.emitLocked(Change{Kind: ChangeSetValue, Selector: HiddenSelector(class, instanceID), Value: value})
	return true
}

func (d *Document) Address() (AddressForm, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.address == nil {
		return AddressForm{}, false
	}
	return d.address.Clone(), true
}

func (d *Document) SetAddressInput(role, value string) bool {
	d.mu.Lock()
	if d.address == nil {
		d.mu.Unlock()
		return false
	}
	if _, ok := d.address.Inputs[role]; !ok {
		d.mu.Unlock()
		return false
	}
	d.address.Inputs[role] = value
	d.emitLocked(Change{Kind: ChangeSetValue, Selector: AddressSelector(role), Value: value})
	return true
}

func (d *Document) SelectAdministrativeArea(text string) bool {
	d.mu.Lock()
	if d.address == nil {
		d.mu.Unlock()
		return false
	}
	for _, opt := range d.address.AdministrativeAreas {
		if opt.Text == text {
			d.address.AdministrativeArea = opt.Value
			d.emitLocked(Change{Kind: ChangeSelectOption, Selector: AddressSelector(RoleAdministrativeArea), Value: opt.Value})
			return true
		}
	}
	d.mu.Unlock()
	return false
}

func (d *Document) SelectCountry(code string) bool {
	d.mu.Lock()
	if d.address == nil {
		d.mu.Unlock()
		return false
	}
	d.address.Country = code
	d.emitLocked(Change{Kind: ChangeSelectOption, Selector: AddressSelector(RoleCountry), Value: code, Trigger: true})
	return true
}

func (d *Document) OnRerendered(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subscribers, id)
	}
}

// ReplaceAddress swaps in the rebuilt address sub-form and runs the pending
// OnRerendered subscriptions. A nil address removes the sub-form.
func (d *Document) ReplaceAddress(address *AddressForm) {
	d.mu.Lock()
	if address == nil {
		d.address = nil
	} else {
		a := address.Clone()
		if a.Inputs == nil {
			a.Inputs = map[string]string{}
		}
		d.address = &a
	}
	pending := make([]func(), 0, len(d.subscribers))
	for id := 0; id < d.nextSub; id++ {
		if fn, ok := d.subscribers[id]; ok {
			pending = append(pending, fn)
		}
	}
	clear(d.subscribers)
	d.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// emitLocked releases the lock before calling the listener so listeners may
// read the document.
func (d *Document) emitLocked(c Change) {
	listener := d.listener
	d.mu.Unlock()
	if listener != nil {
		listener(c)
	}
}
