package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/api/middleware"
	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/Togather-Foundation/geowidget/web"
)

// DemoEntityID is the entity rendered at the site root.
const DemoEntityID = "demo"

const maxEntityIDLength = 64

// Field is a coordinate field of the entity form. Name doubles as the
// widget settings key.
type Field struct {
	Name  string
	Label string
}

// DefaultFields are the coordinate fields of the demo entity form.
var DefaultFields = []Field{
	{Name: "location", Label: "Location"},
	{Name: "meeting_point", Label: "Meeting point"},
}

// FormsHandler renders and saves entity forms carrying coordinate pickers.
type FormsHandler struct {
	Repo      storage.Repository
	Registry  *session.Registry
	Templates *template.Template
	Fields    []Field
	// Defaults apply to fields without saved settings.
	Defaults widget.Settings
	// Address enables the address sub-form. DefaultCountry lays it out for
	// entities that never saved one.
	Address        bool
	DefaultCountry string
	Env            string
}

// NewFormsHandler creates a forms handler with the demo fields and an
// address sub-form.
func NewFormsHandler(repo storage.Repository, registry *session.Registry, tmpl *template.Template, defaults widget.Settings, env string) *FormsHandler {
	return &FormsHandler{
		Repo:      repo,
		Registry:  registry,
		Templates: tmpl,
		Fields:    DefaultFields,
		Defaults:  defaults,
		Address:   true,
		Env:       env,
	}
}

// Show handles GET / and GET /entities/{id}. An unknown id renders an empty
// form; the entity is created on submit.
func (h *FormsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	entity, err := h.Repo.GetEntity(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		entity = storage.Entity{ID: id}
	case err != nil:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to load entity", err, h.Env)
		return
	}

	var sub *form.AddressForm
	if h.Address {
		if entity.Address != nil {
			clone := entity.Address.Clone()
			clone.Countries = address.Countries()
			sub = &clone
		} else {
			sub = address.SubForm(h.DefaultCountry)
		}
	}
	doc := form.NewDocument(sub)

	ids := widget.NewIDAllocator()
	views := make([]web.WidgetView, 0, len(h.Fields))
	configs := make([]widget.WidgetConfig, 0, len(h.Fields))
	for _, f := range h.Fields {
		view, err := h.widgetView(ctx, entity, f, ids)
		if err != nil {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to load widget", err, h.Env)
			return
		}
		doc.AddHidden(view.Config.InstanceID, view.Lat, view.Lng, view.Zoom)
		views = append(views, view)
		configs = append(configs, view.Config)
	}

	registered := h.Registry.Register(entity.ID, configs, doc)

	page := web.EntityPage{
		EntityID:  entity.ID,
		Title:     entity.Title,
		Token:     registered.Token,
		CSRFName:  middleware.CSRFFieldName(),
		CSRFToken: middleware.CSRFToken(r),
		Saved:     r.URL.Query().Get("saved") == "1",
		Widgets:   views,
	}
	if snapshot, ok := doc.Address(); ok {
		page.Address = &snapshot
	}

	renderHTML(w, r, h.Templates, "entity_form.html", http.StatusOK, page, h.Env)
}

func (h *FormsHandler) widgetView(ctx context.Context, entity storage.Entity, f Field, ids *widget.IDAllocator) (web.WidgetView, error) {
	settings, err := storage.SettingsOrDefault(ctx, h.Repo, f.Name, h.Defaults)
	if err != nil {
		return web.WidgetView{}, err
	}

	value, err := h.Repo.GetValue(ctx, entity.ID, f.Name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return web.WidgetView{}, fmt.Errorf("load %s value: %w", f.Name, err)
	}

	return web.WidgetView{
		Field:  f.Name,
		Label:  f.Label,
		Config: widget.Resolve(settings, value.Stored(), entity.Title, ids),
		Lat:    value.Lat,
		Lng:    value.Lng,
		Zoom:   value.Zoom,
	}, nil
}

// Submit handles POST /entities/{id}. The title, the address sub-form and
// every coordinate field are saved in one transaction.
func (h *FormsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entityID(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeValidation, "Request body too large", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid form submission", err, h.Env)
		return
	}

	now := time.Now().UTC()
	entity := storage.Entity{
		ID:        id,
		Title:     strings.TrimSpace(r.PostForm.Get("title")),
		UpdatedAt: now,
	}
	if h.Address {
		entity.Address = submittedAddress(r.PostForm)
	}

	err := h.Repo.WithTx(r.Context(), func(ctx context.Context, tx storage.Repository) error {
		if err := tx.SaveEntity(ctx, entity); err != nil {
			return err
		}
		for _, f := range h.Fields {
			value := storage.Value{
				EntityID:  id,
				Field:     f.Name,
				Lat:       strings.TrimSpace(r.PostForm.Get(f.Name + "[lat]")),
				Lng:       strings.TrimSpace(r.PostForm.Get(f.Name + "[lng]")),
				Zoom:      strings.TrimSpace(r.PostForm.Get(f.Name + "[zoom]")),
				UpdatedAt: now,
			}
			if err := tx.SaveValue(ctx, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Failed to save entity", err, h.Env)
		return
	}

	http.Redirect(w, r, entityPath(id)+"?saved=1", http.StatusSeeOther)
}

// AddressForm handles GET /address/{country}: the sub-form fragment the
// client swaps in after a country change. "none" yields the generic layout.
func (h *FormsHandler) AddressForm(w http.ResponseWriter, r *http.Request) {
	country := r.PathValue("country")
	if strings.EqualFold(country, "none") {
		country = ""
	} else if !address.SupportedCountry(country) {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Unknown country", nil, h.Env,
			problem.WithDetail(fmt.Sprintf("No address format for country %q", country)))
		return
	}

	renderHTML(w, r, h.Templates, "address_fragment.html", http.StatusOK, address.SubForm(country), h.Env)
}

func (h *FormsHandler) entityID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		id = DemoEntityID
	}
	if len(id) > maxEntityIDLength {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid entity id", nil, h.Env,
			problem.WithDetail(fmt.Sprintf("Entity ids are at most %d characters", maxEntityIDLength)))
		return "", false
	}
	return id, true
}

func submittedAddress(values url.Values) *form.AddressForm {
	sub := address.SubForm(values.Get("address[" + form.RoleCountry + "]"))
	for _, role := range form.TextRoles {
		sub.Inputs[role] = strings.TrimSpace(values.Get("address[" + role + "]"))
	}
	if sub.AdministrativeAreas != nil {
		sub.AdministrativeArea = values.Get("address[" + form.RoleAdministrativeArea + "]")
	}
	// The option list is static and rebuilt on render.
	sub.Countries = nil
	return sub
}

func entityPath(id string) string {
	return "/entities/" + url.PathEscape(id)
}
