package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/Togather-Foundation/geowidget/internal/api/problem"
	"github.com/rs/zerolog"
)

// renderHTML executes a page template into a buffer so a template error
// never leaves a half-written page behind.
func renderHTML(w http.ResponseWriter, r *http.Request, tmpl *template.Template, name string, status int, data any, env string) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template error")
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Template error", err, env)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
