// Package web serves the rule editor panel for the active character.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed panel.html
var panelHTML []byte

// ServePanel serves the rule editor HTML
func ServePanel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(panelHTML)
}
