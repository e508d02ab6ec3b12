package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/merchkart/storefront/internal/checkout"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeWorkflowErr translates a placement-workflow error into the structured
// failure shape; internal detail never leaks for unclassified errors.
func writeWorkflowErr(w http.ResponseWriter, err error) {
	kind := checkout.Kind(err)
	msg := err.Error()
	if kind == "internal" {
		msg = "internal server error"
	}
	writeJSON(w, checkout.HTTPStatus(err), map[string]any{
		"success": false,
		"error":   kind,
		"message": msg,
	})
}

func writeFail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "message": msg})
}
