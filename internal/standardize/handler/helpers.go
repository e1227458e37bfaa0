package handler

import (
	"encoding/json"
	"net/http"

	"dvmap-service/internal/utils"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// пороги из формы: "0,85" тоже принимаем
func parseUnit(s string) (float64, bool) { return utils.ParseUnit(s) }

func parseBool(s string) (bool, bool) { return utils.ParseBool(s) }
