package handlers

import (
	"encoding/json"
	"net/http"
)

// Health: liveness-проба, процесс жив и схема загружена (иначе сервер не стартует).
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
