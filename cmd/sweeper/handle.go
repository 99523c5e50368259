package main

import (
	"encoding/json"
	"net/http"
)

func (app *Config) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// triggerSweep runs one cleanup sweep immediately and reports what it did.
func (app *Config) triggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := app.sweep(r.Context())
	if err != nil {
		app.log.Error().Err(err).Msg("manual sweep failed")
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
