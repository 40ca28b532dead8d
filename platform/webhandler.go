package platform

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"lautenbacher.net/godac/mcp492x"
)

// WriteRequest is the body of POST /api/outputs.
type WriteRequest struct {
	Device  string `json:"Device"`
	Channel int    `json:"Channel"`
	Value   int    `json:"Value"`
}

// OutputsHandler serves /api/outputs: GET lists the live state of every
// device, POST writes one channel. Writes made here are not saved to the
// config file and are overridden by the next reload.
func OutputsHandler(p Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(p.Outputs()); err != nil {
				slog.Error("Failed to encode outputs to JSON", "error", err)
				http.Error(w, "Failed to serialize outputs", http.StatusInternalServerError)
			}
		case http.MethodPost:
			writeOutput(w, r, p)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeOutput(w http.ResponseWriter, r *http.Request, p Platform) {
	defer r.Body.Close()

	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode incoming JSON", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := p.Write(req.Device, req.Channel, req.Value)
	switch {
	case err == nil:
		slog.Info("Output written via API", "device", req.Device, "channel", req.Channel, "value", req.Value)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrUnknownDevice):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, mcp492x.ErrChannelRange), errors.Is(err, mcp492x.ErrValueRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Failed to write output", "device", req.Device, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
