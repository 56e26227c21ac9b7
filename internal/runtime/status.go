package runtime

import (
	"net/http"
	"time"

	"github.com/drblury/shardwire/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/shardwire/internal/runtime/logging"
)

// Status is the JSON document served by StatusHandler.
type Status struct {
	State         string               `json:"state"`
	Module        string               `json:"module,omitempty"`
	Intents       string               `json:"intents"`
	Handlers      []string             `json:"handlers"`
	Registrations []RegistrationReport `json:"registrations"`
	Diagnostics   []StatusDiagnostic   `json:"diagnostics"`
}

type StatusDiagnostic struct {
	Kind    string    `json:"kind"`
	Handler string    `json:"handler,omitempty"`
	Target  string    `json:"target,omitempty"`
	Event   string    `json:"event,omitempty"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// Status snapshots the bootstrap.
func (s *Sequencer) Status() Status {
	st := Status{
		State:         s.State().String(),
		Intents:       s.Capabilities().Intents().String(),
		Registrations: s.Reports(),
		Handlers:      []string{},
		Diagnostics:   []StatusDiagnostic{},
	}
	if cat := s.Catalog(); cat != nil {
		st.Module = cat.Module()
		st.Handlers = append(st.Handlers, cat.Handlers()...)
	}
	for _, d := range s.Diagnostics() {
		sd := StatusDiagnostic{
			Kind:    string(d.Kind),
			Handler: d.Handler,
			Target:  d.Target,
			Event:   d.Event,
			At:      d.At,
		}
		if d.Err != nil {
			sd.Error = d.Err.Error()
		}
		st.Diagnostics = append(st.Diagnostics, sd)
	}
	return st
}

// StatusHandler serves Status as JSON.
func (s *Sequencer) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, s.Status()); err != nil {
			s.logger.Error("Failed to encode status", err, loggingpkg.LogFields{})
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
