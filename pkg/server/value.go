package server

import (
	"net/http"

	"github.com/gridglance/gridglance/pkg/valuecache"
)

type valueError struct {
	Feed  string `json:"feed"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	reading, err := s.provider.Current(r.Context())
	if err != nil {
		// the provider already logged the failure
		writeJSON(w, valueError{
			Feed:  s.provider.Name(),
			Error: "no current value available",
			Kind:  valuecache.Kind(err),
		}, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, reading, http.StatusOK)
}
