package httpapi

import "net/http"

func (s *Server) serviceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, serviceInfoResponse{Service: "ledgerd", Version: "1.0.0"})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.ready.Ready(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
