package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sanonone/kektorgraph/pkg/engine"
)

// maxBodyBytes bounds a traversal request body.
const maxBodyBytes = 4 << 20

func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/traverse", s.handleTraverse)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /v1/backends", s.handleBackends)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeHTTPError(w, http.StatusNotFound, "endpoint not found")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	var req TraverseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	q := req.Query()

	if req.Async {
		task := s.tasks.NewTask()
		s.logger.Debug("Async traversal started", "task_id", task.id, "request_id", requestID(r.Context()))
		go func() {
			res, err := s.Engine.Traverse(s.ctx, q)
			if err != nil {
				_, body := errorReply(err)
				task.Fail(body)
				return
			}
			task.Complete(newTraverseResponse(res))
		}()
		s.writeHTTPResponse(w, http.StatusAccepted, task.View())
		return
	}

	res, err := s.Engine.Traverse(r.Context(), q)
	if err != nil {
		status, body := errorReply(err)
		s.writeHTTPResponse(w, status, body)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, newTraverseResponse(res))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.tasks.GetTask(r.PathValue("id"))
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, task.View())
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	s.writeHTTPResponse(w, http.StatusOK, BackendsResponse{Backends: s.Engine.Registry().Names()})
}

// errorReply maps a traversal failure onto an HTTP status.
func errorReply(err error) (int, *ErrorResponse) {
	kind := engine.KindOf(err)
	body := &ErrorResponse{Error: err.Error(), Kind: string(kind)}
	switch kind {
	case engine.KindInvalid:
		return http.StatusBadRequest, body
	case engine.KindTimeout:
		return http.StatusGatewayTimeout, body
	case engine.KindUnavailable, engine.KindClosed:
		return http.StatusServiceUnavailable, body
	case engine.KindCanceled:
		if errors.Is(err, context.Canceled) {
			return http.StatusRequestTimeout, body
		}
	}
	return http.StatusInternalServerError, body
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode HTTP response", "error", err)
	}
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, ErrorResponse{Error: message})
}
