// Package contentstest emulates the repository contents API over a
// memstore.Store for tests.
package contentstest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/mesh-intelligence/bookshelf/internal/memstore"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

// Server serves GET and PUT /repos/{owner}/{repo}/contents/{path...} for
// one repository.
type Server struct {
	Owner string
	Repo  string
	Token string
	Store *memstore.Store

	requests atomic.Int64
	mux      *http.ServeMux
}

// New returns a Server for owner/repo that accepts token.
func New(owner, repo, token string) *Server {
	s := &Server{Owner: owner, Repo: repo, Token: token, Store: memstore.New()}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", s.handleGet)
	s.mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", s.handlePut)
	return s
}

// Requests returns the number of requests served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.PathValue("owner") != s.Owner || r.PathValue("repo") != s.Repo {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return "", false
	}
	return r.PathValue("path"), true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolve(w, r)
	if !ok {
		return
	}
	doc, err := s.Store.Get(r.Context(), path)
	if errors.Is(err, types.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"type":     "file",
		"path":     path,
		"encoding": "base64",
		"content":  wrap(base64.StdEncoding.EncodeToString(doc.Content), 60),
		"sha":      doc.Revision,
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	path, ok := s.resolve(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	if body.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"message\" wasn't supplied."})
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	rev, err := s.Store.Put(r.Context(), path, content, body.SHA, body.Message)
	var conflict *types.ConflictError
	switch {
	case errors.As(err, &conflict) && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request.\n\n\"sha\" wasn't supplied."})
		return
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + body.SHA})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}

	status := http.StatusOK
	if body.SHA == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]string{"path": path, "sha": rev},
		"commit":  map[string]string{"message": body.Message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wrap(s string, width int) string {
	var sb strings.Builder
	for len(s) > width {
		sb.WriteString(s[:width])
		sb.WriteByte('\n')
		s = s[width:]
	}
	sb.WriteString(s)
	sb.WriteByte('\n')
	return sb.String()
}
