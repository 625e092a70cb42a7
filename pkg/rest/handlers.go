package rest

import (
	"net/http"
	"strings"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/edgeflare/kafkaform/pkg/httputil"
	"go.uber.org/zap"
)

type FilterResponse struct {
	Filter string `json:"filter"`
}

type SubpathsResponse struct {
	Subpaths []string `json:"subpaths"`
}

type ListResponse struct {
	Paths []string `json:"paths"`
}

type GetResponse struct {
	ResourceDefinition string `json:"resource_definition"`
}

// PlanRequest carries both sides of a plan. A missing side is an absent
// resource, which is not the same as an empty document.
type PlanRequest struct {
	Addr    string  `json:"addr"`
	Current *string `json:"current,omitempty"`
	Desired *string `json:"desired,omitempty"`
}

type PlanResponse struct {
	Steps []connector.PlanStep `json:"steps"`
}

type OpExecRequest struct {
	Addr string `json:"addr"`
	Op   string `json:"op"`
}

type DiagRequest struct {
	Addr string `json:"addr"`
	Body string `json:"body"`
}

type EqRequest struct {
	Addr string `json:"addr"`
	A    string `json:"a"`
	B    string `json:"b"`
}

type EqResponse struct {
	Equal bool `json:"equal"`
}

type Skeleton struct {
	Addr string `json:"addr"`
	Body string `json:"body"`
}

type SkeletonsResponse struct {
	Skeletons []Skeleton `json:"skeletons"`
}

type TaskExecRequest struct {
	Addr  string `json:"addr"`
	Body  string `json:"body"`
	Arg   string `json:"arg"`
	State []byte `json:"state,omitempty"`
}

func optional(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	f := s.conn.Filter(r.URL.Query().Get("addr"))
	httputil.JSON(w, http.StatusOK, FilterResponse{Filter: f.String()})
}

func (s *Server) handleSubpaths(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, SubpathsResponse{Subpaths: s.conn.Subpaths()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	paths, err := s.conn.List(r.Context(), r.URL.Query().Get("subpath"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	httputil.JSON(w, http.StatusOK, ListResponse{Paths: paths})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("addr")
	got, err := s.conn.Get(r.Context(), path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if got == nil {
		httputil.Error(w, http.StatusNotFound, "no resource at "+path)
		return
	}
	if wantsYAML(r) {
		httputil.Blob(w, http.StatusOK, got.ResourceDefinition, yamlContentType)
		return
	}
	httputil.JSON(w, http.StatusOK, GetResponse{ResourceDefinition: string(got.ResourceDefinition)})
}

const yamlContentType = "application/yaml"

// wantsYAML reports whether the client asked for the bare document.
func wantsYAML(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept") {
		for part := range strings.SplitSeq(v, ",") {
			mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if mt == yamlContentType || mt == "application/x-yaml" {
				return true
			}
		}
	}
	return false
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	steps, err := s.conn.Plan(r.Context(), req.Addr, optional(req.Current), optional(req.Desired))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, PlanResponse{Steps: steps})
}

func (s *Server) handleOpExec(w http.ResponseWriter, r *http.Request) {
	var req OpExecRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	resp, err := s.conn.OpExec(r.Context(), req.Addr, req.Op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("operation executed", zap.String("address", req.Addr), zap.String("message", resp.FriendlyMessage))
	httputil.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	var req DiagRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	resp, err := s.conn.Diag(req.Addr, []byte(req.Body))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleEq(w http.ResponseWriter, r *http.Request) {
	var req EqRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	equal, err := s.conn.Eq(req.Addr, []byte(req.A), []byte(req.B))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, EqResponse{Equal: equal})
}

func (s *Server) handleSkeletons(w http.ResponseWriter, r *http.Request) {
	skeletons, err := s.conn.Skeletons()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Skeleton, 0, len(skeletons))
	for _, sk := range skeletons {
		out = append(out, Skeleton{Addr: sk.Path, Body: string(sk.Body)})
	}
	httputil.JSON(w, http.StatusOK, SkeletonsResponse{Skeletons: out})
}

func (s *Server) handleTaskExec(w http.ResponseWriter, r *http.Request) {
	var req TaskExecRequest
	if err := httputil.BindOrError(r, w, &req); err != nil {
		return
	}
	resp, err := s.conn.TaskExec(r.Context(), req.Addr, []byte(req.Body), []byte(req.Arg), req.State)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.conn.Reload(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("connector reloaded")
	httputil.JSON(w, http.StatusOK, SubpathsResponse{Subpaths: s.conn.Subpaths()})
}
