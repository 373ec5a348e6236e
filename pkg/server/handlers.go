package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/orneryd/huginn/pkg/auth"
	"github.com/orneryd/huginn/pkg/behavior"
	"github.com/orneryd/huginn/pkg/scene"
)

// writeSceneError maps scene package sentinels onto HTTP statuses.
func (s *Server) writeSceneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scene.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scene.ErrInvalidID):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scene.ErrCycle):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeBehaviorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, behavior.ErrNotAnalyzing):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, behavior.ErrProfileNotFound), errors.Is(err, behavior.ErrPatternNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.analyzer.Graph().Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.analyzer.Graph().Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"uptime":        time.Since(s.started).String(),
		"requests":      s.requestCount.Load(),
		"errors":        s.errorCount.Load(),
		"persistent":    s.analyzer.Persistent(),
		"analyzing":     s.analyzer.Tracker().Analyzing(),
		"profiles":      len(s.analyzer.Tracker().Profiles()),
		"nodes":         stats.TotalNodes,
		"relationships": stats.TotalRelationships,
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeError(w, http.StatusNotImplemented, "authentication disabled")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeError(w, http.StatusNotImplemented, "authentication disabled")
		return
	}
	if token := bearerToken(r); token != "" {
		s.auth.Revoke(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := s.analyzer.Graph().CreateNode(
		scene.NodeID(req.ID), scene.NodeType(req.Type), req.Name)
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	g := s.analyzer.Graph()

	if nodeType := r.URL.Query().Get("type"); nodeType != "" {
		s.writeJSON(w, http.StatusOK, g.FindNodesByType(scene.NodeType(nodeType)))
		return
	}
	s.writeJSON(w, http.StatusOK, g.AllNodes())
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.analyzer.Graph().Node(scene.NodeID(r.PathValue("id")))
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := scene.NodeID(r.PathValue("id"))

	var req struct {
		Name         *string                `json:"name,omitempty"`
		Visible      *bool                  `json:"visible,omitempty"`
		Interactable *bool                  `json:"interactable,omitempty"`
		Importance   *float64               `json:"importance,omitempty"`
		Dimensions   *scene.Dimensions      `json:"dimensions,omitempty"`
		Properties   map[string]scene.Value `json:"properties,omitempty"`
		DynamicState map[string]scene.Value `json:"dynamicState,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g := s.analyzer.Graph()
	apply := func(err error) bool {
		if err != nil {
			s.writeSceneError(w, err)
			return false
		}
		return true
	}

	if req.Name != nil && !apply(g.SetNodeName(id, *req.Name)) {
		return
	}
	if req.Visible != nil && !apply(g.SetNodeVisible(id, *req.Visible)) {
		return
	}
	if req.Interactable != nil && !apply(g.SetNodeInteractable(id, *req.Interactable)) {
		return
	}
	if req.Importance != nil && !apply(g.SetNodeImportance(id, *req.Importance)) {
		return
	}
	if req.Dimensions != nil && !apply(g.SetNodeDimensions(id, *req.Dimensions)) {
		return
	}
	for key, value := range req.Properties {
		if !apply(g.SetProperty(id, key, value)) {
			return
		}
	}
	for key, value := range req.DynamicState {
		if !apply(g.SetDynamicState(id, key, value)) {
			return
		}
	}

	node, err := g.Node(id)
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := scene.NodeID(r.PathValue("id"))
	if err := s.analyzer.Graph().UpdatePosition(id, req.X, req.Y, req.Z); err != nil {
		s.writeSceneError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := scene.NodeID(r.PathValue("id"))
	if err := s.analyzer.Graph().UpdateRotation(id, req.X, req.Y, req.Z); err != nil {
		s.writeSceneError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	maxDistance := 10.0
	if raw := r.URL.Query().Get("distance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid distance")
			return
		}
		maxDistance = parsed
	}

	nodes, err := s.analyzer.Graph().NearbyNodes(scene.NodeID(r.PathValue("id")), maxDistance)
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleNodeRelationships(w http.ResponseWriter, r *http.Request) {
	rels := s.analyzer.Graph().NodeRelationships(scene.NodeID(r.PathValue("id")))
	s.writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handleAddChild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parent string `json:"parent"`
		Child  string `json:"child"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.analyzer.Graph().AddChild(scene.NodeID(req.Parent), scene.NodeID(req.Child)); err != nil {
		s.writeSceneError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rel, err := s.analyzer.Graph().CreateRelationship(
		scene.RelationshipID(req.ID), scene.RelationType(req.Type),
		scene.NodeID(req.Source), scene.NodeID(req.Target))
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleQueryRelationships(w http.ResponseWriter, r *http.Request) {
	g := s.analyzer.Graph()
	q := r.URL.Query()

	if a, b := q.Get("a"), q.Get("b"); a != "" && b != "" {
		s.writeJSON(w, http.StatusOK, g.FindRelationships(scene.NodeID(a), scene.NodeID(b)))
		return
	}
	if relType := q.Get("type"); relType != "" {
		s.writeJSON(w, http.StatusOK, g.FindRelationshipsByType(scene.RelationType(relType)))
		return
	}
	s.writeJSON(w, http.StatusOK, g.AllRelationships())
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from")
	if from == "" {
		s.writeError(w, http.StatusBadRequest, "from parameter required")
		return
	}

	if to := q.Get("to"); to != "" {
		visible, err := s.analyzer.Graph().VisibleFrom(scene.NodeID(from), scene.NodeID(to))
		if err != nil {
			s.writeSceneError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
		return
	}

	nodes, err := s.analyzer.Graph().VisibleNodes(scene.NodeID(from))
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleBlocking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}

	rels, err := s.analyzer.Graph().BlockingRelationships(scene.NodeID(from), scene.NodeID(to))
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}

	path, err := s.analyzer.Graph().FindPath(scene.NodeID(from), scene.NodeID(to))
	if err != nil {
		s.writeSceneError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, path)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.analyzer.Graph().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile string `json:"profile"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Profile == "" {
		s.writeError(w, http.StatusBadRequest, "profile required")
		return
	}

	s.analyzer.Tracker().StartAnalysis(req.Profile)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopAnalysis(w http.ResponseWriter, r *http.Request) {
	s.analyzer.Tracker().StopAnalysis()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string  `json:"category"`
		Action   string  `json:"action"`
		Value    float64 `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.analyzer.Tracker().RecordObservation(req.Category, req.Action, req.Value); err != nil {
		s.writeBehaviorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.analyzer.Tracker().Profiles())
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.analyzer.Tracker().Profile(r.PathValue("id"))
	if err != nil {
		s.writeBehaviorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleProfileSummary(w http.ResponseWriter, r *http.Request) {
	profile, err := s.analyzer.Tracker().Profile(r.PathValue("id"))
	if err != nil {
		s.writeBehaviorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"summary": profile.Summary()})
}

func (s *Server) handleProfileInsights(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.analyzer.Tracker().Profile(id); err != nil {
		s.writeBehaviorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.analyzer.Tracker().Insights(id))
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.analyzer.Tracker().Patterns())
}
