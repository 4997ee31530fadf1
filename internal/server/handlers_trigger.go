package server

import (
	"net/http"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

func triggerFromRequest(req models.TriggerRequest) *trigger.Trigger {
	t := &trigger.Trigger{
		Name:           req.Name,
		Aliases:        req.Aliases,
		Type:           trigger.Type(req.Type),
		DataSourceID:   req.DataSourceID,
		QueryTemplate:  req.QueryTemplate,
		Table:          req.Table,
		SortColumn:     req.SortColumn,
		Tag:            req.Tag,
		Interval:       req.Interval,
		Children:       req.Children,
		GroupID:        req.GroupID,
		Description:    req.Description,
		ResponsePrefix: req.ResponsePrefix,
		Active:         true,
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	return t
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.cfg.Triggers.ListTriggers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req models.TriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.cfg.Triggers.CreateTrigger(r.Context(), triggerFromRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := s.cfg.Triggers.GetTrigger(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	var req models.TriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := triggerFromRequest(req)
	t.ID = r.PathValue("id")
	updated, err := s.cfg.Triggers.UpdateTrigger(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Triggers.DeleteTrigger(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteName(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Triggers.DeleteName(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toExecutionResponse(result *trigger.Result, dur time.Duration) models.ExecutionResponse {
	return models.ExecutionResponse{
		Name:      result.Name,
		Success:   result.Success,
		Body:      result.Body,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Duration:  dur.String(),
	}
}

func (s *Server) handleExecuteTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := s.cfg.Triggers.GetTrigger(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := s.cfg.Engine.Execute(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(result, time.Since(start)))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.cfg.Triggers.ListGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.GroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.cfg.Triggers.CreateGroup(r.Context(), &trigger.Group{
		Name:             req.Name,
		ExecutionMode:    trigger.ExecutionMode(req.ExecutionMode),
		MemberTriggerIDs: req.MemberTriggerIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.cfg.Triggers.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.GroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.cfg.Triggers.UpdateGroup(r.Context(), &trigger.Group{
		ID:               r.PathValue("id"),
		Name:             req.Name,
		ExecutionMode:    trigger.ExecutionMode(req.ExecutionMode),
		MemberTriggerIDs: req.MemberTriggerIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Triggers.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecuteGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.cfg.Triggers.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := s.cfg.Engine.ExecuteGroup(r.Context(), g)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(result, time.Since(start)))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.cfg.Engine.Resolve(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.ResolveResponse{Matched: res.Matched}
	if res.Trigger != nil {
		resp.TriggerID = res.Trigger.ID
		resp.TriggerName = res.Trigger.Name
	}
	if res.Group != nil {
		resp.GroupID = res.Group.ID
		resp.GroupName = res.Group.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMessage resolves and executes in one call, the path a chat-bot
// webhook uses. An unmatched message returns 200 with matched=false.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := s.cfg.Engine.HandleMessage(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"matched":  true,
		"response": toExecutionResponse(result, time.Since(start)),
	})
}
