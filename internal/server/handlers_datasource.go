package server

import (
	"net/http"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

func toDataSourceInfo(cfg *datasource.Config) models.DataSourceInfo {
	return models.DataSourceInfo{
		ID:               cfg.ID,
		DisplayName:      cfg.DisplayName,
		PluginType:       cfg.PluginType,
		Dialect:          cfg.Dialect,
		Connection:       cfg.Connection,
		ConnectionStatus: string(cfg.ConnectionStatus),
		LastTestedAt:     cfg.LastTestedAt,
		LastError:        cfg.LastError,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

func (s *Server) handleListDataSources(w http.ResponseWriter, r *http.Request) {
	configs, err := s.cfg.Sources.ListDataSources(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	infos := make([]models.DataSourceInfo, 0, len(configs))
	for _, cfg := range configs {
		infos = append(infos, toDataSourceInfo(s.cfg.Sources.Masked(cfg)))
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCreateDataSource(w http.ResponseWriter, r *http.Request) {
	var req models.DataSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := s.cfg.Sources.AddDataSource(r.Context(), &datasource.Config{
		DisplayName: req.DisplayName,
		PluginType:  req.PluginType,
		Dialect:     req.Dialect,
		Connection:  req.Connection,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDataSourceInfo(s.cfg.Sources.Masked(created)))
}

func (s *Server) handleGetDataSource(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfg.Sources.GetDataSource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDataSourceInfo(s.cfg.Sources.Masked(cfg)))
}

func (s *Server) handleUpdateDataSource(w http.ResponseWriter, r *http.Request) {
	var req models.DataSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := datasource.Patch{Connection: req.Connection}
	if req.DisplayName != "" {
		patch.DisplayName = &req.DisplayName
	}
	if req.Dialect != "" {
		patch.Dialect = &req.Dialect
	}

	updated, err := s.cfg.Sources.UpdateDataSource(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDataSourceInfo(s.cfg.Sources.Masked(updated)))
}

func (s *Server) handleDeleteDataSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Refuse deletion while triggers still reference the source.
	count, err := s.cfg.Triggers.CountByDataSource(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if count > 0 {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{
			Error:      "data source is in use",
			Reason:     "one or more triggers reference this data source",
			Suggestion: "delete or repoint the triggers first",
			Code:       http.StatusConflict,
		})
		return
	}

	if err := s.cfg.Sources.RemoveDataSource(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnectAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Sources.LoadAndConnectAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTestDataSource(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Sources.TestDataSource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TestConnectionResponse{OK: result.OK, Message: result.Message})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sr, err := s.cfg.Sources.DiscoverSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.SchemaResponse{
		Tables:    sr.Schema.Tables,
		Fields:    make(map[string][]models.SchemaField, len(sr.Schema.Fields)),
		FromCache: sr.FromCache,
		LiveError: sr.LiveError,
	}
	for table, fields := range sr.Schema.Fields {
		out := make([]models.SchemaField, 0, len(fields))
		for _, f := range fields {
			out = append(out, models.SchemaField{Name: f.Name, DataType: f.DataType, Nullable: f.Nullable})
		}
		resp.Fields[table] = out
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.cfg.Sources.AvailableTags(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TagsResponse{Tags: tags})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := s.cfg.Sources.ExecuteQuery(r.Context(), r.PathValue("id"), req.Query, backend.Params(req.Params))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.QueryResponse{
		Columns:    result.Columns,
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		SQLPreview: result.SQLPreview,
		Duration:   time.Since(start).String(),
		Metadata:   result.Metadata,
	})
}
