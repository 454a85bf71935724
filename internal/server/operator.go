package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/federation"
	"github.com/wolfeidau/pcfhub/internal/footprint"
	httpmiddleware "github.com/wolfeidau/pcfhub/internal/http"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/tasks"
)

// caller returns the identity of an operator request holding perm, writing
// the error response when it does not.
func (s *Server) caller(w http.ResponseWriter, r *http.Request, perm auth.Permission) (*auth.Identity, bool) {
	id, err := auth.RequirePermission(r.Context(), perm)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return id, true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Request("invalid id %q", raw)
	}
	return id, nil
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermTasksManage)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := tasks.ListOptions{}
	for _, st := range query["status"] {
		opts.Status = append(opts.Status, models.TaskStatus(st))
	}
	var err error
	if opts.Limit, err = intParam(query, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if opts.Offset, err = intParam(query, "offset"); err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.tasks.List(r.Context(), id.OrganizationID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := taskList{Data: make([]taskView, 0, len(list))}
	for _, t := range list {
		out.Data = append(out.Data, newTaskView(t))
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermTasksManage)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.tasks.Get(r.Context(), id.OrganizationID, taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, newTaskView(task))
}

type updateTaskRequest struct {
	Status  models.TaskStatus `json:"status"`
	Message string            `json:"message"`
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermTasksManage)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTaskRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.tasks.UpdateStatus(r.Context(), id.OrganizationID, taskID, req.Status, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, newTaskView(task))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermTasksManage)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.tasks.Delete(r.Context(), id.OrganizationID, taskID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type fulfilRequest struct {
	PfIDs []uuid.UUID `json:"pfIds"`
}

func (s *Server) fulfilTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermEventsSend)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fulfilRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.dispatcher.Fulfill(r.Context(), id.OrganizationID, taskID, req.PfIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, newTaskView(task))
}

type rejectRequest struct {
	Message string `json:"message"`
}

func (s *Server) rejectTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermEventsSend)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	task, err := s.dispatcher.Reject(r.Context(), id.OrganizationID, taskID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, newTaskView(task))
}

func (s *Server) acceptContract(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermContracts)
	if !ok {
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.dispatcher.ReplyContract(r.Context(), id.OrganizationID, taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, newTaskView(task))
}

func (s *Server) saveFootprint(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermFootprintsWrite)
	if !ok {
		return
	}
	body, err := httpmiddleware.ReadBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fp, outcome, err := s.catalog.SaveFootprint(r.Context(), id.OrganizationID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome == footprint.Created || outcome == footprint.Replaced {
		status = http.StatusCreated
	}
	httpmiddleware.WriteJSON(w, status, savedFootprint{ID: fp.DataID, Version: fp.Version, Outcome: outcome.String()})
}

type notifyRequest struct {
	PartnerID uuid.UUID   `json:"partnerId"`
	PfIDs     []uuid.UUID `json:"pfIds"`
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermEventsSend)
	if !ok {
		return
	}
	var req notifyRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.dispatcher.Notify(r.Context(), id.OrganizationID, req.PartnerID, req.PfIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, newTaskView(task))
}

type footprintRequest struct {
	PartnerID uuid.UUID       `json:"partnerId"`
	Wish      json.RawMessage `json:"wish"`
	Comment   string          `json:"comment"`
}

func (s *Server) requestFootprint(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermEventsSend)
	if !ok {
		return
	}
	var req footprintRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.dispatcher.RequestFootprint(r.Context(), id.OrganizationID, req.PartnerID, req.Wish, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, newTaskView(task))
}

func (s *Server) requestContract(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermContracts)
	if !ok {
		return
	}
	var req federation.ContractRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := s.dispatcher.RequestContract(r.Context(), id.OrganizationID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, newTaskView(task))
}

func (s *Server) registerDataSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermDataSources)
	if !ok {
		return
	}
	var in federation.DataSourceInput
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &in); err != nil {
		writeError(w, r, err)
		return
	}

	ds, err := s.dispatcher.RegisterDataSource(r.Context(), id.OrganizationID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, newDataSourceView(ds))
}

type issueClientRequest struct {
	OrgID uuid.UUID `json:"orgId"`
}

func (s *Server) issueClient(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caller(w, r, auth.PermDataSources)
	if !ok {
		return
	}
	var req issueClientRequest
	if err := httpmiddleware.ReadJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}

	client, secret, err := s.dispatcher.IssueClient(r.Context(), id.OrganizationID, req.OrgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, issuedClient{ClientID: client.ClientID, ClientSecret: secret, OrgID: client.OrgID})
}
