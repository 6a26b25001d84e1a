package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/domain"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

type createTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reward      int64     `json:"reward"`
	DueDate     time.Time `json:"due_date,omitzero"`
	Attachments []struct {
		ContentType string `json:"content_type"`
		Content     []byte `json:"content"`
	} `json:"attachments,omitempty"`
}

// handleCreateTask creates a task for the calling identity and opens its
// WAITING_FOR_APPROVE voting phase.
// POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	attachments := make([]task.NewAttachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		if a.ContentType == "" || len(a.Content) == 0 {
			writeError(w, http.StatusBadRequest, "attachment needs content_type and content")
			return
		}
		attachments = append(attachments, task.NewAttachment{ContentType: a.ContentType, Content: a.Content})
	}

	id, err := s.tasks.Create(domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		DueDate:     req.DueDate,
		CreatedBy:   identityFrom(r),
	}, attachments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// handleListTasks lists tasks, optionally filtered by ?status=.
// GET /api/tasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var status *domain.TaskStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := domain.ParseTaskStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := s.tasks.List(status, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// handleGetTask returns one task with its attachment ids and, if a phase is
// open, the current approval state.
// GET /api/tasks/{id}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := s.tasks.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{"task": t}
	if a, err := s.votes.Status(id); err == nil {
		resp["approval"] = a
	}
	if ids, err := s.tasks.AttachmentIDs(id); err == nil && len(ids) > 0 {
		resp["attachments"] = ids
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetTaskStatus is the administrative transition path. Only the
// RESOLVED target is settable from outside; every other status is reached
// through the settlement sweep.
// PUT /api/tasks/{id}/status
func (s *Server) handleSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := domain.ParseTaskStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if status != domain.StatusResolved {
		writeError(w, http.StatusBadRequest, "only RESOLVED can be requested here")
		return
	}

	if err := s.tasks.Transition(id, status); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignTask sets the task's assignee; an empty assignee assigns the
// caller.
// PUT /api/tasks/{id}/assignee
func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Assignee string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Assignee == "" {
		req.Assignee = identityFrom(r)
	}

	if err := s.tasks.Assign(id, req.Assignee); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVote casts the caller's vote on a task's open phase.
// POST /api/tasks/{id}/vote
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	voteType, err := domain.ParseVoteType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.votes.Cast(id, identityFrom(r), voteType); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAttachment serves an attachment blob.
// GET /api/tasks/{id}/attachments/{attachmentID}
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	att, err := s.tasks.Attachment(chi.URLParam(r, "attachmentID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.Length, 10))
	w.Write(att.Content)
}

// ─── Accounts ───────────────────────────────────────────────────────────────

// handleGetAccount returns the caller's account, creating a zero-balance
// account on first access.
// GET /api/account
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.AccountFor(identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleAccountEvents returns the caller's audit trail.
// GET /api/account/events
func (s *Server) handleAccountEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.Events(identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleWriteOff debits the caller's own account.
// POST /api/account/writeoff
func (s *Server) handleWriteOff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	identity := identityFrom(r)
	if err := s.ledger.WriteOff(identity, req.Amount, identity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetAccountStatus freezes or unfreezes an account.
// PUT /api/accounts/{userID}/status
func (s *Server) handleSetAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := domain.ParseAccountStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.SetStatus(chi.URLParam(r, "userID"), status); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Shop ───────────────────────────────────────────────────────────────────

// handleListItems lists purchasable items, cheapest first.
// GET /api/shop/items
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.shop.List(limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// handleCreateItem lists a new item for sale by the caller.
// POST /api/shop/items
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       int64  `json:"price"`
		Stock       int64  `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" || req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "title and a positive price are required")
		return
	}

	id, err := s.shop.CreateItem(domain.Item{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CreatedBy:   identityFrom(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// handlePurchase buys one unit for the caller, debiting their account.
// POST /api/shop/items/{id}/purchase
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	receipt, err := s.shop.Purchase(id, identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"receipt": receipt})
}

// pathID parses a numeric chi path parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
