package api

import (
	"net/http"
	"strconv"

	"github.com/judgepay-labs/judgepay/internal/domain"
)

// ─── Task Lifecycle ─────────────────────────────────────────────────────────

type createTaskRequest struct {
	Caller string `json:"caller"`
	domain.CreateParams
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.ledger.CreateTask(req.Caller, req.CreateParams)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	task, err := s.ledger.GetTask(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"task_id": id,
		"task":    task,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := s.ledger.GetTask(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := s.ledger.ListTasks(status, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
	})
}

func (s *Server) handleTaskCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.ledger.TaskCount()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"count": count,
	})
}

func (s *Server) handleFindTask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	task, err := s.ledger.FindTask(q.Get("description_hash"), q.Get("requester"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	events, err := s.ledger.Events(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := s.ledger.ClaimTask(id, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type submitWorkRequest struct {
	Caller       string `json:"caller"`
	OutputHash   string `json:"output_hash"`
	OutputLength int64  `json:"output_length"`
}

func (s *Server) handleSubmitWork(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req submitWorkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := s.ledger.SubmitWork(id, req.Caller, req.OutputHash, req.OutputLength)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type evaluateRequest struct {
	Caller  string `json:"caller"`
	Approve bool   `json:"approve"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := s.ledger.Evaluate(id, req.Caller, req.Approve)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := s.ledger.RefundExpired(id, req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ─── Token Ledger ───────────────────────────────────────────────────────────

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Owner == "" || req.Spender == "" {
		writeError(w, http.StatusBadRequest, "invalid_parameters", "owner and spender are required")
		return
	}

	if err := s.tokens.Approve(req.Owner, req.Spender, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   req.Owner,
		"spender": req.Spender,
		"amount":  req.Amount,
	})
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.tokens.Mint(req.Account, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	balance, err := s.tokens.BalanceOf(req.Account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"balance": balance,
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := s.tokens.Allowance(q.Get("owner"), q.Get("spender"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"amount": amount,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.tokens.BalanceOf(r.URL.Query().Get("account"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"balance": balance,
	})
}
