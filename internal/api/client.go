package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/judgepay-labs/judgepay/internal/app/lifecycle"
	"github.com/judgepay-labs/judgepay/internal/domain"
	"github.com/judgepay-labs/judgepay/internal/infra/ledger"
)

// Client talks to a running JudgePay server. It implements
// lifecycle.Client so orchestrators can drive a remote ledger, and adds
// the token and listing calls the CLI uses.
//
// Connectivity failures are wrapped as lifecycle.TransportError so the
// orchestrator retries them; ledger failures are reconstructed as the
// original domain sentinel errors.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://127.0.0.1:8990).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ─── Task Lifecycle ─────────────────────────────────────────────────────────

// CreateTask funds and creates a task, returning its assigned id.
func (c *Client) CreateTask(ctx context.Context, requester string, p domain.CreateParams) (int64, error) {
	var out struct {
		TaskID int64 `json:"task_id"`
	}
	req := createTaskRequest{Caller: requester, CreateParams: p}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &out); err != nil {
		return 0, err
	}
	return out.TaskID, nil
}

// ClaimTask assigns caller as the task's worker.
func (c *Client) ClaimTask(ctx context.Context, id int64, caller string) (*domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/claim", id),
		callerRequest{Caller: caller}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// SubmitWork records the output commitment for a claimed task.
func (c *Client) SubmitWork(ctx context.Context, id int64, caller, outputHash string, outputLength int64) (*domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/submit", id),
		submitWorkRequest{Caller: caller, OutputHash: outputHash, OutputLength: outputLength}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Evaluate casts an approve/reject vote on a submitted task.
func (c *Client) Evaluate(ctx context.Context, id int64, caller string, approve bool) (*domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/evaluate", id),
		evaluateRequest{Caller: caller, Approve: approve}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// RefundExpired triggers the deadline-refund path.
func (c *Client) RefundExpired(ctx context.Context, id int64, caller string) (*domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/refund", id),
		callerRequest{Caller: caller}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// FindTask locates a task by description commitment and requester.
func (c *Client) FindTask(ctx context.Context, descriptionHash, requester string) (*domain.Task, error) {
	var task domain.Task
	path := "/api/tasks/find?" + url.Values{
		"description_hash": {descriptionHash},
		"requester":        {requester},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskCount returns the total number of tasks ever created.
func (c *Client) TaskCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ListTasks returns tasks newest-first, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status domain.TaskStatus, limit int) ([]domain.Task, error) {
	var out struct {
		Tasks []domain.Task `json:"tasks"`
	}
	path := "/api/tasks?" + url.Values{
		"status": {string(status)},
		"limit":  {fmt.Sprint(limit)},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Events returns a task's observable events oldest-first.
func (c *Client) Events(ctx context.Context, id int64) ([]domain.Event, error) {
	var out struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/events", id), nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// ─── Token Ledger ───────────────────────────────────────────────────────────

// Approve authorizes the escrow to pull amount from owner.
func (c *Client) Approve(ctx context.Context, owner string, amount int64) error {
	req := approveRequest{Owner: owner, Spender: ledger.EscrowAccount, Amount: amount}
	return c.do(ctx, http.MethodPost, "/api/token/approve", req, nil)
}

// Allowance returns the remaining owner→escrow authorization.
func (c *Client) Allowance(ctx context.Context, owner string) (int64, error) {
	var out struct {
		Amount int64 `json:"amount"`
	}
	path := "/api/token/allowance?" + url.Values{
		"owner":   {owner},
		"spender": {ledger.EscrowAccount},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

// Mint issues tokens to an account (faucet path).
func (c *Client) Mint(ctx context.Context, account string, amount int64) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	req := mintRequest{Account: account, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/api/token/mint", req, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// BalanceOf returns an account's token balance.
func (c *Client) BalanceOf(ctx context.Context, account string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	path := "/api/token/balance?" + url.Values{"account": {account}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// ─── Transport ──────────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &lifecycle.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &lifecycle.TransportError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// decodeError reconstructs a typed domain error from the wire envelope.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return fmt.Errorf("server returned %s: %s", resp.Status, string(raw))
	}

	if sentinel := ErrorFor(envelope.Error.Code); sentinel != nil {
		return sentinel
	}
	return fmt.Errorf("server error %s: %s", envelope.Error.Code, envelope.Error.Message)
}
