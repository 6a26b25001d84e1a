package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecoboard/ecoboard/internal/app/approval"
	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/app/shop"
	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledger := reward.NewLedger(db)
	srv := NewServer(
		task.NewService(db),
		approval.NewService(db),
		ledger,
		shop.NewService(db, ledger),
		StaticVerifier{"tok-alice": "alice", "tok-bob": "bob", "tok-carol": "carol"},
	)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateAndVoteFlow(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", "tok-alice",
		map[string]interface{}{"title": "fix the fence", "reward": 60})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task = %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &created)

	taskPath := fmt.Sprintf("/api/tasks/%d", created.ID)

	rec = doJSON(t, h, http.MethodPost, taskPath+"/vote", "tok-bob", map[string]string{"type": "APPROVE"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("vote = %d: %s", rec.Code, rec.Body)
	}

	// Same voter again: conflict, counter untouched.
	rec = doJSON(t, h, http.MethodPost, taskPath+"/vote", "tok-bob", map[string]string{"type": "REJECT"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate vote = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, taskPath, "tok-alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get task = %d", rec.Code)
	}
	var got struct {
		Task struct {
			Status    string `json:"status"`
			CreatedBy string `json:"created_by"`
		} `json:"task"`
		Approval struct {
			Counter int64 `json:"counter"`
		} `json:"approval"`
	}
	decodeBody(t, rec, &got)
	if got.Task.Status != "WAITING_FOR_APPROVE" {
		t.Errorf("status = %q, want WAITING_FOR_APPROVE", got.Task.Status)
	}
	if got.Task.CreatedBy != "alice" {
		t.Errorf("created_by = %q, want alice", got.Task.CreatedBy)
	}
	if got.Approval.Counter != 1 {
		t.Errorf("counter = %d, want 1", got.Approval.Counter)
	}
}

func TestVoteOnMissingTask(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/tasks/404/vote", "tok-bob", map[string]string{"type": "APPROVE"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("vote on missing task = %d, want 404", rec.Code)
	}
}

func TestUnknownTokenFallsBackToDefault(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/account", "no-such-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account = %d: %s", rec.Code, rec.Body)
	}
	var account struct {
		UserID string `json:"user_id"`
		Amount int64  `json:"amount"`
	}
	decodeBody(t, rec, &account)
	if account.UserID != "default" {
		t.Errorf("user_id = %q, want default", account.UserID)
	}
	if account.Amount != 0 {
		t.Errorf("amount = %d, want 0", account.Amount)
	}
}

func TestSetTaskStatusOnlyResolved(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", "tok-alice", map[string]interface{}{"title": "t"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &created)
	statusPath := fmt.Sprintf("/api/tasks/%d/status", created.ID)

	rec = doJSON(t, h, http.MethodPut, statusPath, "tok-alice", map[string]string{"status": "TO_DO"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("set TO_DO = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, statusPath, "tok-alice", map[string]string{"status": "RESOLVED"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("set RESOLVED = %d, want 204: %s", rec.Code, rec.Body)
	}
}

func TestWriteOffMapsDomainErrors(t *testing.T) {
	h := newTestServer(t)

	// No account yet.
	rec := doJSON(t, h, http.MethodPost, "/api/account/writeoff", "tok-alice", map[string]int64{"amount": 10})
	if rec.Code != http.StatusNotFound {
		t.Errorf("write off without account = %d, want 404", rec.Code)
	}

	// Create a zero-balance account, then overdraw.
	if rec := doJSON(t, h, http.MethodGet, "/api/account", "tok-alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("get account = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/account/writeoff", "tok-alice", map[string]int64{"amount": 10})
	if rec.Code != http.StatusConflict {
		t.Errorf("overdraw = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/account/writeoff", "tok-alice", map[string]int64{"amount": -5})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative amount = %d, want 400", rec.Code)
	}
}

func TestShopPurchaseOverHTTP(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/shop/items", "tok-carol",
		map[string]interface{}{"title": "seed pack", "price": 15, "stock": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item = %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &created)
	purchasePath := fmt.Sprintf("/api/shop/items/%d/purchase", created.ID)

	// Buyer has no account: the debit fails and the claimed unit is restored.
	rec = doJSON(t, h, http.MethodPost, purchasePath, "tok-bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("purchase without account = %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/shop/items", "tok-bob", nil)
	var listed struct {
		Items []struct {
			Stock int64 `json:"stock"`
		} `json:"items"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Items) != 1 || listed.Items[0].Stock != 1 {
		t.Errorf("items after failed purchase = %+v, want the unit restored", listed.Items)
	}
}
