package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/covenant-ai/be-contracts/internal/events"
	"github.com/covenant-ai/be-contracts/internal/logger"
	"github.com/covenant-ai/be-contracts/internal/repository"
	"github.com/covenant-ai/be-contracts/internal/service"
	"github.com/covenant-ai/be-contracts/internal/signature"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := logger.Nop()
	svc := service.NewContractService(
		repository.NewMemoryContractStore(),
		repository.NewMemoryAuditLog(),
		signature.NewVerifier(nil),
		nil, nil, nil,
		events.NewDispatcher(log.Logger),
		log,
	)
	srv := httptest.NewServer(NewHTTPHandler(svc, log).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "ops@acme.example")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createPayload() map[string]any {
	return map[string]any{
		"title":   "API flow",
		"content": "Terms of engagement.",
		"parties": []map[string]any{
			{"type": "brand", "name": "Acme", "email": "alice@acme.example", "role": "client"},
			{"type": "influencer", "name": "Bob", "email": "bob@creator.example", "role": "contractor"},
		},
	}
}

func TestContractAPIFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts", createPayload())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("create response missing id: %v", created)
	}
	if created["status"] != "draft" {
		t.Fatalf("expected draft, got %v", created["status"])
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts/"+id+"/send", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send: expected 200, got %d", resp.StatusCode)
	}

	resp, signBody := doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts/"+id+"/sign", map[string]any{
		"signerEmail": "alice@acme.example",
		"type":        "typed",
		"data":        "Alice Anderson",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d", resp.StatusCode)
	}
	if signBody["verified"] != true || signBody["completed"] != false {
		t.Fatalf("unexpected sign result: %v", signBody)
	}

	resp, status := doJSON(t, http.MethodGet, srv.URL+"/api/v1/contracts/"+id+"/signing-status", nil)
	if resp.StatusCode != http.StatusOK || status["complete"] != false {
		t.Fatalf("signing status: code=%d body=%v", resp.StatusCode, status)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/contracts/"+id+"/audit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit trail: expected 200, got %d", resp.StatusCode)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	// Validation error -> 400.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts", map[string]any{"title": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["code"] != "VALIDATION" {
		t.Fatalf("expected VALIDATION code, got %v", body["code"])
	}

	// Unknown contract -> 404.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/contracts/missing", nil)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404 NOT_FOUND, got %d %v", resp.StatusCode, body["code"])
	}

	// Signature protocol refusal -> 422.
	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts", createPayload())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	id := created["id"].(string)
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts/"+id+"/sign", map[string]any{
		"signerEmail": "alice@acme.example",
		"type":        "typed",
		"data":        "Alice",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || body["code"] != "SIGNATURE" {
		t.Fatalf("expected 422 SIGNATURE for signing a draft, got %d %v", resp.StatusCode, body["code"])
	}

	// Deleting a sent contract -> 409.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts/"+id+"/send", map[string]any{})
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/contracts/"+id, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT, got %d %v", resp.StatusCode, body["code"])
	}
}

func TestSweepEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/contracts/sweep", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sweep: expected 200, got %d", resp.StatusCode)
	}
	if _, ok := body["expired"]; !ok {
		t.Fatalf("sweep response missing expired count: %v", body)
	}
}

func TestAuditQueryRequiresFilter(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/audit", nil)
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "VALIDATION" {
		t.Fatalf("expected 400 VALIDATION without filters, got %d %v", resp.StatusCode, body["code"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/audit?actor=ops%40acme.example", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("actor query: expected 200, got %d", resp.StatusCode)
	}
}
