package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastrack/relay/internal/engine"
	"github.com/gastrack/relay/internal/store"
	"github.com/gastrack/relay/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	eng, err := engine.New(engine.Deps{
		Rules:   store.NewMemoryRuleStore(),
		Logs:    store.NewMemoryLogStore(),
		Records: store.NewMemoryRecordStore(),
		Logger:  slog.Default(),
	})
	require.NoError(t, err)

	h := NewHandler(eng, slog.Default())
	srv := httptest.NewServer(h.Router(nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func ruleBody() map[string]any {
	return map[string]any{
		"name":    "notify on maintenance",
		"trigger": "bottle_status_changed",
		"conditions": []map[string]any{
			{"field": "newData.new_status", "operator": "equals", "value": "maintenance_required"},
		},
		"actions": []map[string]any{
			{"type": "send_email", "config": map[string]any{
				"to": "ops@example.com", "subject": "s", "body": "b",
			}},
		},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/triggers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var triggers []types.TriggerDefinition
	require.NoError(t, json.Unmarshal(body, &triggers))
	assert.Len(t, triggers, 18)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/actions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var actions []types.ActionDefinition
	require.NoError(t, json.Unmarshal(body, &actions))
	assert.Len(t, actions, 8)
}

func TestCreateRule_API(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/organizations/org-1/rules", ruleBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "org-1", created.OrganizationID)
	assert.True(t, created.IsActive, "rules default to active")
}

func TestCreateRule_API_ExplicitlyInactive(t *testing.T) {
	srv := newTestServer(t)

	payload := ruleBody()
	payload["isActive"] = false
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/organizations/org-1/rules", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))
	assert.False(t, created.IsActive)
}

func TestCreateRule_API_Invalid(t *testing.T) {
	srv := newTestServer(t)

	payload := ruleBody()
	payload["trigger"] = "bottle_teleported"
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/organizations/org-1/rules", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unknown trigger")
}

func TestRuleLifecycle_API(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	_, body := doJSON(t, http.MethodPost, base+"/organizations/org-1/rules", ruleBody())
	var created types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))
	ruleURL := fmt.Sprintf("%s/rules/%s", base, created.ID)

	// Read it back.
	resp, body := doJSON(t, http.MethodGet, ruleURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Update keeps org and id from the path.
	payload := ruleBody()
	payload["name"] = "renamed"
	resp, body = doJSON(t, http.MethodPut, ruleURL, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "org-1", updated.OrganizationID)

	// Toggle twice.
	resp, body = doJSON(t, http.MethodPost, ruleURL+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"isActive":false}`, string(body))
	resp, body = doJSON(t, http.MethodPost, ruleURL+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"isActive":true}`, string(body))

	// List is org scoped.
	resp, body = doJSON(t, http.MethodGet, base+"/organizations/org-1/rules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules []types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &rules))
	assert.Len(t, rules, 1)

	// Delete, then 404.
	resp, _ = doJSON(t, http.MethodDelete, ruleURL, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, ruleURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateRule_API_OmittedIsActiveKeepsState(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/organizations/org-1/rules", ruleBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))
	require.True(t, created.IsActive)

	// A rename without an isActive field must not deactivate the rule.
	update := ruleBody()
	update["name"] = "renamed"
	ruleURL := fmt.Sprintf("%s/api/v1/rules/%s", srv.URL, created.ID)
	resp, body = doJSON(t, http.MethodPut, ruleURL, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.IsActive)

	// Explicit false still deactivates...
	update["isActive"] = false
	resp, body = doJSON(t, http.MethodPut, ruleURL, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.False(t, updated.IsActive)

	// ...and a later field-free update keeps the rule inactive.
	delete(update, "isActive")
	resp, body = doJSON(t, http.MethodPut, ruleURL, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.False(t, updated.IsActive)
}

func TestRuleNotFound_API(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/rules/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/rules/nonexistent/toggle", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed ids never reach the store.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/rules/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/rules/not-a-uuid/logs", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A valid UUID that is not stored 404s through the store.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/rules/"+string(types.NewRuleID()), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTestRule_API(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	_, body := doJSON(t, http.MethodPost, base+"/organizations/org-1/rules", ruleBody())
	var created types.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))

	sample := map[string]any{
		"newData": map[string]any{"new_status": "maintenance_required", "serial_number": "B-1"},
	}
	resp, body := doJSON(t, http.MethodPost, fmt.Sprintf("%s/rules/%s/test", base, created.ID), sample)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var entry types.ExecutionLog
	require.NoError(t, json.Unmarshal(body, &entry))
	assert.True(t, entry.ConditionsMet)
	require.Len(t, entry.Results, 1)
	assert.True(t, entry.Results[0].Success)

	// The test run shows up in the logs endpoint.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/rules/%s/logs?limit=10", base, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []types.ExecutionLog
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Len(t, logs, 1)
}

func TestListLogs_InvalidLimit(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/rules/x/logs?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/organizations/org-1/rules", "application/json",
		bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
