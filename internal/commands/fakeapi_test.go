package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/khanhbq56/money-tracking/internal/commands"
	"github.com/khanhbq56/money-tracking/internal/config"
)

// fakeAPI is an in-memory bank-integration backend.
type fakeAPI struct {
	mu sync.Mutex

	banks      []map[string]any
	permission bool
	preview    []map[string]any
	syncErr    string

	syncBodies    []map[string]any
	enableCalls   []string
	disableBodies []map[string]any
	created       []map[string]any
	imported      [][]map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{
		permission: true,
		banks: []map[string]any{
			{"bank_code": "tpbank", "name": "TPBank", "sender_pattern": "tpbank.com.vn", "is_enabled": false},
			{"bank_code": "vcb", "name": "Vietcombank", "sender_pattern": "vietcombank.com.vn", "is_enabled": true},
			{"bank_code": "custom_1", "name": "Timo", "sender_pattern": "alerts@timo.vn", "is_custom": true, "is_enabled": true},
		},
	}

	r := mux.NewRouter()
	api.routes(r.PathPrefix("/api/bank-integration").Subrouter())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv.URL + "/api/bank-integration"
}

func (f *fakeAPI) routes(r *mux.Router) {
	r.HandleFunc("/configs", f.handleConfigs).Methods(http.MethodGet)
	r.HandleFunc("/status", f.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/gmail-status", f.handleGmailStatus).Methods(http.MethodGet)
	r.HandleFunc("/enable", f.handleEnable).Methods(http.MethodPost)
	r.HandleFunc("/disable", f.handleDisable).Methods(http.MethodPost)
	r.HandleFunc("/sync", f.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/sync-preview", f.handlePreview).Methods(http.MethodPost)
	r.HandleFunc("/import-selected", f.handleImport).Methods(http.MethodPost)
	r.HandleFunc("/custom/create", f.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/sync-history", f.handleHistory).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) {
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, v)
}

func (f *fakeAPI) handleConfigs(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"configured_banks": f.banks})
}

func (f *fakeAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]any{}
	for _, b := range f.banks {
		out[b["bank_code"].(string)] = map[string]any{"enabled": b["is_enabled"], "last_sync": nil}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeAPI) handleGmailStatus(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"has_permission": f.permission})
}

func (f *fakeAPI) handleEnable(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableCalls = append(f.enableCalls, body["bank_code"].(string))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *fakeAPI) handleDisable(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disableBodies = append(f.disableBodies, body)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *fakeAPI) handleSync(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncBodies = append(f.syncBodies, body)
	if f.syncErr != "" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": f.syncErr})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{
		"bank_code": body["bank_code"], "new_emails": 5, "parsed_transactions": 4,
		"created_transactions": 3, "last_sync_at": "2024-03-15T09:00:00",
	}}})
}

func (f *fakeAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncBodies = append(f.syncBodies, body)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": f.preview})
}

func (f *fakeAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SelectedTransactions []map[string]any `json:"selected_transactions"`
	}
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, body.SelectedTransactions)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imported_count": len(body.SelectedTransactions)})
}

func (f *fakeAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	readJSON(r, &body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, body)
	code := "custom_new_" + body["bank_name"].(string)
	f.banks = append(f.banks, map[string]any{
		"bank_code": code, "name": body["bank_name"], "sender_pattern": body["sender_pattern"], "is_custom": true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bank_code": code})
}

func (f *fakeAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"transactions": []map[string]any{{
		"email_subject": "TPBank debit alert", "email_date": "2024-03-02T07:15:00",
		"transaction_type": "expense", "amount": 150000, "description": "Coffee " + r.URL.Query().Get("bank_code"),
		"status": "created",
	}}})
}

// setup writes a config pointing at a fresh fakeAPI.
func setup(t *testing.T) (*fakeAPI, string, string) {
	t.Helper()
	api, url := newFakeAPI(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Backend.BaseURL = url
	cfg.Activity.Dir = filepath.Join(dir, ".banksync")
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "banksync.yaml")
	require.NoError(t, config.Save(path, cfg))
	return api, path, dir
}

func run(t *testing.T, cfgPath string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := commands.Run(context.Background(), append([]string{"--config", cfgPath}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}
