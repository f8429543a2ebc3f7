package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/model"
)

func newTestClient(t *testing.T, routes func(r *mux.Router), opts ...Option) *Client {
	t.Helper()
	r := mux.NewRouter()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/bank-integration/", opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

const prefix = "/api/bank-integration"

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare map", `{"tpbank":{"enabled":true,"last_sync":"2024-03-01T08:30:00"},"vcb":{"enabled":false,"last_sync":null}}`},
		{"wrapped", `{"success":true,"data":{"tpbank":{"enabled":true,"last_sync":"2024-03-01 08:30:00"},"vcb":{"enabled":false}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(r *mux.Router) {
				r.HandleFunc(prefix+"/status", func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, tt.body)
				}).Methods(http.MethodGet)
			})

			got, err := c.Status(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.True(t, got["tpbank"].Enabled)
			require.NotNil(t, got["tpbank"].LastSync)
			assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), *got["tpbank"].LastSync)
			assert.False(t, got["vcb"].Enabled)
			assert.Nil(t, got["vcb"].LastSync)
		})
	}
}

func TestConfigs(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/configs", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"configured_banks": []map[string]any{
					{"bank_code": "tpbank", "name": "TPBank", "sender_pattern": "tpbank.com.vn", "is_enabled": true},
					{"bank_code": "custom_1", "bank_name": "My Bank", "sender_pattern": "mybank.vn", "account_suffix": "1234", "is_custom": true},
				},
			})
		})
	})

	got, err := c.Configs(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.BankConfig{Code: "tpbank", Name: "TPBank", SenderPattern: "tpbank.com.vn", IsEnabled: true}, got[0])
	assert.Equal(t, "My Bank", got[1].Name)
	assert.Equal(t, "1234", got[1].AccountSuffix)
	assert.True(t, got[1].IsCustom)
}

func TestEnableSendsBankCodeAndCredential(t *testing.T) {
	var body map[string]any
	var auth string
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/enable", func(w http.ResponseWriter, r *http.Request) {
			body = decodeBody(t, r)
			auth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "last_sync_at": "2024-03-01T10:00:00Z"})
		}).Methods(http.MethodPost)
	}, WithTokenSource(StaticToken("secret")))

	ack, err := c.Enable(context.Background(), "tpbank")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"bank_code": "tpbank"}, body)
	assert.Equal(t, "Bearer secret", auth)
	require.NotNil(t, ack.LastSyncAt)
	assert.Equal(t, 2024, ack.LastSyncAt.Year())
}

func TestDisableDeleteCustom(t *testing.T) {
	var bodies []map[string]any
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/disable", func(w http.ResponseWriter, r *http.Request) {
			bodies = append(bodies, decodeBody(t, r))
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		}).Methods(http.MethodPost)
	})

	_, err := c.Disable(context.Background(), "vcb", false)
	require.NoError(t, err)
	_, err = c.Disable(context.Background(), "custom_1", true)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"bank_code": "vcb"}, bodies[0])
	assert.Equal(t, map[string]any{"bank_code": "custom_1", "delete_custom": true}, bodies[1])
}

func TestGmailStatus(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/gmail-status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"has_permission": true})
		})
	})
	ok, err := c.GmailStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncSendsScopeParams(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/sync", func(w http.ResponseWriter, r *http.Request) {
			body = decodeBody(t, r)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"data": []map[string]any{{
					"bank_code": "tpbank", "new_emails": 4, "parsed_transactions": 3,
					"created_transactions": 2, "last_sync_at": "2024-03-15T09:00:00.123456",
				}},
			})
		}).Methods(http.MethodPost)
	})

	req := model.SyncRequest{
		BankCode: "tpbank",
		Scope:    model.MonthScope{Year: 2024, Month: time.March},
	}
	res, err := c.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"bank_code":     "tpbank",
		"force_refresh": false,
		"sync_year":     float64(2024),
		"sync_month":    float64(3),
	}, body)

	s, ok := res.First()
	require.True(t, ok)
	assert.Equal(t, 4, s.NewEmails)
	assert.Equal(t, 3, s.Parsed)
	assert.Equal(t, 2, s.Created)
	require.NotNil(t, s.LastSyncAt)
	assert.Equal(t, 15, s.LastSyncAt.Day())
}

func TestSyncSingleSummaryObject(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/sync", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"success":true,"data":{"bank_code":"vcb","created_transactions":1}}`)
		})
	})
	res, err := c.Sync(context.Background(), model.SyncRequest{BankCode: "vcb", Scope: model.RecentScope{}})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, "vcb", res.Summaries[0].BankCode)
	assert.Equal(t, 1, res.Summaries[0].Created)
}

const previewBody = `{
  "success": true,
  "transactions": [
    {"email_subject": "Debit alert", "email_date": "2024-03-02T07:15:00+07:00", "transaction_type": "expense",
     "amount": 150000, "ai_confidence": 0.97, "description": "Coffee", "server_ref": "abc"},
    {"email_subject": "Card payment", "email_date": "2024-03-03", "transaction_type": "expense",
     "amount": "12.5", "final_amount": 312500,
     "currency_info": {"conversion_applied": true, "exchange_rate": 25000, "original_currency": "USD"},
     "ai_confidence": 0.6, "description": "Books"}
  ],
  "exchange_rate_info": {"rate": 25000, "from_currency": "USD", "to_currency": "VND", "updated_at": "2024-03-01"}
}`

func TestSyncPreviewDecodesCandidates(t *testing.T) {
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/sync-preview", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, previewBody)
		}).Methods(http.MethodPost)
	})

	res, err := c.SyncPreview(context.Background(), model.SyncRequest{BankCode: "tpbank", Scope: model.AllScope{}})
	require.NoError(t, err)
	assert.Equal(t, "tpbank", res.BankCode)
	require.Len(t, res.Candidates, 2)

	first := res.Candidates[0]
	assert.Equal(t, model.TypeExpense, first.Type)
	assert.True(t, decimal.NewFromInt(150000).Equal(first.Amount))
	assert.True(t, first.Amount.Equal(first.FinalAmount), "final amount defaults to amount")
	assert.True(t, decimal.RequireFromString("0.97").Equal(first.Confidence))
	assert.Contains(t, string(first.Raw), `"server_ref": "abc"`)

	second := res.Candidates[1]
	assert.True(t, decimal.NewFromInt(312500).Equal(second.FinalAmount))
	assert.True(t, second.Currency.ConversionApplied)
	assert.Equal(t, "USD", second.Currency.OriginalCurrency)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), second.EmailDate)

	require.NotNil(t, res.ExchangeRate)
	assert.Equal(t, "VND", res.ExchangeRate.To)
	assert.True(t, decimal.NewFromInt(25000).Equal(res.ExchangeRate.Rate))
}

func TestImportSelectedResubmitsRawCandidates(t *testing.T) {
	var got struct {
		SelectedTransactions []map[string]any `json:"selected_transactions"`
	}
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/import-selected", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, map[string]any{
				"success":        true,
				"imported_count": 1,
				"errors":         []map[string]any{{"index": 1, "reason": "duplicate"}},
			})
		}).Methods(http.MethodPost)
	})

	txns := []model.CandidateTransaction{
		{Raw: json.RawMessage(`{"email_subject":"a","server_ref":"x1"}`)},
		{EmailSubject: "b", Type: model.TypeSaving, Amount: decimal.NewFromInt(10), FinalAmount: decimal.NewFromInt(10)},
	}
	res, err := c.ImportSelected(context.Background(), txns)
	require.NoError(t, err)

	require.Len(t, got.SelectedTransactions, 2)
	assert.Equal(t, "x1", got.SelectedTransactions[0]["server_ref"])
	assert.Equal(t, "b", got.SelectedTransactions[1]["email_subject"])
	assert.Equal(t, "saving", got.SelectedTransactions[1]["transaction_type"])

	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, []model.ImportError{{CandidateIndex: 1, Reason: "duplicate"}}, res.Errors)
}

func TestCreateCustom(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/custom/create", func(w http.ResponseWriter, r *http.Request) {
			body = decodeBody(t, r)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "bank_code": "custom_7"})
		}).Methods(http.MethodPost)
	})

	code, err := c.CreateCustom(context.Background(), model.CustomBankInput{Name: "My Bank", SenderPattern: "mybank.vn"})
	require.NoError(t, err)
	assert.Equal(t, "custom_7", code)
	assert.Equal(t, map[string]any{"bank_name": "My Bank", "sender_pattern": "mybank.vn"}, body)
}

func TestSyncHistory(t *testing.T) {
	var query string
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/sync-history", func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query().Get("bank_code")
			writeJSON(w, http.StatusOK, map[string]any{"transactions": []map[string]any{{
				"email_subject": "Debit", "transaction_type": "expense", "amount": 5000,
				"status": "created", "created_at": "2024-03-02 10:00:00",
			}}})
		}).Methods(http.MethodGet)
	})

	items, err := c.SyncHistory(context.Background(), "tpbank")
	require.NoError(t, err)
	assert.Equal(t, "tpbank", query)
	require.Len(t, items, 1)
	assert.Equal(t, "created", items[0].Status)
	require.NotNil(t, items[0].CreatedAt)
	assert.Equal(t, 10, items[0].CreatedAt.Hour())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    apperr.Kind
		message string
	}{
		{
			name: "non-2xx with server message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "gmail quota exceeded"})
			},
			kind:    apperr.KindServer,
			message: "gmail quota exceeded",
		},
		{
			name: "non-2xx without body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			kind:    apperr.KindServer,
			message: "502 Bad Gateway",
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "bank not configured"})
			},
			kind:    apperr.KindServer,
			message: "bank not configured",
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"has_permission": "maybe"}`)
			},
			kind: apperr.KindServer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(r *mux.Router) {
				r.HandleFunc(prefix+"/gmail-status", tt.handler)
			})
			_, err := c.GmailStatus(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			if tt.message != "" {
				var e *apperr.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.message, e.Message)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).GmailStatus(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestTimeoutAndCancel(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, func(r *mux.Router) {
		r.HandleFunc(prefix+"/sync", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		})
	})
	req := model.SyncRequest{BankCode: "tpbank", Scope: model.RecentScope{}}

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Sync(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrTimeout)
	})

	t.Run("request timeout option", func(t *testing.T) {
		c := *c
		c.timeout = 50 * time.Millisecond
		_, err := c.Sync(context.Background(), req)
		assert.ErrorIs(t, err, apperr.ErrTimeout)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := c.Sync(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrCanceled)
	})
}

func TestTimestampLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-03-01T08:30:00Z"`, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{`"2024-03-01T08:30:00+07:00"`, time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC)},
		{`"2024-03-01T08:30:00"`, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{`"2024-03-01T08:30:00.5"`, time.Date(2024, 3, 1, 8, 30, 0, 500_000_000, time.UTC)},
		{`"2024-03-01 08:30:00"`, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)},
		{`"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
