// ABOUTME: httptest double for the Salesforce token and sobject endpoints
// ABOUTME: Counts calls and captures requests for assertions
package sync

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"
)

const testObject = "User_Application_form_ABSA__c"

type mockCRM struct {
	server *httptest.Server

	authCalls  atomic.Int32
	writeCalls atomic.Int32

	// authStatus/authBody override the default successful token response.
	authStatus int
	authBody   string
	// writeStatus/writeBody default to 201 with id 0015g1.
	writeStatus int
	writeBody   string
	writeDelay  time.Duration

	mu              gosync.Mutex
	authForm        url.Values
	authContentType string
	writePath       string
	writeAuth       string
	writeType       string
	writePayload    []byte
}

func newMockCRM(t *testing.T) *mockCRM {
	t.Helper()

	m := &mockCRM{}
	mux := http.NewServeMux()
	mux.HandleFunc("/services/oauth2/token", m.handleToken)
	mux.HandleFunc("/services/data/", m.handleCreate)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)

	return m
}

func (m *mockCRM) handleToken(w http.ResponseWriter, r *http.Request) {
	m.authCalls.Add(1)
	_ = r.ParseForm()

	m.mu.Lock()
	m.authForm = r.PostForm
	m.authContentType = r.Header.Get("Content-Type")
	m.mu.Unlock()

	status := m.authStatus
	if status == 0 {
		status = http.StatusOK
	}
	body := m.authBody
	if body == "" {
		resp, _ := json.Marshal(map[string]string{
			"access_token": "tok-123",
			"instance_url": m.server.URL,
			"token_type":   "Bearer",
		})
		body = string(resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (m *mockCRM) handleCreate(w http.ResponseWriter, r *http.Request) {
	m.writeCalls.Add(1)
	payload, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.writePath = r.URL.Path
	m.writeAuth = r.Header.Get("Authorization")
	m.writeType = r.Header.Get("Content-Type")
	m.writePayload = payload
	m.mu.Unlock()

	if m.writeDelay > 0 {
		select {
		case <-time.After(m.writeDelay):
		case <-r.Context().Done():
			return
		}
	}

	status := m.writeStatus
	if status == 0 {
		status = http.StatusCreated
	}
	body := m.writeBody
	if body == "" {
		body = `{"id":"0015g1","success":true,"errors":[]}`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (m *mockCRM) config() *Config {
	return &Config{
		Credentials: Credentials{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Username:     "user@example.com",
			Password:     "hunter2token",
		},
		TokenURL:      m.server.URL + "/services/oauth2/token",
		ObjectAPIName: testObject,
		Timeout:       Duration(5 * time.Second),
	}
}

func (m *mockCRM) client() *SalesforceClient {
	return NewSalesforceClient(m.config(), m.server.Client())
}

func (m *mockCRM) calls() (auth, write int32) {
	return m.authCalls.Load(), m.writeCalls.Load()
}
