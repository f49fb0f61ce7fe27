// ABOUTME: Tests for the HTTP route layer
// ABOUTME: Exercises submit, QR generation, and scan endpoints against a fake CRM
package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/scanpush/db"
	"github.com/harperreed/scanpush/models"
	"github.com/harperreed/scanpush/qr"
	"github.com/harperreed/scanpush/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCRM struct {
	server      *httptest.Server
	writes      atomic.Int32
	writeStatus int
	writeBody   string
}

func newFakeCRM(t *testing.T) *fakeCRM {
	t.Helper()

	crm := &fakeCRM{writeStatus: http.StatusCreated, writeBody: `{"id":"0015g1","success":true,"errors":[]}`}
	mux := http.NewServeMux()
	mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok", "instance_url": crm.server.URL, "token_type": "Bearer",
		})
	})
	mux.HandleFunc("/services/data/", func(w http.ResponseWriter, r *http.Request) {
		crm.writes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(crm.writeStatus)
		_, _ = io.WriteString(w, crm.writeBody)
	})
	crm.server = httptest.NewServer(mux)
	t.Cleanup(crm.server.Close)

	return crm
}

type testEnv struct {
	server *httptest.Server
	forms  *db.FormStore
	crm    *fakeCRM
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "forms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	crm := newFakeCRM(t)
	client := sync.NewSalesforceClient(&sync.Config{
		Credentials: sync.Credentials{ClientID: "id", ClientSecret: "secret", Username: "u", Password: "p"},
		TokenURL:    crm.server.URL + "/services/oauth2/token",
		Timeout:     sync.Duration(5 * time.Second),
	}, crm.server.Client())

	forms := db.NewFormStore(database)
	orchestrator := sync.NewOrchestrator(sync.NewResolver(forms), client)

	server := httptest.NewServer(NewServer(forms, orchestrator).Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, forms: forms, crm: crm}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func postImage(t *testing.T, url, field string, image []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		part, err := mw.CreateFormFile(field, "scan.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func errorKind(t *testing.T, resp *http.Response) string {
	t.Helper()

	body := decodeBody(t, resp)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error object, got %v", body)
	return errBody["kind"].(string)
}

func submitAnn(t *testing.T, env *testEnv) {
	t.Helper()

	resp := postJSON(t, env.server.URL+"/submit", map[string]string{
		"id": "abc123", "name": "Ann", "email": "a@x.com", "phone": "555", "accountType": "Personal",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSubmitStoresForm(t *testing.T) {
	env := setupServer(t)

	resp := postJSON(t, env.server.URL+"/submit", map[string]string{
		"id": "abc123", "name": "Ann", "email": "a@x.com", "phone": "555", "accountType": "Personal",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "abc123", body["id"])
	assert.Equal(t, "Personal", body["accountType"])
	assert.Equal(t, true, body["created"])

	// Resubmitting the same id never overwrites.
	resp = postJSON(t, env.server.URL+"/submit", map[string]string{"id": "abc123", "name": "Mallory"})
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, "Ann", body["name"])
}

func TestSubmitGeneratesID(t *testing.T) {
	env := setupServer(t)

	resp := postJSON(t, env.server.URL+"/submit", map[string]string{"name": "No Id"})
	body := decodeBody(t, resp)

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec, err := env.forms.Get(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "No Id", rec.Name)
}

func TestSubmitRejectsBadJSON(t *testing.T) {
	env := setupServer(t)

	resp, err := http.Post(env.server.URL+"/submit", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(sync.KindInvalidInput), errorKind(t, resp))
}

func TestGenerateQRRoundTrips(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)

	resp := postJSON(t, env.server.URL+"/generate_qr", map[string]string{"id": "abc123"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "user_data_qr.png")

	image, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	id, err := qr.Decode(image)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestGenerateQRUnknownID(t *testing.T) {
	env := setupServer(t)

	resp := postJSON(t, env.server.URL+"/generate_qr", map[string]string{"id": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(sync.KindNotFound), errorKind(t, resp))
}

func TestUploadQRSyncsRecord(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)

	image, err := qr.Encode("abc123", 256)
	require.NoError(t, err)

	resp := postImage(t, env.server.URL+"/upload_qr", "file", image)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "0015g1", body["remote_id"])
	assert.Equal(t, int32(1), env.crm.writes.Load())
}

func TestProcessQRReturnsPayloadAndResult(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)

	image, err := qr.Encode("abc123", 256)
	require.NoError(t, err)

	resp := postImage(t, env.server.URL+"/process_qr", "qr_image", image)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, map[string]interface{}{
		"Name": "Ann", "Email_Address__c": "a@x.com", "Phone__c": "555", "Type__c": "Personal",
	}, body["data"])
	result := body["salesforce_result"].(map[string]interface{})
	assert.Equal(t, "0015g1", result["id"])
}

func TestUploadQRFailureKinds(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)

	unknown, err := qr.Encode("stale-code", 256)
	require.NoError(t, err)

	resp := postImage(t, env.server.URL+"/upload_qr", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(sync.KindInvalidInput), errorKind(t, resp))

	resp = postImage(t, env.server.URL+"/upload_qr", "file", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(sync.KindInvalidInput), errorKind(t, resp))

	resp = postImage(t, env.server.URL+"/upload_qr", "file", unknown)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(sync.KindNotFound), errorKind(t, resp))

	assert.Equal(t, int32(0), env.crm.writes.Load())
}

func TestUploadQRWriteFailureCarriesDetail(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)
	env.crm.writeStatus = http.StatusBadRequest
	env.crm.writeBody = `[{"message":"bad","errorCode":"INVALID_FIELD"}]`

	image, err := qr.Encode("abc123", 256)
	require.NoError(t, err)

	resp := postImage(t, env.server.URL+"/upload_qr", "file", image)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decodeBody(t, resp)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, string(sync.KindWriteFailed), errBody["kind"])
	assert.Equal(t, env.crm.writeBody, errBody["detail"])
	assert.Equal(t, float64(http.StatusBadRequest), errBody["upstream_status"])
}

func TestDecodeQR(t *testing.T) {
	env := setupServer(t)

	image, err := qr.Encode("any-id", 256)
	require.NoError(t, err)

	resp := postImage(t, env.server.URL+"/decode_qr", "file", image)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "any-id", decodeBody(t, resp)["id"])
}

func TestGetAndListForms(t *testing.T) {
	env := setupServer(t)
	submitAnn(t, env)

	resp, err := http.Get(env.server.URL + "/forms/abc123")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec models.FormRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	assert.Equal(t, "Ann", rec.Name)

	resp, err = http.Get(env.server.URL + "/forms")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Len(t, body["forms"], 1)
}

func TestHealthAndCORS(t *testing.T) {
	env := setupServer(t)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
