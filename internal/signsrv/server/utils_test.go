package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkform/inkform/internal/common/middleware"
	"github.com/inkform/inkform/internal/signsrv/config"
	"github.com/inkform/inkform/internal/signsrv/db/memory"
	"github.com/inkform/inkform/internal/signsrv/docsign"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/internal/signsrv/workflow"
)

func newTestServer(t *testing.T) *SignServer {
	t.Helper()
	config.TestInit()

	keys := keymanager.New(memory.NewKeyStore(), config.Config().Signing.KeyEncryptionPasswd)
	requests := workflow.NewRequestService(memory.NewRequestStore(), config.Config().Requests.TokenSecret, config.Config().Requests.MaxExpirationHours)
	docs := docsign.New(keys, memory.NewSignatureStore(), requests, nil)

	s := CreateNewServer(docs, keys, requests, nil)
	s.MountHandlers()
	return s
}

func executeTestRequest(t *testing.T, s *SignServer, req *http.Request, identity string) *httptest.ResponseRecorder {
	t.Helper()
	if identity != "" {
		req.Header.Set(IdentityHeader, identity)
	}
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func checkHeader(t *testing.T, h http.Header) {
	expected := "application/json"
	got := h.Get("Content-Type")
	assert.Equal(t, expected, got, "Content-Type expected %s, got %s", expected, got)
	assert.NotEmpty(t, h.Get(middleware.RequestIDHeader), "no request ID")
}

func compareJson(t *testing.T, expected any, actual string) {
	var j []byte
	var err error

	switch v := expected.(type) {
	case string:
		if json.Valid([]byte(v)) {
			j = []byte(v)
		} else {
			j, err = json.Marshal(v)
			assert.NoError(t, err, "json marshal")
		}
	case []byte:
		if json.Valid(v) {
			j = v
		} else {
			j, err = json.Marshal(string(v))
			assert.NoError(t, err, "json marshal")
		}
	default:
		j, err = json.Marshal(expected)
		assert.NoError(t, err, "json marshal")
	}

	assert.JSONEq(t, string(j), actual, "Expected: %v\nGot: %v\n", expected, actual)
}

func setRequestBodyAndHeader(t *testing.T, req *http.Request, data interface{}) {
	t.Helper()
	var jsonData []byte
	if s, ok := data.(string); ok {
		if json.Valid([]byte(s)) {
			jsonData = []byte(s)
		}
	} else if b, ok := data.([]byte); ok {
		if json.Valid(b) {
			jsonData = b
		}
	} else {
		var err error
		jsonData, err = json.Marshal(data)
		assert.NoError(t, err, "Failed to marshal data into JSON")
	}

	req.Body = io.NopCloser(bytes.NewReader(jsonData))
	req.ContentLength = int64(len(jsonData))
	req.Header.Set("Content-Type", "application/json")
}
