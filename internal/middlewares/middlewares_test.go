package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func TestJSONMiddleware(t *testing.T) {
	handler := JSONMiddleware[payload](http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := GetParsedJSONData[payload](w, r)
		require.True(t, ok)
		EncodeJSONResponse(w, http.StatusCreated, data)
	}))

	testCases := []struct {
		testName     string
		contentType  string
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			testName:     "parses the body",
			contentType:  "application/json; charset=utf-8",
			body:         `{"name":"x"}`,
			expectedCode: http.StatusCreated,
			expectedBody: `{"name":"x"}`,
		},
		{
			testName:     "rejects other content types",
			contentType:  "text/plain",
			body:         `{"name":"x"}`,
			expectedCode: http.StatusUnsupportedMediaType,
			expectedBody: `{"error":"Тип контента не является application/json"}`,
		},
		{
			testName:     "rejects malformed json",
			contentType:  "application/json",
			body:         `{`,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"Ошибка при разборе данных JSON: unexpected end of JSON input"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}

func TestEncodeJSONErrorWithFields(t *testing.T) {
	rec := httptest.NewRecorder()
	EncodeJSONError(rec, http.StatusBadRequest, "ошибка валидации", map[string]string{"amount": "обязательное поле"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "обязательное поле", resp.Fields["amount"])
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1003"))
}

func TestOptionalJSONMiddleware(t *testing.T) {
	handler := OptionalJSONMiddleware[payload](http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := GetParsedJSONData[payload](w, r)
		require.True(t, ok)
		EncodeJSONResponse(w, http.StatusOK, data)
	}))

	testCases := []struct {
		testName     string
		contentType  string
		body         string
		expectedCode int
		expectedBody string
	}{
		{
			testName:     "empty body is an empty object",
			body:         "",
			expectedCode: http.StatusOK,
			expectedBody: `{"name":""}`,
		},
		{
			testName:     "parses a present body",
			contentType:  "application/json",
			body:         `{"name":"x"}`,
			expectedCode: http.StatusOK,
			expectedBody: `{"name":"x"}`,
		},
		{
			testName:     "present body still needs json content type",
			contentType:  "text/plain",
			body:         `{"name":"x"}`,
			expectedCode: http.StatusUnsupportedMediaType,
			expectedBody: `{"error":"Тип контента не является application/json"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}
