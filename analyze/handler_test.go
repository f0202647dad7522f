package analyze

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.pipeline, 5*time.Second, 1<<20, nil).RegisterRoutes(r)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", "report.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func post(r *gin.Engine, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_Document(t *testing.T) {
	f := newFixture(t, &scripted{err: errors.New("429")}, &scripted{text: documentJSON})
	body, ct := multipartBody(t, map[string]string{"mode": "document"}, []byte{0x89, 'P', 'N', 'G'})

	w := post(newRouter(f), "/analyze", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			Summary string `json:"summary"`
		} `json:"result"`
		ModelUsed string `json:"modelUsed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "HbA1c high", resp.Result.Summary)
	assert.Equal(t, "gemini-2.5-flash-lite", resp.ModelUsed)
}

func TestAnalyze_NoFile(t *testing.T) {
	f := newFixture(t, &scripted{text: documentJSON}, &scripted{})
	body, ct := multipartBody(t, map[string]string{"clinicalContext": "x"}, nil)

	w := post(newRouter(f), "/analyze", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file provided"}`, w.Body.String())
	assert.Empty(t, f.primary.prompts)
}

func TestAnalyze_InvocationFailure(t *testing.T) {
	f := newFixture(t, &scripted{err: errors.New("quota")}, &scripted{err: errors.New("down")})
	body, ct := multipartBody(t, nil, []byte("img"))

	w := post(newRouter(f), "/analyze", body, ct)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to analyze the report.", resp["error"])
	assert.Contains(t, resp["details"], "down")
}

func TestAnalyze_SummaryParseFailure(t *testing.T) {
	f := newFixture(t, &scripted{text: "not json at all"}, &scripted{})
	body, ct := multipartBody(t, map[string]string{"mode": "summary"}, nil)

	w := post(newRouter(f), "/analyze", body, ct)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to parse Summary JSON","raw":"not json at all"}`, w.Body.String())
}

func TestAnalyze_SummaryWithoutFile(t *testing.T) {
	f := newFixture(t, &scripted{text: `{"title":"T","keyFindings":[]}`}, &scripted{})
	body, ct := multipartBody(t, map[string]string{"mode": "summary"}, nil)

	w := post(newRouter(f), "/analyze", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"isSummary":true`)
}

func TestStream_EmitsStagesThenResult(t *testing.T) {
	f := newFixture(t, &scripted{text: documentJSON}, &scripted{})
	body, ct := multipartBody(t, nil, []byte("img"))

	w := post(newRouter(f), "/analyze/stream", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()

	var order []string
	for _, s := range []string{`"stage":"prompt"`, `"stage":"invoke"`, `"stage":"parse"`, `"stage":"persist"`, `"stage":"done"`, `"stage":"result"`, "data: [DONE]"} {
		i := strings.Index(out, s)
		require.GreaterOrEqual(t, i, 0, "missing %s in %s", s, out)
		order = append(order, s)
		out = out[i:]
	}
	assert.Len(t, order, 7)
}

func TestStream_ErrorEvent(t *testing.T) {
	f := newFixture(t, &scripted{err: errors.New("a")}, &scripted{err: errors.New("b")})
	body, ct := multipartBody(t, nil, []byte("img"))

	w := post(newRouter(f), "/analyze/stream", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stage":"error"`)
	assert.Contains(t, w.Body.String(), `"error":"Failed to analyze the report."`)
}

func TestStream_NoFile(t *testing.T) {
	f := newFixture(t, &scripted{text: documentJSON}, &scripted{})
	body, ct := multipartBody(t, nil, nil)
	w := post(newRouter(f), "/analyze/stream", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
