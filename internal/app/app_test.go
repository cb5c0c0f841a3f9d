package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"massupload/internal/config"
	"massupload/internal/shared/testutil"
	"massupload/internal/upload/uploadtest"
	ws "massupload/internal/websocket"
)

type ApplicationSuite struct {
	suite.Suite
	app    *Application
	server *httptest.Server
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Upload.ResultsDir = s.T().TempDir()
	cfg.Security.RateLimit.Enabled = false
	cfg.Security.AllowedOrigins = nil
	cfg.Server.ShutdownTimeout = 5 * time.Second

	logger, _ := testutil.NewTestLogger(s.T())
	a, err := NewApplication(context.Background(), cfg, logger)
	s.Require().NoError(err)
	a.StartBackground(context.Background())

	s.app = a
	s.server = httptest.NewServer(a.Router)
}

func (s *ApplicationSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.app.Stop(context.Background()))
}

func (s *ApplicationSuite) do(method, path, user string, body io.Reader, contentType string) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *ApplicationSuite) decode(resp *http.Response) map[string]any {
	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *ApplicationSuite) postWorkbook(path, user string) *http.Response {
	data := uploadtest.XLSX(s.T(),
		uploadtest.Row("PART_12NC", "DESCRIPTION", "UNIT_OF_MEASURE"),
		uploadtest.Row("934056781234", "Resistor 10k", "PCS"),
		uploadtest.Row("934056781235", "Capacitor 1uF", "PCS"))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "parts.xlsx")
	s.Require().NoError(err)
	_, err = part.Write(data)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())
	return s.do(http.MethodPost, path, user, &body, mw.FormDataContentType())
}

func (s *ApplicationSuite) TestHealth() {
	resp := s.do(http.MethodGet, "/api/health", "", nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ready", s.decode(resp)["status"])
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
}

func (s *ApplicationSuite) TestUploadTypes() {
	resp := s.do(http.MethodGet, "/api/upload-types", "", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var names []string
	for _, item := range s.decode(resp)["types"].([]any) {
		names = append(names, item.(map[string]any)["type"].(string))
	}
	s.ElementsMatch([]string{"PART_MASTER", "YIELD_PARAMETER"}, names)

	resp = s.do(http.MethodGet, "/api/upload-types/PART_MASTER/template", "", nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "spreadsheetml")
}

func (s *ApplicationSuite) TestInlineUploadAndHistory() {
	resp := s.postWorkbook("/api/uploads/PART_MASTER", "planner")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	out := s.decode(resp)
	s.Equal("completed", out["status"])
	s.Equal(2.0, out["summary"].(map[string]any)["insertCount"])

	resp = s.do(http.MethodGet, "/api/uploads/history", "planner", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	history := s.decode(resp)
	s.Require().Equal(1.0, history["count"])
	entry := history["uploads"].([]any)[0].(map[string]any)
	s.Equal(out["uploadId"], entry["id"])

	annotated := entry["annotated"].(string)
	resp = s.do(http.MethodGet, annotated, "planner", nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, annotated, "someone-else", nil, "")
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/metrics", "", nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	metrics, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(metrics), "uploads")
	s.Contains(string(metrics), "go_goroutines")
}

func (s *ApplicationSuite) TestQueuedUploadNotifiesUser() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?user=planner"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	var msg ws.Message
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	s.Require().NoError(conn.ReadJSON(&msg))
	s.Equal(ws.TypeConnection, msg.Type)

	resp := s.postWorkbook("/api/uploads/PART_MASTER?async=true", "planner")
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	uploadID := s.decode(resp)["uploadId"].(string)

	for {
		var msg ws.Message
		s.Require().NoError(conn.ReadJSON(&msg))
		data, ok := msg.Data.(map[string]any)
		if !ok || data["upload_id"] != uploadID {
			continue
		}
		if msg.Type == ws.TypeUploadStatus && data["status"] == "completed" {
			s.Equal(100.0, data["percent"])
			break
		}
	}

	s.Eventually(func() bool {
		resp := s.do(http.MethodGet, "/api/uploads/jobs/"+uploadID, "planner", nil, "")
		return resp.StatusCode == http.StatusOK &&
			s.decode(resp)["job"].(map[string]any)["status"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)
}

func (s *ApplicationSuite) TestErrors() {
	resp := s.do(http.MethodGet, "/api/uploads/history", "", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/nothing-here", "", nil, "")
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/ws", "", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}
