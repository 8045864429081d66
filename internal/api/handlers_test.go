package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iammorganparry/timeline/internal/archive"
	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/games"
	"github.com/iammorganparry/timeline/internal/models"
	"github.com/iammorganparry/timeline/internal/narrator"
	"github.com/iammorganparry/timeline/internal/timeline"
)

// fakeOllamaServer answers /api/generate according to which prompt it sees.
func fakeOllamaServer(t *testing.T, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			if failing.Load() {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
				return
			}
			var req struct {
				Prompt string `json:"prompt"`
			}
			json.NewDecoder(r.Body).Decode(&req)

			var out string
			switch {
			case strings.Contains(req.Prompt, "Propose"):
				out = `{"events": ["Apollo 11 lands on the Moon", "Woodstock opens"]}`
			case strings.Contains(req.Prompt, "The player decided"):
				out = `{"narrative": "A Mars colony is founded.", "year": 1985, "auto_generated_events": [], "choices": []}`
			default:
				out = `{"narrative": "Armstrong plants a flag.", "year": 1969,
					"auto_generated_events": [{"event": "Nixon calls the crew.", "year": 1969}],
					"choices": ["Fund a Mars mission", "Cut the budget"]}`
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"response": out, "done": true})
		case "/api/tags":
			if failing.Load() {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testServer struct {
	*httptest.Server
	failing *atomic.Bool
}

func setupServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	failing := &atomic.Bool{}
	ollama := fakeOllamaServer(t, failing)
	client, err := narrator.NewClient(ollama.URL, "llama3.2", 0.8, nil, logger)
	if err != nil {
		t.Fatalf("narrator: %v", err)
	}

	db, err := archive.Open(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := timeline.WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })
	registry := games.NewRegistry(client, 5*time.Second, logger, clock)

	router := NewRouter(registry, archive.NewStore(db), client,
		export.NewPDFExporter(export.DefaultLayout()), export.NewXLSXExporter(),
		Options{APIKey: apiKey, CORSOrigins: []string{"*"}}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, failing: failing}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeView(t *testing.T, resp *http.Response) games.View {
	t.Helper()
	var v games.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, b)
	}
}

func createGame(t *testing.T, s *testServer) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/games", nil)
	expectStatus(t, resp, http.StatusCreated)
	return decodeView(t, resp).ID
}

func TestHealth(t *testing.T) {
	s := setupServer(t, "")

	resp := s.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
	var health models.HealthResponse
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != "ok" || health.Narrator.Status != "ok" || health.DB.Status != "ok" {
		t.Errorf("unexpected health %+v", health)
	}

	s.failing.Store(true)
	resp = s.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func TestListChroniclesEmpty(t *testing.T) {
	s := setupServer(t, "")

	resp := s.do(t, http.MethodGet, "/chronicles", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestPlayThroughAndArchive(t *testing.T) {
	s := setupServer(t, "")
	id := createGame(t, s)

	resp := s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "1969", Era: models.EraAD})
	expectStatus(t, resp, http.StatusOK)
	v := decodeView(t, resp)
	if v.Phase != timeline.PhaseSelectingEvent || len(v.InitialEvents) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}

	resp = s.do(t, http.MethodPost, "/games/"+id+"/event", models.SelectEventRequest{Event: v.InitialEvents[0]})
	expectStatus(t, resp, http.StatusOK)
	v = decodeView(t, resp)
	if v.Phase != timeline.PhaseInGame || len(v.History) != 3 || len(v.Choices) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}

	resp = s.do(t, http.MethodPost, "/games/"+id+"/choice", models.ChooseRequest{Choice: "Fund a Mars mission"})
	expectStatus(t, resp, http.StatusOK)
	v = decodeView(t, resp)
	if v.Phase != timeline.PhaseGameOver || len(v.History) != 4 {
		t.Fatalf("unexpected view %+v", v)
	}

	resp = s.do(t, http.MethodGet, "/games/"+id+"/export.pdf", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "timeline-1969AD-") {
		t.Errorf("content disposition = %q", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Error("response is not a PDF")
	}

	resp = s.do(t, http.MethodPost, "/games/"+id+"/archive", models.ArchiveRequest{Title: "Red Planet"})
	expectStatus(t, resp, http.StatusCreated)
	var c models.Chronicle
	json.NewDecoder(resp.Body).Decode(&c)
	if c.Title != "Red Planet" || c.EntryCount != 4 || !c.Finished {
		t.Errorf("unexpected chronicle %+v", c)
	}

	resp = s.do(t, http.MethodGet, "/chronicles", nil)
	expectStatus(t, resp, http.StatusOK)
	var list []models.Chronicle
	json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != c.ID {
		t.Errorf("unexpected list %+v", list)
	}

	resp = s.do(t, http.MethodGet, "/chronicles/"+c.ID+"/export.xlsx", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q", ct)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := setupServer(t, "")
	id := createGame(t, s)

	t.Run("unknown game", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/games/nope", nil)
		expectStatus(t, resp, http.StatusNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "abc", Era: models.EraAD})
		expectStatus(t, resp, http.StatusBadRequest)
		if v := decodeView(t, resp); v.Error == "" || v.Phase != timeline.PhaseSelectingYear {
			t.Errorf("unexpected view %+v", v)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/games/"+id+"/year", map[string]any{"year": 1969})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("wrong phase", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/games/"+id+"/choice", models.ChooseRequest{Choice: "x"})
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("nothing to export", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/games/"+id+"/export.pdf", nil)
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("narrator failure", func(t *testing.T) {
		s.failing.Store(true)
		defer s.failing.Store(false)

		resp := s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "1969", Era: models.EraAD})
		expectStatus(t, resp, http.StatusBadGateway)
		v := decodeView(t, resp)
		if v.Phase != timeline.PhaseSelectingYear || v.Loading || !v.Failed || !strings.Contains(v.Error, "Reset") {
			t.Errorf("unexpected view %+v", v)
		}

		s.failing.Store(false)
		resp = s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "1969", Era: models.EraAD})
		expectStatus(t, resp, http.StatusConflict)

		resp = s.do(t, http.MethodPost, "/games/"+id+"/reset", nil)
		expectStatus(t, resp, http.StatusOK)
		resp = s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "1969", Era: models.EraAD})
		expectStatus(t, resp, http.StatusOK)
	})

	t.Run("missing chronicle", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/chronicles/nope/export.pdf", nil)
		expectStatus(t, resp, http.StatusNotFound)
	})
}

func TestResetAndDelete(t *testing.T) {
	s := setupServer(t, "")
	id := createGame(t, s)

	resp := s.do(t, http.MethodPost, "/games/"+id+"/year", models.SubmitYearRequest{Year: "44", Era: models.EraBC})
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodPost, "/games/"+id+"/reset", nil)
	expectStatus(t, resp, http.StatusOK)
	v := decodeView(t, resp)
	if v.Phase != timeline.PhaseSelectingYear || v.SelectedYear != nil || len(v.InitialEvents) != 0 {
		t.Errorf("unexpected view after reset %+v", v)
	}

	resp = s.do(t, http.MethodDelete, "/games/"+id, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = s.do(t, http.MethodGet, "/games/"+id, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestBearerAuth(t *testing.T) {
	s := setupServer(t, "secret")

	resp := s.do(t, http.MethodPost, "/games", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/games", nil)
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusCreated {
		t.Errorf("authorized status = %d", authed.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
}
