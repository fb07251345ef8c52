package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newAnalysisMock(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDephealthService_ValidURL(t *testing.T) {
	srv := newAnalysisMock(t, http.StatusOK)

	ds, err := NewDephealthServiceWithRegisterer(DephealthParams{
		ServiceID:     "rfpdesk-test-01",
		Group:         "rfpdesk",
		AnalysisURL:   srv.URL + "/webhook/rfp",
		CheckInterval: 5 * time.Second,
	}, testLogger(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_Health(t *testing.T) {
	tests := []struct {
		name string
		code int
		want bool
	}{
		{"доступен", http.StatusOK, true},
		{"ошибка 500", http.StatusInternalServerError, false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnalysisMock(t, tt.code)

			ds, err := NewDephealthServiceWithRegisterer(DephealthParams{
				ServiceID:          "rfpdesk-test-" + string(rune('a'+i)),
				Group:              "rfpdesk",
				AnalysisURL:        srv.URL,
				AnalysisHealthPath: "/health",
				CheckInterval:      time.Second,
			}, testLogger(), prometheus.NewRegistry())
			if err != nil {
				t.Fatalf("Ошибка создания DephealthService: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := ds.Start(ctx); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}
			defer ds.Stop()

			// Интервал 1s + запас на первую проверку
			time.Sleep(3 * time.Second)

			health := ds.Health()
			found := false
			for key, val := range health {
				if strings.HasPrefix(key, "analysis-service:") {
					found = true
					if val != tt.want {
						t.Errorf("analysis-service health = %v для ключа %q, ожидалось %v", val, key, tt.want)
					}
				}
			}
			if !found {
				t.Errorf("Нет записи для analysis-service в Health(), keys=%v", healthKeys(health))
			}
		})
	}
}

func TestHealthPath(t *testing.T) {
	tests := []struct {
		url, path, want string
	}{
		{"http://n8n:5678/webhook/rfp", "", "/webhook/rfp"},
		{"http://n8n:5678/webhook/rfp", "/healthz", "/healthz"},
		{"http://n8n:5678", "", "/"},
		{"http://n8n:5678/", "", "/"},
	}
	for _, tt := range tests {
		if got := healthPath(tt.url, tt.path); got != tt.want {
			t.Errorf("healthPath(%q, %q): ожидалось %q, получено %q", tt.url, tt.path, tt.want, got)
		}
	}
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
