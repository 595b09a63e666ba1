package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/threadsclone/backend/internal/httputil"
)

const probeTimeout = 3 * time.Second

// UpstreamStatus is one row of /status.
type UpstreamStatus struct {
	Status  string `json:"status"`
	URL     string `json:"url"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Services  map[string]UpstreamStatus `json:"services"`
}

// Prober checks upstream /health endpoints.
type Prober struct {
	clients map[string]*httputil.ServiceClient
}

// NewProber builds one probe client per route. Probes do not retry: a
// status page should report what it sees.
func NewProber(routes []*Route) *Prober {
	clients := make(map[string]*httputil.ServiceClient, len(routes))
	for _, route := range routes {
		clients[route.Name] = httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:    route.Target.String(),
			Timeout:    probeTimeout,
			MaxRetries: -1,
		})
	}
	return &Prober{clients: clients}
}

// Probe queries every upstream concurrently.
func (p *Prober) Probe(ctx context.Context) StatusResponse {
	resp := StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]UpstreamStatus, len(p.clients)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, client := range p.clients {
		wg.Add(1)
		go func(name string, client *httputil.ServiceClient) {
			defer wg.Done()
			st := probe(ctx, client)
			mu.Lock()
			resp.Services[name] = st
			if st.Status != "ok" {
				resp.Status = "degraded"
			}
			mu.Unlock()
		}(name, client)
	}
	wg.Wait()
	return resp
}

func probe(ctx context.Context, client *httputil.ServiceClient) UpstreamStatus {
	st := UpstreamStatus{Status: "unavailable", URL: client.BaseURL()}

	start := time.Now()
	resp, err := client.Get(ctx, "/health")
	if err != nil {
		st.Error = "unreachable"
		return st
	}
	defer resp.Body.Close()
	st.Latency = time.Since(start).Round(time.Millisecond).String()

	body, _, err := httputil.ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil || resp.StatusCode != http.StatusOK {
		st.Error = http.StatusText(resp.StatusCode)
		return st
	}
	if status := gjson.GetBytes(body, "status").String(); status != "" {
		st.Status = status
	}
	return st
}

// StatusHandler serves /status.
func StatusHandler(p *Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout+time.Second)
		defer cancel()
		httputil.WriteJSON(w, http.StatusOK, p.Probe(ctx))
	}
}
