package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/events"
	"github.com/mattjoyce/hookgate/internal/metrics"
	"github.com/mattjoyce/hookgate/internal/server"
	"github.com/mattjoyce/hookgate/internal/webhook"
)

var secret = []byte("s3cr3t")

func post(url, event string, key, body []byte) *http.Response {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, event)
	req.Header.Set(webhook.DeliveryHeader, "a1b2c3")
	if key != nil {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(key, body))
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("Server", func() {
	var (
		ts      *httptest.Server
		hub     *events.Hub
		mu      sync.Mutex
		invoked []string
	)

	calls := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), invoked...)
	}

	BeforeEach(func() {
		mu.Lock()
		invoked = nil
		mu.Unlock()
		record := func(name string) webhook.Handler {
			return webhook.Named(name, webhook.HandlerFunc(func(_ context.Context, p *webhook.Payload) error {
				mu.Lock()
				defer mu.Unlock()
				invoked = append(invoked, name)
				return nil
			}))
		}
		reg := webhook.NewRegistryBuilder().
			On(webhook.IssueComment, record("h1")).
			On(webhook.IssueComment, record("h2")).
			Build()

		promReg := prometheus.NewRegistry()
		m := metrics.New(promReg)
		hub = events.NewHub(10)

		d := webhook.NewDispatcher(secret, reg,
			webhook.WithObserver(webhook.Observers{m, events.NewFeed(hub)}),
			webhook.WithMaxBodySize(1024),
		)

		cfg := config.Defaults().Server
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		srv := server.New(cfg, d, logger,
			server.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
			server.WithEventsHandler(events.NewHandler(hub, m.SSEClients)),
		)
		ts = httptest.NewServer(srv.Handler())
	})

	AfterEach(func() {
		ts.Close()
	})

	Context("webhook endpoint", func() {
		body := []byte(`{"action":"created","sender":{"login":"octocat"}}`)

		It("runs handlers in registration order for a verified delivery", func() {
			resp := post(ts.URL+"/webhook", "issue_comment", secret, body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var accepted webhook.AcceptedResponse
			Expect(json.NewDecoder(resp.Body).Decode(&accepted)).To(Succeed())
			resp.Body.Close()
			Expect(accepted).To(Equal(webhook.AcceptedResponse{DeliveryID: "a1b2c3", Event: "issue_comment", Handlers: 2}))

			Expect(calls()).To(Equal([]string{"h1", "h2"}))
		})

		It("rejects a delivery signed with the wrong secret", func() {
			resp := post(ts.URL+"/webhook", "issue_comment", []byte("wrong"), body)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(readBody(resp)).To(MatchJSON(`{"error":"unauthorized"}`))
			Expect(calls()).To(BeEmpty())
		})

		It("rejects an unsigned delivery", func() {
			resp := post(ts.URL+"/webhook", "issue_comment", nil, body)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(calls()).To(BeEmpty())
		})

		It("accepts events nobody handles", func() {
			resp := post(ts.URL+"/webhook", "push", secret, []byte(`{"ref":"refs/heads/main"}`))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(MatchJSON(`{"delivery_id":"a1b2c3","event":"push","handlers":0}`))
		})

		It("refuses oversized bodies", func() {
			resp := post(ts.URL+"/webhook", "push", secret, bytes.Repeat([]byte("x"), 2048))
			Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
			resp.Body.Close()
		})

		It("only accepts POST", func() {
			resp, err := http.Get(ts.URL + "/webhook")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
			resp.Body.Close()
		})
	})

	Context("operational endpoints", func() {
		It("reports health", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(MatchJSON(`{"status":"ok"}`))
		})

		It("exports delivery metrics", func() {
			post(ts.URL+"/webhook", "issue_comment", secret, []byte(`{"action":"created"}`)).Body.Close()
			post(ts.URL+"/webhook", "issue_comment", []byte("wrong"), []byte(`{}`)).Body.Close()

			resp, err := http.Get(ts.URL + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			out := readBody(resp)
			Expect(out).To(ContainSubstring(`hookgate_deliveries_total{event="issue_comment",outcome="accepted"} 1`))
			Expect(out).To(ContainSubstring(`hookgate_deliveries_total{event="",outcome="invalid_signature"} 1`))
		})

		It("streams delivery summaries without payloads", func() {
			post(ts.URL+"/webhook", "issue_comment", secret, []byte(`{"action":"created","comment":{"body":"secret plans"}}`)).Body.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			sc := bufio.NewScanner(resp.Body)
			var lines []string
			for sc.Scan() && sc.Text() != "" {
				lines = append(lines, sc.Text())
			}
			Expect(lines).To(ContainElement("event: " + events.TypeDeliveryAccepted))
			Expect(strings.Join(lines, "\n")).NotTo(ContainSubstring("secret plans"))
		})

		It("returns JSON for unknown paths", func() {
			resp, err := http.Get(ts.URL + "/nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(MatchJSON(`{"error":"not found"}`))
		})
	})
})

var _ = Describe("Operator tokens", func() {
	var ts *httptest.Server

	BeforeEach(func() {
		cfg := config.Defaults().Server
		cfg.Tokens = []config.TokenConfig{{Token: "grafana", Scopes: []string{"metrics"}}}

		promReg := prometheus.NewRegistry()
		metrics.New(promReg)
		srv := server.New(cfg, webhook.NewDispatcher(secret, nil), slog.New(slog.NewTextHandler(io.Discard, nil)),
			server.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
			server.WithEventsHandler(events.NewHandler(events.NewHub(1), nil)),
		)
		ts = httptest.NewServer(srv.Handler())
	})

	AfterEach(func() {
		ts.Close()
	})

	get := func(path, token string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		Expect(err).NotTo(HaveOccurred())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp.StatusCode
	}

	It("requires a token for metrics", func() {
		Expect(get("/metrics", "")).To(Equal(http.StatusUnauthorized))
		Expect(get("/metrics", "grafana")).To(Equal(http.StatusOK))
	})

	It("requires the events scope for the event stream", func() {
		Expect(get("/events", "grafana")).To(Equal(http.StatusForbidden))
	})

	It("leaves the webhook and health endpoints to their own rules", func() {
		Expect(get("/healthz", "")).To(Equal(http.StatusOK))

		resp := post(ts.URL+"/webhook", "ping", secret, []byte(`{}`))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()
	})
})

var _ = Describe("Serve", func() {
	It("shuts down when the context is cancelled", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		cfg := config.Defaults().Server
		cfg.ShutdownTimeout = time.Second
		d := webhook.NewDispatcher(secret, nil)
		srv := server.New(cfg, d, slog.New(slog.NewTextHandler(io.Discard, nil)))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		Eventually(func() error {
			resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}).Should(Succeed())

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(MatchError(context.Canceled)))
	})

	It("fails when the address is taken", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		cfg := config.Defaults().Server
		cfg.Listen = ln.Addr().String()
		srv := server.New(cfg, webhook.NewDispatcher(secret, nil), nil)

		Expect(srv.Start(context.Background())).To(MatchError(ContainSubstring("listen on")))
	})
})
