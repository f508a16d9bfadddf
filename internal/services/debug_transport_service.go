package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"autodash/internal/logger"
)

// maxCapturedExchanges bounds the trace kept in memory.
const maxCapturedExchanges = 50

// maxCapturedBody caps the bytes of a body kept per exchange.
const maxCapturedBody = 64 << 10

// Exchange is one recorded backend request and its response.
type Exchange struct {
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	Request    map[string][]string `json:"request_headers,omitempty"`
	Body       any                 `json:"request_body,omitempty"`
	StatusCode int                 `json:"status_code,omitempty"`
	Response   map[string][]string `json:"response_headers,omitempty"`
	Reply      any                 `json:"response_body,omitempty"`
	Error      string              `json:"error,omitempty"`
	Started    time.Time           `json:"started"`
	DurationMS int64               `json:"duration_ms"`
}

// DebugTransportService records backend HTTP exchanges so a session can show
// what was sent and received. Credentials are masked; event streams are not
// buffered.
type DebugTransportService struct {
	initialized bool
	mutex       sync.RWMutex
	exchanges   []Exchange
	now         func() time.Time
}

// NewDebugTransportService creates a new DebugTransportService instance.
func NewDebugTransportService() *DebugTransportService {
	return &DebugTransportService{now: time.Now}
}

// Name returns the service name "debug-transport" for registration.
func (d *DebugTransportService) Name() string {
	return "debug-transport"
}

// Initialize clears any recorded exchanges.
func (d *DebugTransportService) Initialize() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.initialized = true
	d.exchanges = nil
	return nil
}

// CreateTransport wraps base, or http.DefaultTransport when base is nil.
func (d *DebugTransportService) CreateTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !d.initialized {
		logger.Error("Debug transport service not initialized")
		return base
	}
	return &debugTransport{base: base, service: d}
}

// Exchanges returns the recorded exchanges, oldest first.
func (d *DebugTransportService) Exchanges() []Exchange {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return append([]Exchange(nil), d.exchanges...)
}

// Last returns the most recent exchange.
func (d *DebugTransportService) Last() (Exchange, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if len(d.exchanges) == 0 {
		return Exchange{}, false
	}
	return d.exchanges[len(d.exchanges)-1], true
}

// GetCapturedData returns the most recent exchange as indented JSON, or "".
func (d *DebugTransportService) GetCapturedData() string {
	ex, ok := d.Last()
	if !ok {
		return ""
	}
	data, err := sonic.ConfigStd.MarshalIndent(ex, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// ClearCapturedData drops every recorded exchange.
func (d *DebugTransportService) ClearCapturedData() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.exchanges = nil
}

func (d *DebugTransportService) record(ex Exchange) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.exchanges = append(d.exchanges, ex)
	if over := len(d.exchanges) - maxCapturedExchanges; over > 0 {
		d.exchanges = append([]Exchange(nil), d.exchanges[over:]...)
	}
}

type debugTransport struct {
	base    http.RoundTripper
	service *DebugTransportService
}

// RoundTrip implements http.RoundTripper.
func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := dt.service.now()
	ex := Exchange{
		Method:  req.Method,
		URL:     req.URL.String(),
		Request: sanitizeHeaders(req.Header),
		Started: start,
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		ex.Body = captureBody(req.Header.Get("Content-Type"), body)
	}

	resp, err := dt.base.RoundTrip(req)
	ex.DurationMS = dt.service.now().Sub(start).Milliseconds()
	if err != nil {
		ex.Error = err.Error()
		dt.service.record(ex)
		return resp, err
	}

	ex.StatusCode = resp.StatusCode
	ex.Response = sanitizeHeaders(resp.Header)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		ex.Reply = "<event stream>"
	} else if resp.Body != nil {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if readErr != nil {
			logger.Error("Failed to capture response", "error", readErr)
		}
		ex.Reply = captureBody(resp.Header.Get("Content-Type"), body)
	}

	dt.service.record(ex)
	logger.Debug("Backend exchange captured", "method", ex.Method, "url", ex.URL, "status_code", ex.StatusCode, "duration_ms", ex.DurationMS)
	return resp, nil
}

// captureBody decodes JSON bodies and summarises anything else.
func captureBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if strings.HasPrefix(contentType, "application/json") {
		var v any
		if err := sonic.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	if strings.HasPrefix(contentType, "text/") || strings.HasPrefix(contentType, "application/json") {
		if len(body) > maxCapturedBody {
			return string(body[:maxCapturedBody]) + "…"
		}
		return string(body)
	}
	return fmt.Sprintf("<%d bytes %s>", len(body), contentType)
}

// sanitizeHeaders masks credentials.
func sanitizeHeaders(headers http.Header) map[string][]string {
	sanitized := make(map[string][]string, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "authorization") || strings.Contains(lower, "cookie") || strings.Contains(lower, "token") {
			masked := "***[MASKED]***"
			if len(values) > 0 && strings.HasPrefix(values[0], "Bearer ") {
				masked = "Bearer " + masked
			}
			sanitized[name] = []string{masked}
			continue
		}
		sanitized[name] = append([]string(nil), values...)
	}
	return sanitized
}

func init() {
	if err := GlobalRegistry.RegisterService(NewDebugTransportService()); err != nil {
		panic(err)
	}
}
