// Package testutil provides testing utilities for shopsync.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CostConfig describes the extensions.cost payload attached to responses.
type CostConfig struct {
	RequestedQueryCost float64
	MaximumAvailable   float64
	CurrentlyAvailable float64
	RestoreRate        float64
}

// failure is one queued failure response.
type failure struct {
	statusCode int
	body       string
}

// MockShop is a configurable mock GraphQL shop server. It serves a fixed
// catalog of products through a cursor-paginated connection and can inject
// transient failures, GraphQL errors, and cost-extension data.
type MockShop struct {
	server *httptest.Server

	mu           sync.Mutex
	catalogSize  int
	requestCount int
	failures     []failure
	cost         *CostConfig
	errorOnce    *errorInjection
}

// errorInjection is a one-shot GraphQL errors payload.
type errorInjection struct {
	messages []string
	withData bool
}

// NewMockShop creates a mock shop server with the given catalog size.
func NewMockShop(catalogSize int) *MockShop {
	mock := &MockShop{catalogSize: catalogSize}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock GraphQL endpoint.
func (m *MockShop) URL() string {
	return m.server.URL + "/graphql"
}

// Close shuts down the mock server.
func (m *MockShop) Close() {
	m.server.Close()
}

// RequestCount returns the number of requests received.
func (m *MockShop) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// FailNextWith queues `times` responses with the given status before the
// server resumes normal behavior.
func (m *MockShop) FailNextWith(statusCode, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < times; i++ {
		m.failures = append(m.failures, failure{
			statusCode: statusCode,
			body:       fmt.Sprintf(`{"errors":[{"message":"injected failure (status %d)"}]}`, statusCode),
		})
	}
}

// SetCost attaches cost-extension data to every subsequent response.
func (m *MockShop) SetCost(cost CostConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost = &cost
}

// ClearCost removes cost-extension data from subsequent responses.
func (m *MockShop) ClearCost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cost = nil
}

// InjectErrors makes the next response carry the given GraphQL error
// messages. With withData false the data container is null.
func (m *MockShop) InjectErrors(messages []string, withData bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorOnce = &errorInjection{messages: messages, withData: withData}
}

func (m *MockShop) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++

	if len(m.failures) > 0 {
		f := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.statusCode)
		fmt.Fprint(w, f.body)
		return
	}

	injected := m.errorOnce
	m.errorOnce = nil
	cost := m.cost
	catalogSize := m.catalogSize
	m.mu.Unlock()

	var payload struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"errors":[{"message":"invalid request body"}]}`, http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{}

	if injected != nil {
		errs := make([]interface{}, 0, len(injected.messages))
		for _, msg := range injected.messages {
			errs = append(errs, map[string]interface{}{"message": msg})
		}
		response["errors"] = errs
		if injected.withData {
			response["data"] = m.connectionData(payload.Variables, catalogSize)
		} else {
			response["data"] = nil
		}
	} else {
		response["data"] = m.connectionData(payload.Variables, catalogSize)
	}

	if cost != nil {
		response["extensions"] = map[string]interface{}{
			"cost": map[string]interface{}{
				"requestedQueryCost": cost.RequestedQueryCost,
				"throttleStatus": map[string]interface{}{
					"maximumAvailable":   cost.MaximumAvailable,
					"currentlyAvailable": cost.CurrentlyAvailable,
					"restoreRate":        cost.RestoreRate,
				},
			},
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// connectionData builds one page of the products connection.
func (m *MockShop) connectionData(variables map[string]interface{}, catalogSize int) map[string]interface{} {
	first := 10
	if v, ok := variables["first"].(float64); ok {
		first = int(v)
	}

	start := 0
	if after, ok := variables["after"].(string); ok && after != "" {
		if idx, err := cursorIndex(after); err == nil {
			start = idx + 1
		}
	}

	end := start + first
	if end > catalogSize {
		end = catalogSize
	}

	edges := make([]interface{}, 0, first)
	for i := start; i < end; i++ {
		edges = append(edges, map[string]interface{}{
			"cursor": cursorFor(i),
			"node": map[string]interface{}{
				"id":        fmt.Sprintf("gid://shopify/Product/%d", 1001+i),
				"title":     fmt.Sprintf("Product %d - Widget", i+1),
				"updatedAt": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	return map[string]interface{}{
		"products": map[string]interface{}{
			"edges": edges,
			"pageInfo": map[string]interface{}{
				"hasNextPage": end < catalogSize,
			},
		},
	}
}

func cursorFor(index int) string {
	return fmt.Sprintf("cursor-%d", index)
}

func cursorIndex(cursor string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(cursor, "cursor-"))
}
