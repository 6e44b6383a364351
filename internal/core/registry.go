package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Gateway describes a registered payment gateway.
type Gateway struct {
	Key           string `json:"key"`
	AdminLabel    string `json:"adminLabel"`
	CheckoutLabel string `json:"checkoutLabel"`
	LiveEndpoint  string `json:"liveEndpoint,omitempty"`
	TestEndpoint  string `json:"testEndpoint,omitempty"`
}

// Endpoint returns the API endpoint for the given run mode.
func (g Gateway) Endpoint(testMode bool) string {
	if testMode {
		return g.TestEndpoint
	}
	return g.LiveEndpoint
}

// PayPal NVP endpoints.
const (
	PayPalLiveEndpoint = "https://api-3t.paypal.com/nvp"
	PayPalTestEndpoint = "https://api-3t.sandbox.paypal.com/nvp"
)

// DefaultGateways are registered by NewDefaultGatewayRegistry.
var DefaultGateways = []Gateway{
	{
		Key:           "paypal",
		AdminLabel:    "PayPal Standard",
		CheckoutLabel: "PayPal",
		LiveEndpoint:  PayPalLiveEndpoint,
		TestEndpoint:  PayPalTestEndpoint,
	},
	{Key: "manual", AdminLabel: "Test Payment", CheckoutLabel: "Test Payment"},
	{Key: "stripe", AdminLabel: "Stripe", CheckoutLabel: "Credit Card"},
}

// GatewayRegistry holds the gateways known to an import run.
// It is safe for concurrent use.
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewGatewayRegistry returns an empty registry.
func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{gateways: make(map[string]Gateway)}
}

// NewDefaultGatewayRegistry returns a registry holding DefaultGateways.
func NewDefaultGatewayRegistry() *GatewayRegistry {
	r := NewGatewayRegistry()
	for _, g := range DefaultGateways {
		r.Register(g)
	}
	return r
}

// Register adds a gateway to the registry. Keys are stored lower-cased.
// Panics if a gateway with the same key is already registered.
func (r *GatewayRegistry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g.Key = strings.ToLower(strings.TrimSpace(g.Key))
	if g.Key == "" {
		panic("gateway key is required")
	}
	if _, exists := r.gateways[g.Key]; exists {
		panic(fmt.Sprintf("gateway already registered: %s", g.Key))
	}
	r.gateways[g.Key] = g
}

// Get returns a gateway by key (case-insensitive).
// Returns false if not found.
func (r *GatewayRegistry) Get(key string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(key))]
	return g, ok
}

// All returns all registered gateways sorted by key.
func (r *GatewayRegistry) All() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Resolve maps free gateway text to a registered key. Keys are matched
// first, then checkout labels, then admin labels, all case-insensitively;
// the first match in key order wins. Unmatched text is returned sanitized
// and reported with ok=false.
func (r *GatewayRegistry) Resolve(text string) (key string, ok bool) {
	text = SanitizeText(text)
	if text == "" {
		return "", false
	}
	if g, found := r.Get(text); found {
		return g.Key, true
	}

	all := r.All()
	for _, g := range all {
		if g.CheckoutLabel != "" && strings.EqualFold(g.CheckoutLabel, text) {
			return g.Key, true
		}
	}
	for _, g := range all {
		if g.AdminLabel != "" && strings.EqualFold(g.AdminLabel, text) {
			return g.Key, true
		}
	}
	return text, false
}

// Len returns the number of registered gateways.
func (r *GatewayRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

// Clear removes all registered gateways.
// Primarily useful for testing.
func (r *GatewayRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways = make(map[string]Gateway)
}
