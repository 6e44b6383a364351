package core

import "testing"

func TestGatewayRegistry_Defaults(t *testing.T) {
	r := NewDefaultGatewayRegistry()

	if got := r.Len(); got != len(DefaultGateways) {
		t.Fatalf("Len() = %d, want %d", got, len(DefaultGateways))
	}

	paypal, ok := r.Get("PayPal")
	if !ok {
		t.Fatal("Get(PayPal) not found")
	}
	if got := paypal.Endpoint(true); got != PayPalTestEndpoint {
		t.Errorf("Endpoint(test) = %q, want %q", got, PayPalTestEndpoint)
	}
	if got := paypal.Endpoint(false); got != PayPalLiveEndpoint {
		t.Errorf("Endpoint(live) = %q, want %q", got, PayPalLiveEndpoint)
	}

	all := r.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Errorf("All() not sorted: %q before %q", all[i-1].Key, all[i].Key)
		}
	}
}

func TestGatewayRegistry_Resolve(t *testing.T) {
	r := NewDefaultGatewayRegistry()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "exact key", input: "paypal", want: "paypal", wantOK: true},
		{name: "key any case", input: "STRIPE", want: "stripe", wantOK: true},
		{name: "checkout label", input: "Credit Card", want: "stripe", wantOK: true},
		{name: "checkout label any case", input: "credit card", want: "stripe", wantOK: true},
		{name: "admin label", input: "PayPal Standard", want: "paypal", wantOK: true},
		{name: "shared label resolves to first key", input: "Test Payment", want: "manual", wantOK: true},
		{name: "unknown stored as text", input: "  Bitcoin  ", want: "Bitcoin", wantOK: false},
		{name: "empty", input: "", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGatewayRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := NewGatewayRegistry()
	r.Register(Gateway{Key: "manual"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate key")
		}
	}()
	r.Register(Gateway{Key: "MANUAL"})
}

func TestGatewayRegistry_Clear(t *testing.T) {
	r := NewDefaultGatewayRegistry()
	r.Clear()

	if got := r.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
	if _, ok := r.Resolve("paypal"); ok {
		t.Error("Resolve(paypal) after Clear should not match")
	}
}
