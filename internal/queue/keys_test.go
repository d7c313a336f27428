package queue

import "testing"

func TestSanitizeQueueName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"orders", "orders"},
		{"  orders  ", "orders"},
		{"order\tprocessing\n", "orderprocessing"},
		{"ns:orders", "ns-orders"},
		{"a:b:c", "a-b-c"},
	}
	for _, c := range cases {
		if got := SanitizeQueueName(c.in); got != c.want {
			t.Errorf("SanitizeQueueName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKeySchema(t *testing.T) {
	k := NewKeys("orders")
	if k.Ready != "q:orders:in" {
		t.Errorf("Ready = %q", k.Ready)
	}
	if k.Channel != k.Ready {
		t.Errorf("Channel must equal Ready, got %q vs %q", k.Channel, k.Ready)
	}
	if k.InFlight != "q:orders:work" {
		t.Errorf("InFlight = %q", k.InFlight)
	}
	if k.Delayed != "q:orders:wait" {
		t.Errorf("Delayed = %q", k.Delayed)
	}
	if k.Dead != "q:orders:dead" {
		t.Errorf("Dead = %q", k.Dead)
	}
	if got := k.Payload("abc123"); got != "q:orders:abc123" {
		t.Errorf("Payload = %q", got)
	}
	if got := k.Attempts("abc123"); got != "q:orders:abc123:attempts" {
		t.Errorf("Attempts = %q", got)
	}
	if got := k.MaintenanceLockName(); got != "orders-maintenance" {
		t.Errorf("MaintenanceLockName = %q", got)
	}
}

func TestKeysWithColonInQueueName(t *testing.T) {
	k := NewKeys("tenant:orders")
	if k.Queue != "tenant-orders" {
		t.Errorf("Queue = %q, want sanitized", k.Queue)
	}
	if k.Ready != "q:tenant-orders:in" {
		t.Errorf("Ready = %q", k.Ready)
	}
}
