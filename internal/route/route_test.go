package route

import (
	"encoding/json"
	"testing"
)

func TestRouteUnmarshalDefaults(t *testing.T) {
	var r Route
	if err := json.Unmarshal([]byte(`{"ip":"203.0.113.5"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Port != 443 {
		t.Fatalf("Port = %d, want 443", r.Port)
	}
	if r.Priority != 999 {
		t.Fatalf("Priority = %d, want 999", r.Priority)
	}
	if r.Scheme != SchemeHTTPS {
		t.Fatalf("Scheme = %q, want https", r.Scheme)
	}
}

func TestRouteUnmarshalExplicitZeroPriority(t *testing.T) {
	var r Route
	if err := json.Unmarshal([]byte(`{"ip":"203.0.113.5","priority":0}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Priority != 0 {
		t.Fatalf("Priority = %d, want explicit 0 preserved", r.Priority)
	}
}

func TestProtocol(t *testing.T) {
	tests := []struct {
		name string
		r    Route
		want string
	}{
		{name: "tunnel forces http", r: Route{Scheme: SchemeHTTPS, Source: SourceTunnel}, want: "http"},
		{name: "agent keeps scheme", r: Route{Scheme: SchemeHTTPS, Source: SourceAgent}, want: "https"},
		{name: "explicit http", r: Route{Scheme: SchemeHTTP}, want: "http"},
		{name: "empty scheme defaults https", r: Route{}, want: "https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Protocol(); got != tt.want {
				t.Fatalf("Protocol() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHostPortBracketsIPv6(t *testing.T) {
	r := Route{IP: "2001:db8::1", Port: 8080}
	if got := r.HostPort(); got != "[2001:db8::1]:8080" {
		t.Fatalf("HostPort() = %q", got)
	}
	r = Route{IP: "203.0.113.5", Port: 443}
	if got := r.HostPort(); got != "203.0.113.5:443" {
		t.Fatalf("HostPort() = %q", got)
	}
}

func TestV1Upgrade(t *testing.T) {
	res := V1Resolution{HostIP: "203.0.113.9", TargetPort: 8080, UserID: "u1"}.Upgrade()
	if len(res.Routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(res.Routes))
	}
	r := res.Routes[0]
	if r.IP != "203.0.113.9" || r.Port != 8080 || r.Priority != 1 {
		t.Fatalf("unexpected route %+v", r)
	}
	if res.UserID != "u1" {
		t.Fatalf("UserID = %q", res.UserID)
	}

	// Missing port defaults to 443.
	res = V1Resolution{HostIP: "203.0.113.9"}.Upgrade()
	if res.Routes[0].Port != 443 {
		t.Fatalf("default port = %d, want 443", res.Routes[0].Port)
	}
}
