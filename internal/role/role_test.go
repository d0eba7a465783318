package role

import (
	"errors"
	"testing"
)

func TestDefineMerge(t *testing.T) {
	r := NewRegistry()

	if err := r.Define("build", []string{"host1", "host2"}, Attributes{"primary": true}); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	if err := r.Define("build", []string{"host2", "host3"}, Attributes{"primary": false, "port": 2222}); err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	ro, ok := r.Get("build")
	if !ok {
		t.Fatal("role build not found")
	}

	// Host order is first-seen, append-only.
	want := []string{"host1", "host2", "host3"}
	if len(ro.Hosts) != len(want) {
		t.Fatalf("expected %d hosts, got %d", len(want), len(ro.Hosts))
	}
	for i, h := range ro.Hosts {
		if h.Name != want[i] {
			t.Errorf("host[%d] = %s, want %s", i, h.Name, want[i])
		}
	}

	// host2 appeared in both definitions: later values win per key.
	if ro.Hosts[1].Attrs["primary"] != false {
		t.Errorf("host2 primary = %v, want false", ro.Hosts[1].Attrs["primary"])
	}
	if ro.Hosts[1].Attrs["port"] != 2222 {
		t.Errorf("host2 port = %v, want 2222", ro.Hosts[1].Attrs["port"])
	}
	// host1 only saw the first definition.
	if ro.Hosts[0].Attrs["primary"] != true {
		t.Errorf("host1 primary = %v, want true", ro.Hosts[0].Attrs["primary"])
	}
}

func TestDefineAllReserved(t *testing.T) {
	r := NewRegistry()
	err := r.Define("all", []string{"host1"}, nil)
	if err == nil {
		t.Fatal("expected error defining role all")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestResolve(t *testing.T) {
	r := NewRegistry()
	r.Define("build", []string{"h1"}, nil)
	r.Define("app", []string{"h2"}, nil)
	r.Define("db", []string{"h3"}, nil)

	tests := []struct {
		name  string
		specs []string
		want  []string
	}{
		{"single", []string{"app"}, []string{"app"}},
		{"list", []string{"db", "build"}, []string{"db", "build"}},
		{"all expands in definition order", []string{"all"}, []string{"build", "app", "db"}},
		{"duplicates collapse", []string{"app", "app", "all"}, []string{"app", "build", "db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.specs...)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Resolve = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	if _, err := r.Resolve("missing"); err == nil {
		t.Error("expected error resolving undefined role")
	}
}

func TestFilter(t *testing.T) {
	hosts := []Host{
		{Name: "h1", Attrs: Attributes{"primary": true, "region": "eu"}},
		{Name: "h2", Attrs: Attributes{"primary": false, "region": "eu"}},
		{Name: "h3", Attrs: Attributes{"region": "us"}},
	}

	got := Filter(hosts, Attributes{"primary": true})
	if len(got) != 1 || got[0].Name != "h1" {
		t.Errorf("Filter(primary=true) = %v, want [h1]", got)
	}

	// Hosts missing the filtered key are excluded.
	got = Filter(hosts, Attributes{"primary": false})
	if len(got) != 1 || got[0].Name != "h2" {
		t.Errorf("Filter(primary=false) = %v, want [h2]", got)
	}

	// Empty filter matches everything.
	got = Filter(hosts, nil)
	if len(got) != 3 {
		t.Errorf("Filter(nil) matched %d hosts, want 3", len(got))
	}

	// String filter values match typed attributes loosely.
	got = Filter(hosts, Attributes{"primary": "true"})
	if len(got) != 1 || got[0].Name != "h1" {
		t.Errorf(`Filter(primary="true") = %v, want [h1]`, got)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		raw        string
		wantRoles  []string
		wantFilter Attributes
		wantErr    bool
	}{
		{raw: "web", wantRoles: []string{"web"}},
		{raw: "web,app", wantRoles: []string{"web", "app"}},
		{raw: "web[primary=true]", wantRoles: []string{"web"}, wantFilter: Attributes{"primary": true}},
		{raw: "all[region=eu,port=2222]", wantRoles: []string{"all"}, wantFilter: Attributes{"region": "eu", "port": 2222}},
		{raw: "", wantErr: true},
		{raw: "web[primary", wantErr: true},
		{raw: "web[primary]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := ParseSpec(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec failed: %v", err)
			}
			if len(spec.Roles) != len(tt.wantRoles) {
				t.Fatalf("Roles = %v, want %v", spec.Roles, tt.wantRoles)
			}
			for i := range spec.Roles {
				if spec.Roles[i] != tt.wantRoles[i] {
					t.Errorf("Roles = %v, want %v", spec.Roles, tt.wantRoles)
				}
			}
			for k, v := range tt.wantFilter {
				if spec.Filter[k] != v {
					t.Errorf("Filter[%s] = %v, want %v", k, spec.Filter[k], v)
				}
			}
		})
	}
}

func TestWorkspace(t *testing.T) {
	r := NewRegistry()
	r.Define("app", []string{"h1"}, Attributes{"workspace": "/var/www/app"})

	ro, _ := r.Get("app")
	ws, ok := ro.Workspace()
	if !ok || ws != "/var/www/app" {
		t.Errorf("Workspace = %q, %v; want /var/www/app, true", ws, ok)
	}

	r.Define("db", []string{"h2"}, nil)
	ro, _ = r.Get("db")
	if _, ok := ro.Workspace(); ok {
		t.Error("expected no workspace for role db")
	}
}
