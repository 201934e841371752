package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/tmarsden/edgeflow-core/internal/remote"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	db := setupTestDB(t)
	reg := NewRegistry(NewSQLiteHostRepository(db), NewSQLiteCommandRepository(db))
	return reg
}

func TestRegistry_HostLifecycle(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	host := testHost("")
	if err := reg.CreateHost(ctx, host); err != nil {
		t.Fatalf("CreateHost: %v", err)
	}
	if host.ID == "" {
		t.Fatal("CreateHost did not generate an ID")
	}

	t.Run("cached get keeps runtime password", func(t *testing.T) {
		got, err := reg.GetHost(ctx, host.ID)
		if err != nil {
			t.Fatalf("GetHost: %v", err)
		}
		if got.Password != "runtime-only" {
			t.Errorf("Password = %q, want runtime-only", got.Password)
		}
	})

	t.Run("listing scrubs passwords", func(t *testing.T) {
		hosts, err := reg.ListHosts(ctx)
		if err != nil {
			t.Fatalf("ListHosts: %v", err)
		}
		if len(hosts) != 1 {
			t.Fatalf("got %d hosts, want 1", len(hosts))
		}
		if hosts[0].Password != "" {
			t.Errorf("listed Password = %q, want empty", hosts[0].Password)
		}
	})

	t.Run("update without password keeps cached one", func(t *testing.T) {
		upd := host.DeepCopy()
		upd.Password = ""
		upd.Addr = "10.0.0.9"
		if err := reg.UpdateHost(ctx, upd); err != nil {
			t.Fatalf("UpdateHost: %v", err)
		}
		got, err := reg.GetHost(ctx, host.ID)
		if err != nil {
			t.Fatalf("GetHost: %v", err)
		}
		if got.Addr != "10.0.0.9" {
			t.Error("update not applied")
		}
		if got.Password != "runtime-only" {
			t.Errorf("Password = %q, want preserved runtime-only", got.Password)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := reg.DeleteHost(ctx, host.ID); err != nil {
			t.Fatalf("DeleteHost: %v", err)
		}
		if _, err := reg.GetHost(ctx, host.ID); !errors.Is(err, ErrHostNotFound) {
			t.Errorf("error = %v, want ErrHostNotFound", err)
		}
	})
}

func TestRegistry_HostValidation(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		host *Host
	}{
		{"missing addr", &Host{Username: "u"}},
		{"missing username", &Host{Addr: "10.0.0.1"}},
		{"key auth without key id", &Host{Addr: "10.0.0.1", Username: "u", AuthType: remote.AuthKey}},
		{"bad auth type", &Host{Addr: "10.0.0.1", Username: "u", AuthType: "telnet"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := reg.CreateHost(ctx, tt.host); !errors.Is(err, ErrInvalidHost) {
				t.Errorf("error = %v, want ErrInvalidHost", err)
			}
		})
	}
}

func TestRegistry_CommandLifecycle(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	host := testHost("")
	if err := reg.CreateHost(ctx, host); err != nil {
		t.Fatalf("CreateHost: %v", err)
	}

	cmd := testCommand("", host.ID, "restart-app")
	if err := reg.CreateCommand(ctx, cmd); err != nil {
		t.Fatalf("CreateCommand: %v", err)
	}
	if cmd.ID == "" {
		t.Fatal("CreateCommand did not generate an ID")
	}

	t.Run("unknown host rejected", func(t *testing.T) {
		bad := testCommand("", "nope", "x")
		if err := reg.CreateCommand(ctx, bad); !errors.Is(err, ErrHostNotFound) {
			t.Errorf("error = %v, want ErrHostNotFound", err)
		}
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := reg.GetCommandByName(ctx, host.ID, "restart-app")
		if err != nil {
			t.Fatalf("GetCommandByName: %v", err)
		}
		if got.ID != cmd.ID {
			t.Errorf("ID = %q, want %q", got.ID, cmd.ID)
		}
	})

	t.Run("copies are isolated", func(t *testing.T) {
		a, err := reg.GetCommand(ctx, cmd.ID)
		if err != nil {
			t.Fatalf("GetCommand: %v", err)
		}
		a.Command = "mutated"
		b, err := reg.GetCommand(ctx, cmd.ID)
		if err != nil {
			t.Fatalf("GetCommand: %v", err)
		}
		if b.Command == "mutated" {
			t.Error("cache copy was mutated through caller")
		}
	})

	t.Run("delete host clears its commands from cache", func(t *testing.T) {
		if err := reg.DeleteHost(ctx, host.ID); err != nil {
			t.Fatalf("DeleteHost: %v", err)
		}
		if _, err := reg.GetCommand(ctx, cmd.ID); !errors.Is(err, ErrCommandNotFound) {
			t.Errorf("error = %v, want ErrCommandNotFound", err)
		}
	})
}

func TestRegistry_RefreshCache(t *testing.T) {
	db := setupTestDB(t)
	hosts := NewSQLiteHostRepository(db)
	cmds := NewSQLiteCommandRepository(db)
	ctx := context.Background()

	if err := hosts.Create(ctx, testHost("host-01")); err != nil {
		t.Fatal(err)
	}
	if err := cmds.Create(ctx, testCommand("cmd-01", "host-01", "x")); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(hosts, cmds)
	if reg.HostCount() != 0 {
		t.Fatal("cache should start empty")
	}

	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	if reg.HostCount() != 1 || reg.CommandCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", reg.HostCount(), reg.CommandCount())
	}
}
