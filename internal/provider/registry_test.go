package provider

import (
	"context"
	"testing"
)

func TestRegistry_CreateUnregisteredEngine(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("mysql")
	if err == nil {
		t.Fatalf("expected an error for an unregistered engine")
	}
	pErr, ok := err.(*Error)
	if !ok || pErr.Code != CodeProviderNotFound {
		t.Fatalf("expected PROVIDER_NOT_FOUND, got %+v", err)
	}
}

func TestRegistry_RegisterLastWriteWins(t *testing.T) {
	r := NewRegistry()
	first := &stub{engine: "postgresql"}
	second := &stub{engine: "postgresql"}

	r.Register("postgresql", func() Provider { return first })
	r.Register("postgresql", func() Provider { return second })

	got, err := r.Create("postgresql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Provider(second) {
		t.Fatalf("expected the second registration to win")
	}
}

func TestRegistry_IsSupportedAndGetSupportedTypes(t *testing.T) {
	r := NewRegistry()
	r.Register("postgresql", func() Provider { return &stub{engine: "postgresql"} })
	r.Register("mysql", func() Provider { return &stub{engine: "mysql"} })

	if !r.IsSupported("postgresql") || !r.IsSupported("mysql") {
		t.Fatalf("expected both engines to be supported")
	}
	if r.IsSupported("mssql") {
		t.Fatalf("expected mssql to be unsupported")
	}

	types := r.GetSupportedTypes()
	if len(types) != 2 || types[0] != "mysql" || types[1] != "postgresql" {
		t.Fatalf("expected a sorted [mysql postgresql], got %v", types)
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Register("postgresql", func() Provider { return &stub{engine: "postgresql"} })

	r.Clear()

	if r.IsSupported("postgresql") {
		t.Fatalf("expected Clear to remove all registrations")
	}
	if len(r.GetSupportedTypes()) != 0 {
		t.Fatalf("expected an empty catalog after Clear")
	}
}

func TestStubProvider_NotImplemented(t *testing.T) {
	r := NewRegistry()
	r.Register("mysql", StubFactory("mysql"))

	p, err := r.Create("mysql")
	if err != nil {
		t.Fatalf("unexpected error constructing the stub: %v", err)
	}

	_, err = p.CreateEphemeralUser(context.Background(), CreateRequest{})
	pErr, ok := err.(*Error)
	if !ok || pErr.Code != CodeNotImplemented {
		t.Fatalf("expected NOT_IMPLEMENTED, got %+v", err)
	}
}
