package storage_test

import (
	"errors"
	"testing"

	"besedarium.dev/mpst/certificate"
	"besedarium.dev/mpst/internal/testutil/testlog"
	"besedarium.dev/mpst/protocols"
	"besedarium.dev/mpst/session"
	"besedarium.dev/mpst/storage"
	"besedarium.dev/mpst/storage/testkit"
	"besedarium.dev/mpst/verify"
)

func TestMemCAS_Conformance(t *testing.T) {
	newCAS := func(t *testing.T) storage.CAS { return storage.NewMemCAS() }
	testkit.RunCASConformance(t, newCAS)
	testkit.RunListConformance(t, newCAS)
}

func TestMultiCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemCAS(), storage.NewMemCAS()}}
	})
}

func TestReplicatingCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.ReplicatingCAS{Backends: []storage.NamedCAS{
			{Name: "a", CAS: storage.NewMemCAS()},
			{Name: "b", CAS: storage.NewMemCAS()},
		}}
	})
}

func TestMultiCAS_FallsBackInOrder(t *testing.T) {
	first, second := storage.NewMemCAS(), storage.NewMemCAS()
	id, err := second.Put([]byte("only in second"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := storage.MultiCAS{Adapters: []storage.CAS{first, second}}
	if _, err := m.Get(id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	ids, err := m.List()
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("List = %v, %v", ids, err)
	}
}

func TestRepository_Publish(t *testing.T) {
	testlog.Start(t)
	g, err := protocols.Workflow()
	if err != nil {
		t.Fatalf("Workflow: %v", err)
	}
	rep, err := verify.VerifyStrict(g, verify.Options{})
	if err != nil {
		t.Fatalf("VerifyStrict: %v", err)
	}
	cert, err := certificate.Render(rep, certificate.Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	repo := storage.NewRepository(storage.NewMemCAS(), testlog.Logger(t))
	m, err := repo.Publish(rep, cert)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(m.Locals) != 4 || len(m.CIDs()) != 6 {
		t.Fatalf("manifest = %+v", m)
	}
	if _, ok := m.Names()["local/worker"]; !ok {
		t.Fatalf("Names lacks local/worker: %v", m.Names())
	}

	back, err := repo.GetProtocol(m.Protocol)
	if err != nil {
		t.Fatalf("GetProtocol: %v", err)
	}
	if back != rep.Protocol {
		t.Fatalf("GetProtocol = %s, want %s", back, rep.Protocol)
	}
	l, err := repo.GetLocal(m.Locals[session.Server])
	if err != nil {
		t.Fatalf("GetLocal: %v", err)
	}
	if l != rep.Locals[session.Server] {
		t.Fatalf("GetLocal = %s", l)
	}
	if _, err := repo.GetCertificate(m.Certificate); err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if _, err := repo.GetProtocol(m.Certificate); !errors.Is(err, storage.ErrWrongKind) {
		t.Fatalf("GetProtocol(certificate) = %v", err)
	}
}

func TestRepository_PublishRejectsForeignCertificate(t *testing.T) {
	hs, _ := protocols.Handshake()
	hsRep, err := verify.Verify(hs, verify.Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	cert, err := certificate.Render(hsRep, certificate.Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	ps, _ := protocols.PubSub()
	psRep, err := verify.Verify(ps, verify.Options{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	repo := storage.NewRepository(storage.NewMemCAS(), testlog.Logger(t))
	if _, err := repo.Publish(psRep, cert); !errors.Is(err, certificate.ErrMismatch) {
		t.Fatalf("Publish = %v", err)
	}
}
