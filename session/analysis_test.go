package session

import (
	"reflect"
	"testing"
)

func sampleTree(t *testing.T) GlobalType {
	t.Helper()
	return NewRec("R", NewChoice("C",
		NewInteract("I1", alice, "M1", NewEnd("E1")),
		mustPar(t, "P",
			NewInteract("I2", bob, "M2", NewEnd("E2")),
			NewInteract("I3", carol, "M3", NewEnd("E3")),
		),
	))
}

func TestRolesOf(t *testing.T) {
	if got := RolesOf(NewEnd("E")); got.Len() != 0 {
		t.Fatalf("RolesOf(End) = %v, want empty", got.Sorted())
	}
	got := RolesOf(sampleTree(t)).Sorted()
	want := []Role{alice, bob, carol}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RolesOf = %v, want %v", got, want)
	}
}

func TestRolesOfAndLabelsOfArePure(t *testing.T) {
	g := sampleTree(t)
	r1, r2 := RolesOf(g), RolesOf(g)
	if !r1.Equal(r2) {
		t.Fatalf("RolesOf not stable: %v vs %v", r1.Sorted(), r2.Sorted())
	}
	l1, l2 := LabelsOf(g), LabelsOf(g)
	if !reflect.DeepEqual(l1, l2) {
		t.Fatalf("LabelsOf not stable: %v vs %v", l1, l2)
	}
}

func TestLabelsOf_PreOrder(t *testing.T) {
	got := LabelsOf(sampleTree(t))
	want := []Label{"R", "C", "I1", "E1", "P", "I2", "E2", "I3", "E3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LabelsOf = %v, want %v", got, want)
	}
}

func TestLabelOccurrences_Paths(t *testing.T) {
	occ := LabelOccurrences(sampleTree(t))
	want := map[Label]string{
		"R":  "/",
		"C":  "/body",
		"I1": "/body/left",
		"E1": "/body/left/cont",
		"P":  "/body/right",
		"I3": "/body/right/right",
		"E3": "/body/right/right/cont",
	}
	for _, o := range occ {
		if p, ok := want[o.Label]; ok && o.Path.String() != p {
			t.Fatalf("%s at %s, want %s", o.Label, o.Path, p)
		}
	}
}

func TestIsDisjoint_Symmetric(t *testing.T) {
	sets := []RoleSet{
		NewRoleSet(),
		NewRoleSet(alice),
		NewRoleSet(alice, bob),
		NewRoleSet(bob, carol),
		NewRoleSet(carol),
	}
	for _, a := range sets {
		for _, b := range sets {
			if IsDisjoint(a, b) != IsDisjoint(b, a) {
				t.Fatalf("IsDisjoint not symmetric for %v, %v", a.Sorted(), b.Sorted())
			}
		}
	}
	if !IsDisjoint(NewRoleSet(alice), NewRoleSet(bob)) {
		t.Fatalf("expected {Alice} and {Bob} to be disjoint")
	}
	if IsDisjoint(NewRoleSet(alice, bob), NewRoleSet(bob, carol)) {
		t.Fatalf("expected overlap on Bob")
	}
}

func TestHasUniqueLabels_ScenarioD(t *testing.T) {
	g := NewChoice("L1",
		NewInteract("L2", alice, "M", NewEnd("L3")),
		NewInteract("L1", bob, "M", NewEnd("L4")),
	)
	ok, dup := HasUniqueLabels(LabelsOf(g))
	if ok || dup != "L1" {
		t.Fatalf("HasUniqueLabels = %v, %q; want false, L1", ok, dup)
	}

	err := CheckUniqueLabels(g)
	if RuleID(err) != RuleDuplicateLabel {
		t.Fatalf("RuleID = %q, want %q", RuleID(err), RuleDuplicateLabel)
	}
	e, _ := AsError(err)
	if e.Label != "L1" || e.Path.String() != "/right" {
		t.Fatalf("duplicate reported as %q at %s", e.Label, e.Path)
	}
	if len(e.Paths) != 2 || e.Paths[0].String() != "/" {
		t.Fatalf("paths = %v", e.Paths)
	}
}

func TestHasUniqueLabels_FirstDuplicate(t *testing.T) {
	ok, dup := HasUniqueLabels([]Label{"a", "b", "c", "b", "a"})
	if ok || dup != "b" {
		t.Fatalf("got %v, %q; want false, b", ok, dup)
	}
	ok, dup = HasUniqueLabels([]Label{"a", "b"})
	if !ok || dup != "" {
		t.Fatalf("got %v, %q; want true", ok, dup)
	}
	if ok, _ := HasUniqueLabels(nil); !ok {
		t.Fatalf("empty sequence must be unique")
	}
}

func TestDuplicates_EmptyLabelIsOrdinary(t *testing.T) {
	g := NewInteract("", alice, "M", NewEnd(""))
	dups := Duplicates(g)
	if len(dups) != 1 || dups[0].Label != "" || len(dups[0].Paths) != 2 {
		t.Fatalf("Duplicates = %+v", dups)
	}
}

func TestCertifyAll(t *testing.T) {
	g := NewChoice("C",
		UncertifiedPar("P1", NewInteract("a", alice, "M", NewEnd("e1")), NewInteract("b", bob, "M", NewEnd("e2"))),
		NewEnd("e3"),
	)
	certified, err := CertifyAll(g)
	if err != nil {
		t.Fatalf("CertifyAll: %v", err)
	}
	w := ParWitnesses(certified)
	if len(w) != 1 || !w[0].Certified || !w[0].Disjoint() || w[0].Path.String() != "/left" {
		t.Fatalf("witnesses = %+v", w)
	}
	// The input is not modified.
	if ParWitnesses(g)[0].Certified {
		t.Fatalf("CertifyAll mutated its input")
	}

	bad := NewRec("R", UncertifiedPar("P2", NewInteract("a", alice, "M", NewEnd("e1")), NewInteract("b", alice, "M", NewEnd("e2"))))
	_, err = CertifyAll(bad)
	e, ok := AsError(err)
	if !ok || e.RuleID != RuleNonDisjointPar || e.Path.String() != "/body" || e.Label != "P2" {
		t.Fatalf("unexpected error: %v", err)
	}
	if errs := CheckDisjoint(bad); len(errs) != 1 {
		t.Fatalf("CheckDisjoint = %v", errs)
	}
}

func TestCompose(t *testing.T) {
	g := NewInteract("a", alice, "M", NewEnd("dropped"))
	tail := NewInteract("b", bob, "Ack", NewEnd("E"))
	got := Compose(g, tail)
	want := NewInteract("a", alice, "M", tail)
	if got != GlobalType(want) {
		t.Fatalf("Compose = %s, want %s", got, want)
	}
	for _, l := range LabelsOf(got) {
		if l == "dropped" {
			t.Fatalf("End label survived composition")
		}
	}
}

func TestCompose_InvalidatesWitness(t *testing.T) {
	p := mustPar(t, "P", NewInteract("a", alice, "M", NewEnd("e1")), NewInteract("b", bob, "M", NewEnd("e2")))
	composed := Compose(p, NewInteract("c", alice, "M", NewEnd("e3")))
	if composed.(Par).Certified {
		t.Fatalf("witness must be cleared after composition")
	}
	if _, err := Project(alice, composed); RuleID(err) != RuleUncertifiedPar {
		t.Fatalf("expected projection to refuse, got %v", err)
	}
	// Alice now appears in both branches, so re-certification fails.
	if _, err := Extend(p, NewInteract("c", alice, "M", NewEnd("e3"))); RuleID(err) != RuleNonDisjointPar {
		t.Fatalf("Extend: expected non-disjoint error, got %v", err)
	}
}

func TestCheckStructure(t *testing.T) {
	cases := []struct {
		g    GlobalType
		rule string
		path string
	}{
		{nil, RuleNilSubtree, "/"},
		{NewInteract("a", "", "M", NewEnd("e")), RuleEmptyRole, "/"},
		{NewChoice("c", NewEnd("e"), nil), RuleNilSubtree, "/right"},
		{NewRec("r", NewInteract("a", alice, "M", nil)), RuleNilSubtree, "/body/cont"},
	}
	for _, tc := range cases {
		err := CheckStructure(tc.g)
		e, ok := AsError(err)
		if !ok || e.RuleID != tc.rule || e.Path.String() != tc.path {
			t.Fatalf("CheckStructure(%v) = %v, want %s at %s", tc.g, err, tc.rule, tc.path)
		}
	}
	if err := CheckStructure(sampleTree(t)); err != nil {
		t.Fatalf("CheckStructure(sample): %v", err)
	}
}

func TestPathRoundTripAndLookup(t *testing.T) {
	g := sampleTree(t)
	for _, o := range LabelOccurrences(g) {
		p, ok := ParsePath(o.Path.String())
		if !ok {
			t.Fatalf("ParsePath(%s) failed", o.Path)
		}
		n, ok := Lookup(g, p)
		if !ok || n.NodeLabel() != o.Label {
			t.Fatalf("Lookup(%s) = %v", p, n)
		}
	}
	if _, ok := ParsePath("/sideways"); ok {
		t.Fatalf("ParsePath accepted an unknown step")
	}
}

func TestString(t *testing.T) {
	g := NewInteract("L1", alice, "Msg", NewInteract("L2", bob, "Ack", NewEnd("L3")))
	if got, want := g.String(), "Interact(L1,Alice,Msg,Interact(L2,Bob,Ack,End(L3)))"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
	p := UncertifiedPar("odd label", NewEnd(""), NewEnd("x"))
	if got, want := p.String(), `Par?("odd label",End(""),End(x))`; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
	io := Interact{Label: "q", Role: Client, Msg: MsgMessage, IO: IOMQTT, Cont: NewEnd("e")}
	if got, want := io.String(), "Interact(q,client,Message@mqtt,End(e))"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}
