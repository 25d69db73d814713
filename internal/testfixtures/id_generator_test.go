package testfixtures

import "testing"

func TestIDGeneratorKeepsASequencePerKind(t *testing.T) {
	gen := NewIDGenerator()
	nextRendezVous := gen.For(KindRendezVous)

	if got := nextRendezVous(); got != "rdv-1" {
		t.Fatalf("unexpected first id %q", got)
	}
	if got := gen.Next(KindMember); got != "member-1" {
		t.Fatalf("expected members to count on their own, got %q", got)
	}
	if got := nextRendezVous(); got != "rdv-2" {
		t.Fatalf("unexpected second id %q", got)
	}
	if gen.Issued(KindRendezVous) != 2 || gen.Issued(KindActivity) != 0 {
		t.Fatalf("unexpected counts: rdv=%d activity=%d", gen.Issued(KindRendezVous), gen.Issued(KindActivity))
	}

	var none *IDGenerator
	if got := none.For(KindRendezVous)(); got != "" {
		t.Fatalf("expected an empty id from a nil generator, got %q", got)
	}
}
