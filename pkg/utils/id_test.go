package utils

import (
	"strings"
	"testing"
)

func TestGenerateTrackingNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tn := GenerateTrackingNumber()

		if !strings.HasPrefix(tn, "QH-") {
			t.Fatalf("GenerateTrackingNumber() = %q, want QH- prefix", tn)
		}
		if len(tn) != 15 {
			t.Fatalf("GenerateTrackingNumber() length = %d, want 15", len(tn))
		}
		if tn != strings.ToUpper(tn) {
			t.Fatalf("GenerateTrackingNumber() = %q, want upper case", tn)
		}
		if seen[tn] {
			t.Fatalf("GenerateTrackingNumber() repeated %q", tn)
		}
		seen[tn] = true
	}
}

func TestIsValidUUID(t *testing.T) {
	if !IsValidUUID(GenerateID()) {
		t.Error("IsValidUUID(GenerateID()) = false, want true")
	}
	if IsValidUUID("not-a-uuid") {
		t.Error("IsValidUUID(not-a-uuid) = true, want false")
	}
	if IsValidUUID("") {
		t.Error("IsValidUUID(empty) = true, want false")
	}
}
