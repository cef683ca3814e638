package fingerprint

import (
	"strings"
	"testing"
)

func TestOf(t *testing.T) {
	fp1 := Of([]byte("City\nnyc\n"))
	fp2 := Of([]byte("City\nnyc\n"))
	if fp1 != fp2 {
		t.Errorf("same content should give same fingerprint: %q vs %q", fp1, fp2)
	}
	if !strings.HasPrefix(fp1, prefix) || len(fp1) != len(prefix)+64 {
		t.Errorf("unexpected fingerprint %q", fp1)
	}
}

func TestOf_differentContent(t *testing.T) {
	if Of([]byte("a")) == Of([]byte("b")) {
		t.Error("different content should give different fingerprints")
	}
}
