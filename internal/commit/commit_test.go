package commit

import (
	"strings"
	"testing"
)

func TestHash_Deterministic(t *testing.T) {
	d1, n1 := Hash("hello")
	d2, n2 := Hash("hello")

	if d1 != d2 {
		t.Errorf("same content hashed to %s and %s", d1, d2)
	}
	if n1 != 5 || n2 != 5 {
		t.Errorf("length = %d/%d, want 5", n1, n2)
	}
}

func TestHash_DistinctContent(t *testing.T) {
	d1, _ := Hash("hello")
	d2, _ := Hash("hello ")

	if d1 == d2 {
		t.Error("distinct contents produced identical digests")
	}
}

func TestHash_Empty(t *testing.T) {
	d, n := Hash("")
	if n != 0 {
		t.Errorf("length = %d, want 0", n)
	}
	if d.IsZero() {
		t.Error("empty content should still hash to a nonzero digest")
	}
}

func TestHash_KnownVector(t *testing.T) {
	// Keccak-256 of the empty string, a fixed reference value.
	d, _ := Hash("")
	want := "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if d.String() != want {
		t.Errorf("Hash(\"\") = %s, want %s", d, want)
	}
}

func TestDigest_String(t *testing.T) {
	d, _ := Hash("hello")
	s := d.String()

	if !strings.HasPrefix(s, "0x") {
		t.Errorf("digest string %q missing 0x prefix", s)
	}
	if len(s) != 2+2*DigestSize {
		t.Errorf("digest string length = %d, want %d", len(s), 2+2*DigestSize)
	}
}

func TestParseDigest_RoundTrip(t *testing.T) {
	d, _ := Hash("round trip")

	parsed, err := ParseDigest(d.String())
	if err != nil {
		t.Fatalf("ParseDigest() error: %v", err)
	}
	if parsed != d {
		t.Errorf("round trip = %s, want %s", parsed, d)
	}
}

func TestParseDigest_BareHex(t *testing.T) {
	d, _ := Hash("bare")

	parsed, err := ParseDigest(strings.TrimPrefix(d.String(), "0x"))
	if err != nil {
		t.Fatalf("ParseDigest() error: %v", err)
	}
	if parsed != d {
		t.Errorf("bare hex parse = %s, want %s", parsed, d)
	}
}

func TestParseDigest_Invalid(t *testing.T) {
	if _, err := ParseDigest("0xzz"); err == nil {
		t.Error("ParseDigest of non-hex should fail")
	}
	if _, err := ParseDigest("0x1234"); err == nil {
		t.Error("ParseDigest of short input should fail")
	}
}

func TestVerify(t *testing.T) {
	d, n := Hash("the deliverable")

	if !Verify("the deliverable", d.String(), n) {
		t.Error("Verify should accept matching content")
	}
	if Verify("another deliverable", d.String(), n) {
		t.Error("Verify should reject different content")
	}
	if Verify("the deliverable", d.String(), n+1) {
		t.Error("Verify should reject a wrong length")
	}
}
