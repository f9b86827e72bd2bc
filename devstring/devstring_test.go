package devstring

import "testing"

func TestParseSinglePort(t *testing.T) {
	toks, err := Parse("dpdk0", Passive)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0] != (Token{Port: 0, Queue: 0}) {
		t.Fatalf("got %+v", toks)
	}
}

func TestParseSharedPortWithQueues(t *testing.T) {
	// "dpdk0:dpdk0-1" produces two tokens on the same port with
	// queues 0 and 1 (spec.md §8 round-trip property).
	toks, err := Parse("dpdk0:dpdk0-1", Passive)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[0].Port != 0 || toks[0].Queue != 0 {
		t.Fatalf("token 0 = %+v", toks[0])
	}
	if toks[1].Port != 0 || toks[1].Queue != 1 {
		t.Fatalf("token 1 = %+v", toks[1])
	}
}

func TestParseInlinePairs(t *testing.T) {
	toks, err := Parse("dpdk0:dpdk1", Inline)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
}

func TestParseInlineOddCountFails(t *testing.T) {
	if _, err := Parse("dpdk0:dpdk1:dpdk2", Inline); err == nil {
		t.Fatal("expected error for odd interface count in inline mode")
	}
}

func TestParseLeadingColonInvalid(t *testing.T) {
	if _, err := Parse(":dpdk0", Passive); err == nil {
		t.Fatal("expected error for leading colon")
	}
}

func TestParseTrailingColonInvalid(t *testing.T) {
	if _, err := Parse("dpdk0:", Passive); err == nil {
		t.Fatal("expected error for trailing colon")
	}
}

func TestParseEmptyTokenInvalidInline(t *testing.T) {
	if _, err := Parse("dpdk0::dpdk1", Inline); err == nil {
		t.Fatal("expected error for empty token in inline mode")
	}
}

func TestParseMalformedToken(t *testing.T) {
	for _, bad := range []string{"eth0", "dpdk", "dpdkabc", "dpdk0-"} {
		if _, err := Parse(bad, Passive); err == nil {
			t.Fatalf("expected error for malformed token %q", bad)
		}
	}
}

func TestParseTooLongToken(t *testing.T) {
	long := "dpdk123456789012345"
	if _, err := Parse(long, Passive); err == nil {
		t.Fatal("expected error for too-long token")
	}
}
