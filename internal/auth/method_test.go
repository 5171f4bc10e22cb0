package auth

import "testing"

func TestDefaultChainOrder(t *testing.T) {
	chain := DefaultChain()

	if chain.First() != MethodPlatform {
		t.Fatalf("expected chain to start at platform, got %s", chain.First())
	}

	expected := []struct {
		from Method
		to   Method
		ok   bool
	}{
		{MethodPlatform, MethodPin, true},
		{MethodPin, MethodSms, true},
		{MethodSms, MethodPush, true},
		{MethodPush, "", false},
	}
	for _, tc := range expected {
		next, ok := chain.Next(tc.from)
		if ok != tc.ok || next != tc.to {
			t.Errorf("Next(%s) = (%s, %v), expected (%s, %v)", tc.from, next, ok, tc.to, tc.ok)
		}
	}
}

func TestNewChainValidation(t *testing.T) {
	if _, err := NewChain(nil); err == nil {
		t.Error("expected empty chain to be rejected")
	}
	if _, err := NewChain([]string{"pin", "fax"}); err == nil {
		t.Error("expected unknown method to be rejected")
	}
	if _, err := NewChain([]string{"pin", "sms", "pin"}); err == nil {
		t.Error("expected duplicate method to be rejected")
	}

	chain, err := NewChain([]string{"totp", "pin"})
	if err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
	if chain.First() != MethodTotp {
		t.Fatalf("expected custom chain to start at totp, got %s", chain.First())
	}
	if next, ok := chain.Next(MethodTotp); !ok || next != MethodPin {
		t.Fatalf("expected totp to fall back to pin, got (%s, %v)", next, ok)
	}
	if chain.Contains(MethodPush) {
		t.Error("push must not be in the custom chain")
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Platform ")
	if err != nil || m != MethodPlatform {
		t.Fatalf("expected trimmed case-insensitive parse, got (%s, %v)", m, err)
	}
	if _, err := ParseMethod("carrier-pigeon"); err == nil {
		t.Fatal("expected unknown method to fail")
	}
}
