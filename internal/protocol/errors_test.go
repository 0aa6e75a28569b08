package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrBadRequest,
		ErrNoSession,
		ErrNotFound,
		ErrAddFailed,
		ErrConflict,
		ErrRateLimit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"PROPOSE","initiator_item":"core:wood"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if b.Type != TypePropose {
		t.Fatalf("type=%q", b.Type)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
