package cliutil

import "testing"

func TestParseUIDRandom(t *testing.T) {
	a, err := ParseUID("r")
	if err != nil {
		t.Fatalf("ParseUID(r) failed: %v", err)
	}
	b, err := ParseUID("r")
	if err != nil {
		t.Fatalf("ParseUID(r) failed: %v", err)
	}
	if a == b {
		t.Error("two random UIDs collided; random generation is likely broken")
	}
}

func TestParseUIDLiteral(t *testing.T) {
	uid, err := ParseUID("0102030405ff")
	if err != nil {
		t.Fatalf("ParseUID failed: %v", err)
	}
	want := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xff}
	if uid != want {
		t.Errorf("ParseUID = %x; want %x", uid, want)
	}
}

func TestParseUIDShortIsRightPadded(t *testing.T) {
	uid, err := ParseUID("0102")
	if err != nil {
		t.Fatalf("ParseUID failed: %v", err)
	}
	want := [6]byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x00}
	if uid != want {
		t.Errorf("ParseUID = %x; want %x", uid, want)
	}
}

func TestParseUIDLongIsTruncated(t *testing.T) {
	uid, err := ParseUID("0102030405ffaabbcc")
	if err != nil {
		t.Fatalf("ParseUID failed: %v", err)
	}
	want := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xff}
	if uid != want {
		t.Errorf("ParseUID = %x; want %x", uid, want)
	}
}
