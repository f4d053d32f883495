package dict

import (
	"bytes"
	"testing"
)

func TestAddGetRoundTrip(t *testing.T) {
	d := New(0)
	values := map[string][]byte{
		"plain": []byte("hello"),
		"bin":   {0, 1, 2, '\r', '\n', '=', '\\', 0xff},
		"empty": {},
		"nl":    []byte("a\nb\nc"),
	}
	for k, v := range values {
		if !d.Add(k, v) {
			t.Fatalf("Add(%q) failed", k)
		}
	}
	for k, v := range values {
		got, ok := d.Get(k)
		if !ok {
			t.Fatalf("Get(%q) missing", k)
		}
		if !bytes.Equal(got, v) {
			t.Fatalf("Get(%q) = %v, want %v", k, got, v)
		}
	}
	if _, ok := d.Get("absent"); ok {
		t.Fatalf("Get of absent key succeeded")
	}
}

func TestSerializedFormIsLineOriented(t *testing.T) {
	d := New(0)
	d.AddString("a", "1")
	d.Add("b", []byte("x\ny"))
	d.AddString("c", "3")
	// Escaped values must not introduce raw newlines, so the serialized
	// form has exactly one line per pair.
	lines := bytes.Count(d.Bytes(), []byte{'\n'})
	if lines != 3 {
		t.Fatalf("got %d lines, want 3: %q", lines, d.Bytes())
	}
	if got := d.GetString("b", ""); got != "x\ny" {
		t.Fatalf("GetString(b) = %q", got)
	}
}

func TestDuplicateKeys(t *testing.T) {
	d := New(0)
	if !d.AddString("k", "first") {
		t.Fatalf("first Add failed")
	}
	if d.AddString("k", "second") {
		t.Fatalf("duplicate Add succeeded")
	}
	// A reader handed a dictionary with duplicates takes the first.
	raw := append([]byte(nil), d.Bytes()...)
	raw = append(raw, []byte("k=second\n")...)
	if got := FromBytes(raw).GetString("k", ""); got != "first" {
		t.Fatalf("reader took %q, want first occurrence", got)
	}
}

func TestInvalidKeys(t *testing.T) {
	d := New(0)
	for _, k := range []string{"", "a=b", "a\nb", "a\\b"} {
		if d.Add(k, []byte("v")) {
			t.Fatalf("Add(%q) succeeded", k)
		}
	}
}

func TestCapacityOverflow(t *testing.T) {
	d := New(16)
	if !d.AddString("a", "12345") {
		t.Fatalf("first Add should fit")
	}
	if d.AddString("bcdef", "1234567890") {
		t.Fatalf("overflowing Add succeeded")
	}
	if _, ok := d.Get("bcdef"); ok {
		t.Fatalf("overflowed key was stored")
	}
}

func TestUintAndBool(t *testing.T) {
	d := New(0)
	d.AddUint64("x", 0xdeadbeef)
	d.AddUint64("zero", 0)
	d.AddBool("t", true)
	d.AddBool("f", false)
	if got := d.GetUint64("x", 0); got != 0xdeadbeef {
		t.Fatalf("GetUint64(x) = %x", got)
	}
	if got := d.GetUint64("zero", 7); got != 0 {
		t.Fatalf("GetUint64(zero) = %d", got)
	}
	if got := d.GetUint64("absent", 42); got != 42 {
		t.Fatalf("GetUint64 default = %d", got)
	}
	if !d.GetBool("t", false) || d.GetBool("f", true) {
		t.Fatalf("GetBool round trip failed")
	}
	if !d.GetBool("absent", true) {
		t.Fatalf("GetBool default failed")
	}
}
