package scc

import "testing"

func TestDefaultHasherDeterministicAndDiscriminating(t *testing.T) {
	a := DefaultHasher("hello")
	b := DefaultHasher("hello")
	c := DefaultHasher("world")
	if a != b {
		t.Fatal("expected equal keys to hash identically within a process")
	}
	if a == c {
		t.Fatal("expected different keys to (almost certainly) hash differently")
	}
}

func TestXXHash64Deterministic(t *testing.T) {
	if XXHash64("abc") != XXHash64("abc") {
		t.Fatal("expected deterministic xxhash for equal strings")
	}
	if XXHash64("abc") == XXHash64("abd") {
		t.Fatal("expected different strings to (almost certainly) hash differently")
	}
}
