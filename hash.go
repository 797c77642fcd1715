package scc

import (
	"math/rand/v2"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes a 64-bit hash for a key. Map, Set and Index accept one
// via WithHasher or WithIndexHasher; a container given none uses its own
// copy of the runtime-hasher mechanism DefaultHasher is built on. A nil
// Hasher passed to those options is stored as is, not replaced.
type Hasher[K comparable] func(key K) uint64

// DefaultHasher borrows the Go runtime's own map-hashing function, the
// same trick the teacher library uses for MapOf's default hasher
// (mapof.go's defaultHasherUsingBuiltIn/iTypeOf) — every comparable key
// type gets a correct, reasonably fast hash with no configuration.
func DefaultHasher[K comparable](key K) uint64 {
	var m map[K]struct{}
	mapType := iTypeOf(m).mapType()
	return uint64(mapType.Hasher(noescape(unsafe.Pointer(&key)), globalSeed))
}

// XXHash64 hashes a key's raw bytes with xxhash, a faster option than
// DefaultHasher for large string/[]byte-shaped keys and one that gives
// this module's xxhash domain-stack dependency (§2 of SPEC_FULL.md) a
// concrete, exercised home instead of staying merely transitive.
func XXHash64[K ~string](key K) uint64 {
	return xxhash.Sum64String(string(key))
}

// XXHash64Bytes hashes a []byte key with xxhash.
func XXHash64Bytes(key []byte) uint64 {
	return xxhash.Sum64(key)
}

var globalSeed = uintptr(rand.Uint64())

//go:nosplit
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}

type iType struct {
	size       uintptr
	ptrBytes   uintptr
	hash       uint32
	tflag      uint8
	align      uint8
	fieldAlign uint8
	kind       uint8
	equal      func(unsafe.Pointer, unsafe.Pointer) bool
	gcData     *byte
	str        int32
	ptrToThis  int32
}

type iMapType struct {
	iType
	key    *iType
	elem   *iType
	group  *iType
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

func (t *iType) mapType() *iMapType {
	return (*iMapType)(unsafe.Pointer(t))
}

type iEmptyInterface struct {
	Type *iType
	Data unsafe.Pointer
}

func iTypeOf(a any) *iType {
	eface := *(*iEmptyInterface)(unsafe.Pointer(&a))
	return (*iType)(noescape(unsafe.Pointer(eface.Type)))
}
