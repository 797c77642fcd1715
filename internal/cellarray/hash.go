package cellarray

import (
	"math/rand/v2"
	"unsafe"
)

// hashAny obtains a 64-bit hash for an arbitrary comparable key by
// borrowing the Go runtime's own map-hashing function, the same trick
// the teacher library uses for its default MapOf hasher (mapof.go's
// defaultHasherUsingBuiltIn/iTypeOf). This gives every comparable type
// — structs, arrays, strings, numbers — a correct hash for free, without
// asking every caller to supply one.
func hashAny[K comparable](key K) uint64 {
	hasher, seed := runtimeHasherOf[K]()
	return uint64(hasher(noescape(unsafe.Pointer(&key)), seed))
}

var globalSeed = uintptr(rand.Uint64())

func runtimeHasherOf[K comparable]() (func(unsafe.Pointer, uintptr) uintptr, uintptr) {
	var m map[K]struct{}
	mapType := iTypeOf(m).mapType()
	return mapType.Hasher, globalSeed
}

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
