package cow

import (
	"math/rand/v2"
	"unsafe"
)

// hashAny borrows the Go runtime's own map-hashing function for an
// arbitrary comparable key, the same trick internal/cellarray uses (and
// the teacher library uses for MapOf's default hasher) so Index needs
// no user-supplied hash function for ordinary key types.
func hashAny[K comparable](key K) uint64 {
	var m map[K]struct{}
	mapType := iTypeOf(m).mapType()
	return uint64(mapType.Hasher(noescape(unsafe.Pointer(&key)), globalSeed))
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
