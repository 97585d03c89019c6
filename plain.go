// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fmq

import (
	"fmt"
	"reflect"
	"unsafe"
)

// quantumOf returns the element size of T, rejecting types that cannot
// live in shared memory.
func quantumOf[T any]() (uint32, error) {
	typ := reflect.TypeFor[T]()
	if !isPlainData(typ) {
		return 0, fmt.Errorf("%w: %v", ErrNotPlainData, typ)
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 || uint64(size) > 1<<31 {
		return 0, fmt.Errorf("%w: %v has size %d", ErrNotPlainData, typ, size)
	}
	return uint32(size), nil
}

// isPlainData reports whether values of typ hold no Go pointers and can
// be copied byte-for-byte into another address space.
func isPlainData(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isPlainData(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if !isPlainData(typ.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
