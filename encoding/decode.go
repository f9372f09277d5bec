package encoding

import (
	"encoding/binary"
	"errors"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var (
	ErrNotPointer      = errors.New("decode target is not a pointer")
	ErrNilPointer      = errors.New("decode target is nil")
	ErrUnsupportedType = errors.New("unsupported type")
)

type handler = func(Stream, binary.ByteOrder, unsafe.Pointer) error

type handlerData struct {
	handler handler
	size    int
	err     error
}

var decodeProcess sync.Map

// Size returns the number of stream bytes consumed by decoding into val.
func Size(val any) int {
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	return getUnmarshalData(typ).size
}

// Decode fills the value val points to from stream. Integers are read with
// the given byte order, arrays element by element and structs field by field
// in declaration order with no padding between fields, which is how on-disk
// formats such as ELF lay out their headers. Fields tagged
// `encoding:"ignore"` are left untouched and consume no bytes.
func Decode(stream Stream, order binary.ByteOrder, val any) error {
	if val == nil {
		return ErrNotPointer
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() != reflect.Pointer {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNilPointer
	}
	data := getUnmarshalData(typ.(reflect2.PtrType).Elem())
	if data.err != nil {
		return data.err
	}
	return data.handler(stream, order, ptr)
}

func getUnmarshalData(typ reflect2.Type) *handlerData {
	key := typ.RType()
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData)
	}
	data := new(handlerData)
	data.handler, data.size, data.err = decode(typ)
	decodeProcess.Store(key, data)
	return data
}

func decode(typ reflect2.Type) (handler, int, error) {
	switch typ.Kind() {
	case reflect.Uint8, reflect.Int8, reflect.Bool:
		return func(stream Stream, _ binary.ByteOrder, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), 1))
			return err
		}, 1, nil
	case reflect.Uint16, reflect.Int16:
		return func(stream Stream, order binary.ByteOrder, ptr unsafe.Pointer) error {
			var buf [2]byte
			if _, err := stream.Read(buf[:]); err != nil {
				return err
			}
			*(*uint16)(ptr) = order.Uint16(buf[:])
			return nil
		}, 2, nil
	case reflect.Uint32, reflect.Int32:
		return func(stream Stream, order binary.ByteOrder, ptr unsafe.Pointer) error {
			var buf [4]byte
			if _, err := stream.Read(buf[:]); err != nil {
				return err
			}
			*(*uint32)(ptr) = order.Uint32(buf[:])
			return nil
		}, 4, nil
	case reflect.Uint64, reflect.Int64:
		return func(stream Stream, order binary.ByteOrder, ptr unsafe.Pointer) error {
			var buf [8]byte
			if _, err := stream.Read(buf[:]); err != nil {
				return err
			}
			*(*uint64)(ptr) = order.Uint64(buf[:])
			return nil
		}, 8, nil
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType))
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType))
	}
	return nil, 0, ErrUnsupportedType
}
