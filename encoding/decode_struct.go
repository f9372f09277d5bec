package encoding

import (
	"encoding/binary"
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type structData struct {
	handler handler
	offset  uintptr
}

func decodeStruct(typ reflect2.StructType) (handler, int, error) {
	count := typ.NumField()
	fields := make([]structData, 0, count)
	var size int
	for i := 0; i < count; i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		fieldHandler, fieldSize, err := decode(field.Type())
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, structData{fieldHandler, field.Offset()})
		size += fieldSize
	}
	return func(stream Stream, order binary.ByteOrder, ptr unsafe.Pointer) error {
		for _, data := range fields {
			if err := data.handler(stream, order, unsafe.Add(ptr, data.offset)); err != nil {
				return err
			}
		}
		return nil
	}, size, nil
}

func decodeArray(typ reflect2.ArrayType) (handler, int, error) {
	count := typ.Len()
	elemType := typ.Elem()
	if elemType.Kind() == reflect.Uint8 {
		return func(stream Stream, _ binary.ByteOrder, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), count))
			return err
		}, count, nil
	}
	unmarshal, elemSize, err := decode(elemType)
	if err != nil {
		return nil, 0, err
	}
	stride := elemType.Type1().Size()
	return func(stream Stream, order binary.ByteOrder, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := unmarshal(stream, order, ptr); err != nil {
				return err
			}
			ptr = unsafe.Add(ptr, stride)
		}
		return nil
	}, count * elemSize, nil
}
