package encoding

import (
	"encoding/binary"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

// codec lays a Go type out the way a C compiler for the target would:
// scalars keep their size, int/uint/uintptr take the target pointer width,
// every member is aligned to its own size.
type codec struct {
	encode handler
	decode handler
	size   int
	align  int
	raw    bool
}

type structData struct {
	codec  *codec
	offset uintptr
	pad    int
}

var codecs sync.Map

// Size reports how many bytes val occupies in the target layout.
func Size(blockSize int, val any) int {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return 0
	} else if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	return getCodec(typ, blockSize).size
}

// Encode writes the value val points to.
func Encode(stream Stream, val any) error {
	typ, ptr, err := elem(val)
	if err != nil {
		return err
	}
	return getCodec(typ, stream.BlockSize()).encode(stream, ptr)
}

// Decode fills the value val points to.
func Decode(stream Stream, val any) error {
	typ, ptr, err := elem(val)
	if err != nil {
		return err
	}
	return getCodec(typ, stream.BlockSize()).decode(stream, ptr)
}

func Marshal(blockSize int, val any) ([]byte, error) {
	buf := NewBuffer(blockSize, nil)
	if err := Encode(buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(blockSize int, data []byte, val any) error {
	return Decode(NewBuffer(blockSize, data), val)
}

func elem(val any) (reflect2.Type, unsafe.Pointer, error) {
	typ := reflect2.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, nil, ErrValueInvalid
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return nil, nil, ErrValueInvalid
	}
	return typ.(reflect2.PtrType).Elem(), ptr, nil
}

func getCodec(typ reflect2.Type, bs int) *codec {
	key := [2]uintptr{uintptr(bs), typ.RType()}
	if v, ok := codecs.Load(key); ok {
		return v.(*codec)
	}
	c := build(typ, bs)
	v, _ := codecs.LoadOrStore(key, c)
	return v.(*codec)
}

func build(typ reflect2.Type, bs int) *codec {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		return rawCodec(int(typ.Type1().Size()))
	case reflect.Int, reflect.Uint, reflect.Uintptr, reflect.UnsafePointer:
		return wordCodec(int(typ.Type1().Size()), bs)
	case reflect.Array:
		return arrayCodec(typ.(reflect2.ArrayType), bs)
	case reflect.Struct:
		return structCodec(typ.(reflect2.StructType), bs)
	}
	panic("Unsupported Type")
}

// rawCodec copies scalars in host byte order; every supported host and
// target is little endian.
func rawCodec(size int) *codec {
	return &codec{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
			return err
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
			return err
		},
		size:  size,
		align: size,
		raw:   true,
	}
}

func wordCodec(size, bs int) *codec {
	if size == bs {
		return rawCodec(size)
	}
	return &codec{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], loadWord(ptr, size))
			_, err := stream.Write(buf[:bs])
			return err
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			if _, err := stream.Read(buf[:bs]); err != nil {
				return err
			}
			storeWord(ptr, size, binary.LittleEndian.Uint64(buf[:]))
			return nil
		},
		size:  bs,
		align: bs,
	}
}

func loadWord(ptr unsafe.Pointer, size int) uint64 {
	if size == 8 {
		return *(*uint64)(ptr)
	}
	return uint64(*(*uint32)(ptr))
}

func storeWord(ptr unsafe.Pointer, size int, v uint64) {
	if size == 8 {
		*(*uint64)(ptr) = v
	} else {
		*(*uint32)(ptr) = uint32(v)
	}
}

func arrayCodec(typ reflect2.ArrayType, bs int) *codec {
	count := typ.Len()
	elem := getCodec(typ.Elem(), bs)
	if elem.raw {
		c := rawCodec(elem.size * count)
		c.align = elem.align
		return c
	}
	return &codec{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				if err := elem.encode(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
					return err
				}
			}
			return nil
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				if err := elem.decode(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
					return err
				}
			}
			return nil
		},
		size:  elem.size * count,
		align: elem.align,
	}
}

func structCodec(typ reflect2.StructType, bs int) *codec {
	var (
		fields   []structData
		offset   int
		maxAlign = 1
		raw      = true
	)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			raw = false
			continue
		}
		c := getCodec(field.Type(), bs)
		pos := align(offset, c.align)
		fields = append(fields, structData{c, field.Offset(), pos - offset})
		raw = raw && c.raw && uintptr(pos) == field.Offset()
		offset = pos + c.size
		maxAlign = max(maxAlign, c.align)
	}
	total := align(offset, maxAlign)
	tail := total - offset
	if raw && uintptr(total) == typ.Type1().Size() {
		c := rawCodec(total)
		c.align = maxAlign
		return c
	}
	return &codec{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			for _, data := range fields {
				if err := skip(stream, data.pad); err != nil {
					return err
				} else if err = data.codec.encode(stream, unsafe.Add(ptr, data.offset)); err != nil {
					return err
				}
			}
			return skip(stream, tail)
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			for _, data := range fields {
				if err := skip(stream, data.pad); err != nil {
					return err
				} else if err = data.codec.decode(stream, unsafe.Add(ptr, data.offset)); err != nil {
					return err
				}
			}
			return skip(stream, tail)
		},
		size:  total,
		align: maxAlign,
	}
}

func skip(stream Stream, n int) error {
	if n == 0 {
		return nil
	}
	return stream.Skip(n)
}

func align(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
