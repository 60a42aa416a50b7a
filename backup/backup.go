package backup

// Type is the kind of cartridge backup memory.
type Type uint32

const (
	TypeNone Type = iota
	TypeEEPROM
	TypeFlash
	TypeNAND
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeEEPROM:
		return "eeprom"
	case TypeFlash:
		return "flash"
	case TypeNAND:
		return "nand"
	}
	return "unknown"
}

// PageSize is the granularity of the dirty bitmap.
const PageSize = 4096

// AddressBytes is the width of an address sent to the backup chip.
func AddressBytes(typ Type, size uint32) uint32 {
	switch {
	case typ == TypeNone:
		return 0
	case typ == TypeEEPROM && size <= 0x200:
		return 1
	case typ == TypeEEPROM && size <= 0x10000:
		return 2
	}
	return 3
}

// Image is the in-memory copy of the backup memory of one game.
type Image struct {
	Type         Type
	AddressBytes uint32
	Size         uint32
	Data         []byte
	Dirty        *Bitmap
	FilePath     string
	HasFile      bool
	// Loaded is how many leading bytes came from FilePath.
	Loaded uint32
}

func NewImage(typ Type, size uint32, path string) *Image {
	return &Image{
		Type:         typ,
		AddressBytes: AddressBytes(typ, size),
		Size:         size,
		Data:         make([]byte, size),
		Dirty:        NewBitmap(size),
		FilePath:     path,
	}
}

func (img *Image) fill(from uint32) {
	for i := from; i < img.Size; i++ {
		img.Data[i] = 0xFF
	}
}
