package patch

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/process"
)

// FilePatcher writes a branch into the on-disk image of the target binary.
type FilePatcher struct {
	FS filesystem.FS
	// Encoder defaults to the ARM64 encoder.
	Encoder Encoder
	// Expect, when set, is the Digest the image must have before it is patched.
	Expect []byte
}

// Digest hashes image with [offset, offset+size) zeroed, so a patched and
// an unpatched copy of the same build agree.
func Digest(image []byte, offset int64, size int) []byte {
	h := sha256.New()
	end := min(offset+int64(size), int64(len(image)))
	if offset < 0 || offset >= int64(len(image)) {
		h.Write(image)
	} else {
		h.Write(image[:offset])
		h.Write(make([]byte, end-offset))
		h.Write(image[end:])
	}
	return h.Sum(nil)
}

// PatchFile writes a branch to trampoline at offset of name. It reports
// whether anything was written; an image already holding the branch is
// left untouched.
func (fp *FilePatcher) PatchFile(name string, offset int64, trampoline uint64) (bool, error) {
	if offset < 0 || trampoline == 0 {
		return false, process.ErrArgumentInvalid
	}
	enc := fp.Encoder
	if enc == nil {
		var err error
		if enc, err = EncoderFor(process.ARCH_ARM64); err != nil {
			return false, err
		}
	}
	code := enc.Branch(uint64(offset), trampoline)

	file, err := filesystem.OpenRandom(fp.FS, name, filesystem.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if offset+int64(len(code)) > info.Size() {
		return false, fmt.Errorf("%w: offset %#x beyond %s", process.ErrArgumentInvalid, offset, name)
	}

	if fp.Expect != nil {
		image := make([]byte, info.Size())
		if _, err = file.ReadAt(image, 0); err != nil {
			return false, err
		}
		if !bytes.Equal(Digest(image, offset, len(code)), fp.Expect) {
			return false, fmt.Errorf("%w: %s", ErrImageMismatch, name)
		}
	}

	current := make([]byte, len(code))
	if _, err = file.ReadAt(current, offset); err != nil {
		return false, err
	}
	if bytes.Equal(current, code) {
		return false, nil
	}
	if _, err = file.WriteAt(code, offset); err != nil {
		return false, err
	}
	return true, nil
}
