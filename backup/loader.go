package backup

import (
	"bytes"
	"errors"
	"io"
	"io/fs"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/internal/logger"
)

// FooterSignature opens the footer DeSmuME appends to its save files.
const FooterSignature = "|<--Snip above here to create a raw sav by excluding this DeSmuME savedata footer:"

const (
	// FooterSize is the whole DeSmuME footer, signature included.
	FooterSize = 0x7a

	footerSearchWindow = 0x200
)

// FindFooter returns the offset of the footer signature within the last
// footerSearchWindow bytes of data, or -1.
func FindFooter(data []byte) int {
	start := max(len(data)-footerSearchWindow, 0)
	i := bytes.Index(data[start:], []byte(FooterSignature))
	if i == -1 {
		return -1
	}
	return start + i
}

type Loader struct {
	FS     filesystem.FS
	Logger *log.Logger
}

// Load fills img from its file. Load never fails: a missing or unreadable
// file leaves an erased image with every page dirty.
func (l *Loader) Load(img *Image) {
	lg := logger.OrDiscard(l.Logger)
	img.AddressBytes = AddressBytes(img.Type, img.Size)
	if uint32(len(img.Data)) < img.Size {
		img.Data = append(img.Data, make([]byte, int(img.Size)-len(img.Data))...)
	}
	if img.Dirty == nil || img.Dirty.Pages() != NewBitmap(img.Size).Pages() {
		img.Dirty = NewBitmap(img.Size)
	}
	img.Loaded = 0
	if img.FilePath == "" {
		img.HasFile = false
		return
	}
	img.HasFile = true

	n, length, err := l.read(img)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			lg.Warn("Backup file missing, starting erased", log.String("path", img.FilePath))
		} else {
			lg.Error("Backup file unreadable, starting erased", log.String("path", img.FilePath), log.Err(err))
		}
		img.fill(0)
		img.Dirty.SetAll()
		return
	}

	if length >= int64(img.Size) {
		img.Loaded = img.Size
		img.Dirty.ClearAll()
		if length != int64(img.Size) && length != int64(img.Size)+FooterSize {
			lg.Debug("Backup file longer than backup memory",
				log.String("path", img.FilePath),
				log.Int("size", int(img.Size)),
				log.Int("length", int(length)),
			)
		}
		return
	}

	loaded := n
	if i := FindFooter(img.Data[:n]); i != -1 {
		lg.Info("Dropping DeSmuME footer", log.String("path", img.FilePath), log.Int("offset", i))
		loaded = i
	}
	img.Loaded = uint32(loaded)
	img.fill(img.Loaded)
	img.Dirty.ClearAll()
	for page := loaded / PageSize; page < img.Dirty.Pages(); page++ {
		img.Dirty.Set(page)
	}
}

// read loads up to img.Size bytes and reports the file length.
func (l *Loader) read(img *Image) (int, int64, error) {
	file, err := l.FS.OpenFile(img.FilePath, filesystem.O_RDONLY, 0)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, 0, err
	}
	r, ok := file.(io.Reader)
	if !ok {
		return 0, 0, fs.ErrInvalid
	}
	n, err := io.ReadFull(r, img.Data[:img.Size])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, info.Size(), err
}

// Save writes the image back to its file and marks every page clean.
func (l *Loader) Save(img *Image) error {
	if !img.HasFile {
		return nil
	}
	if err := filesystem.WriteFile(l.FS, img.FilePath, img.Data[:img.Size], 0o644); err != nil {
		return err
	}
	img.Dirty.ClearAll()
	return nil
}
