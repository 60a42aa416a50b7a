package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/retroenv/retrogolib/log"
	"github.com/wnxd/microhook/filesystem"
	"github.com/wnxd/microhook/internal/config"
	"github.com/wnxd/microhook/internal/logger"
	"github.com/wnxd/microhook/patch"
	_ "github.com/wnxd/microhook/patch/arm64"
	"github.com/wnxd/microhook/process"
	"github.com/wnxd/microhook/symbols"
	_ "github.com/wnxd/microhook/symbols/arm"
	_ "github.com/wnxd/microhook/symbols/arm64"
)

func mainE() error {
	var (
		archName   string
		build      string
		dump       bool
		image      string
		offset     string
		trampoline string
		digest     string
		showDigest bool
	)
	flag.StringVar(&archName, "arch", "arm64", "Target architecture (arm, arm64)")
	flag.StringVar(&build, "build", "", "Target build, defaults to $"+config.EnvBuild)
	flag.BoolVar(&dump, "dump", false, "Print the address table")
	flag.StringVar(&image, "patch", "", "Target binary to patch on disk")
	flag.StringVar(&offset, "offset", "", "File offset of the patched call site")
	flag.StringVar(&trampoline, "trampoline", "", "Absolute trampoline address")
	flag.StringVar(&digest, "sha256", "", "Expected image digest, patch region zeroed")
	flag.BoolVar(&showDigest, "digest", false, "Print the image digest instead of patching")
	flag.Parse()
	if flag.NArg() != 0 {
		return fmt.Errorf("got %d arguments, expected 0", flag.NArg())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lg := logger.New(cfg.Debug)
	if build == "" {
		build = cfg.Build
	}

	switch {
	case dump:
		arch, err := process.ParseArch(archName)
		if err != nil {
			return fmt.Errorf("%w: %s", err, archName)
		}
		table, err := symbols.New(arch, build)
		if err != nil {
			return err
		}
		return dumpTable(os.Stdout, table)
	case image != "":
		off, err := parseUint("offset", offset)
		if err != nil {
			return err
		}
		if showDigest {
			data, err := os.ReadFile(image)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(patch.Digest(data, int64(off), 16)))
			return nil
		}
		addr, err := parseUint("trampoline", trampoline)
		if err != nil {
			return err
		}
		return patchImage(lg, image, int64(off), addr, digest)
	}
	return errors.New("one of -dump or -patch is required")
}

func parseUint(name, value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("flag -%s is required", name)
	}
	v, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("flag -%s: %w", name, err)
	}
	return v, nil
}

func dumpTable(w io.Writer, table *symbols.Table) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "# %s %s\n", table.Arch(), table.Build())
	for _, e := range table.Entries() {
		fmt.Fprintf(tw, "%016X\t%s\t%s\t%#x\n", e.Addr, e.Kind, e.Name, e.Size)
	}
	return tw.Flush()
}

func patchImage(lg *log.Logger, image string, offset int64, trampoline uint64, digest string) error {
	fp := &patch.FilePatcher{FS: filesystem.SysDirFS(filepath.Dir(image))}
	if digest != "" {
		expect, err := hex.DecodeString(digest)
		if err != nil {
			return fmt.Errorf("flag -sha256: %w", err)
		}
		fp.Expect = expect
	}
	written, err := fp.PatchFile(filepath.Base(image), offset, trampoline)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", image, err)
	} else if err != nil {
		return err
	}
	if written {
		lg.Info("Image patched", log.String("image", image), log.String("offset", logger.Hex(uint64(offset))))
	} else {
		lg.Info("Image already patched", log.String("image", image))
	}
	return nil
}

func main() {
	if err := mainE(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
