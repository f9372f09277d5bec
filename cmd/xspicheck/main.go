// xspicheck runs the boot path of xspiloader on the host: it validates an
// ELF image (or a flash dump holding one) against a board layout, loads it
// into simulated RAM and prints the launch context and a digest of RAM.
//
// Exit status is 0 when the image would boot, 1 when the bootloader would
// halt, and 2 on usage errors.
package main

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/wnxd/xspiboot/boot"
	"github.com/wnxd/xspiboot/emulator"
	"github.com/wnxd/xspiboot/image"
	"github.com/wnxd/xspiboot/layout"
	"github.com/wnxd/xspiboot/loader"
	"github.com/wnxd/xspiboot/store"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitOK       = 0
	exitRejected = 1
	exitUsage    = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		layoutName string
		layoutFile string
		offset     int64
		chunkSize  int
		logLevel   string
		logJSON    bool
		showVer    bool
	)
	flagSet := pflag.NewFlagSet("xspicheck", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&layoutName, "layout", "l", layout.Variant, "compiled-in layout: "+strings.Join(layout.Names(), ", "))
	flagSet.StringVar(&layoutFile, "layout-file", "", "YAML board layout (overrides --layout)")
	flagSet.Int64Var(&offset, "offset", -1, "image offset inside the input (default: the board's image offset for flash dumps, 0 otherwise)")
	flagSet.IntVar(&chunkSize, "chunk-size", loader.DefaultChunkSize, "loader scratch buffer size in bytes")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.BoolVar(&logJSON, "log-json", false, "log as JSON")
	flagSet.BoolVar(&showVer, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: xspicheck [flags] <image.elf | flash.bin>\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if showVer {
		fmt.Fprintf(stdout, "xspicheck %s (%s)\n", version, commit)
		return exitOK
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return exitUsage
	}

	logger, err := newLogger(stderr, logLevel, logJSON)
	if err != nil {
		fmt.Fprintf(stderr, "xspicheck: %v\n", err)
		return exitUsage
	}
	board, err := loadBoard(layoutName, layoutFile)
	if err != nil {
		fmt.Fprintf(stderr, "xspicheck: %v\n", err)
		return exitUsage
	}
	s, err := openImage(flagSet.Arg(0), board, offset)
	if err != nil {
		fmt.Fprintf(stderr, "xspicheck: %v\n", err)
		return exitUsage
	}

	mem := emulator.NewMemory(board.Map)
	rec := new(emulator.Recorder)
	var segments []image.Segment
	b := boot.New(s, mem, rec,
		boot.WithRegionMap(board.Map),
		boot.WithExclusion(board.Exclusion...),
		boot.WithLogger(logger),
		boot.WithChunkSize(chunkSize),
		boot.WithProgress(func(seg image.Segment) {
			segments = append(segments, seg)
		}),
	)
	// Nothing to blink on the host: a done context ends the halt at once.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); err != nil {
		fmt.Fprintf(stdout, "REJECTED  %s\n", board.Name)
		fmt.Fprintf(stdout, "reason    %v\n", err)
		return exitRejected
	}

	launched, _ := rec.Last()
	digest := mem.Digest()
	fmt.Fprintf(stdout, "OK        %s\n", board.Name)
	fmt.Fprintf(stdout, "entry     0x%08X\n", launched.Entry)
	fmt.Fprintf(stdout, "sp        0x%08X\n", launched.StackTop)
	fmt.Fprintf(stdout, "vtor      0x%08X\n", launched.VectorTable)
	for _, seg := range segments {
		fmt.Fprintf(stdout, "segment   %s\n", seg)
	}
	fmt.Fprintf(stdout, "ram       blake3:%s\n", hex.EncodeToString(digest[:]))
	return exitOK
}

func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func loadBoard(name, file string) (layout.Board, error) {
	if file != "" {
		return layout.LoadFile(file)
	}
	board, ok := layout.Named(name)
	if !ok {
		return layout.Board{}, fmt.Errorf("unknown layout %q (have %s)", name, strings.Join(layout.Names(), ", "))
	}
	return board, nil
}

// openImage reads path and windows it to the image. Inputs that do not
// start with the ELF magic are treated as flash dumps.
func openImage(path string, board layout.Board, offset int64) (store.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := store.Bytes(data)
	if offset < 0 {
		offset = 0
		if !bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
			offset = int64(board.Flash.ImageOffset)
		}
	}
	w, err := store.Window(s, offset, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}
