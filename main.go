package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/vietanhduong/oclbin/pkg/ar"
	"github.com/vietanhduong/oclbin/pkg/blob"
	"github.com/vietanhduong/oclbin/pkg/devbin"
	"github.com/vietanhduong/oclbin/pkg/magic"
	"github.com/vietanhduong/oclbin/pkg/strref"
	"github.com/xyproto/env/v2"
)

type options struct {
	mode    string
	in      string
	out     string
	outdir  string
	product string
	format  string
	pad8    bool

	spirv     string
	llvm      string
	bin       string
	debug     string
	buildOpts string
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "inspect", "One of pack, unpack, inspect, ar")
	flag.StringVar(&opts.in, "in", "", "Input container")
	flag.StringVar(&opts.out, "out", "", "Output file")
	flag.StringVar(&opts.outdir, "outdir", ".", "Output directory for unpacked fields")
	flag.StringVar(&opts.product, "product", env.Str("OCLBIN_PRODUCT"), "Product abbreviation used to pick a fat binary member")
	flag.StringVar(&opts.format, "o", env.Str("OCLBIN_OUTPUT_FORMAT", "json"), "Inspect report format: json or yaml")
	flag.BoolVar(&opts.pad8, "pad8", env.Bool("OCLBIN_AR_PAD8"), "Align archive members to 8 bytes")
	flag.StringVar(&opts.spirv, "spirv", "", "SPIR-V module to pack")
	flag.StringVar(&opts.llvm, "llvm", "", "LLVM bitcode module to pack")
	flag.StringVar(&opts.bin, "bin", "", "Native device binary to pack")
	flag.StringVar(&opts.debug, "debug", "", "Device debug data to pack")
	flag.StringVar(&opts.buildOpts, "options", "", "Build options to pack")
	flag.Parse()
	defer glog.Flush()

	var err error
	switch opts.mode {
	case "pack":
		err = runPack(opts)
	case "unpack":
		err = runUnpack(opts)
	case "inspect":
		err = runInspect(opts, os.Stdout)
	case "ar":
		err = runAr(opts, flag.Args())
	default:
		err = fmt.Errorf("unknown mode %q", opts.mode)
	}
	if err != nil {
		glog.Errorf("%s: %v", opts.mode, err)
		glog.Flush()
		os.Exit(1)
	}
}

func runPack(opts options) error {
	if opts.out == "" {
		return fmt.Errorf("no output file is specified")
	}
	if opts.spirv != "" && opts.llvm != "" {
		return fmt.Errorf("-spirv and -llvm are mutually exclusive")
	}

	var bin devbin.SingleDeviceBinary
	var err error
	if bin.IntermediateRepresentation, err = readOptional(opts.spirv + opts.llvm); err != nil {
		return err
	}
	if bin.DeviceBinary, err = readOptional(opts.bin); err != nil {
		return err
	}
	if bin.DebugData, err = readOptional(opts.debug); err != nil {
		return err
	}
	bin.BuildOptions = strref.FromLiteral(opts.buildOpts)

	packed, err := devbin.PackOclElf(bin)
	if err != nil {
		return fmt.Errorf("pack ocl elf: %w", err)
	}
	if err = os.WriteFile(opts.out, packed, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	glog.Infof("Packed %d bytes into %s", len(packed), opts.out)
	return nil
}

func runUnpack(opts options) error {
	f, err := openInput(opts.in)
	if err != nil {
		return err
	}
	defer f.Close()

	bin, warnings, err := devbin.Unpack(f.Bytes(), opts.product, devbin.TargetDevice{}, nil)
	logWarnings(warnings)
	switch {
	case errors.Is(err, devbin.ErrUnusableBinary):
		glog.Warningf("Native binary in %s is unusable, writing remaining fields: %v", opts.in, err)
	case err != nil:
		return fmt.Errorf("unpack %s: %w", opts.in, err)
	}
	glog.Infof("Unpacked %s as %s", opts.in, bin.Format)

	if err = os.MkdirAll(opts.outdir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", opts.outdir, err)
	}
	for name, data := range unpackedFiles(bin) {
		fpath := filepath.Join(opts.outdir, name)
		if err = os.WriteFile(fpath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", fpath, err)
		}
		glog.Infof("Wrote %d bytes to %s", len(data), fpath)
	}
	return nil
}

func runAr(opts options, files []string) error {
	if opts.out == "" {
		return fmt.Errorf("no output file is specified")
	}
	encoder := ar.NewEncoder(opts.pad8)
	for _, fpath := range files {
		data, err := os.ReadFile(fpath)
		if err != nil {
			return fmt.Errorf("read %s: %w", fpath, err)
		}
		name := strings.TrimSuffix(filepath.Base(fpath), filepath.Ext(fpath))
		if encoder.AppendFileEntry(name, data) == nil {
			return fmt.Errorf("invalid archive member name %q (1-%d characters)", name, ar.MAX_FILE_NAME_LENGTH)
		}
	}
	packed := encoder.Encode()
	if err := os.WriteFile(opts.out, packed, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	glog.Infof("Archived %d files into %s", len(files), opts.out)
	return nil
}

func unpackedFiles(bin devbin.SingleDeviceBinary) map[string][]byte {
	ret := make(map[string][]byte)
	if ir := bin.IntermediateRepresentation; len(ir) > 0 {
		name := "ir.bc"
		if magic.IsSpirV(ir) {
			name = "ir.spv"
		}
		ret[name] = ir
	}
	if len(bin.DeviceBinary) > 0 {
		ret["device.bin"] = bin.DeviceBinary
	}
	if len(bin.DebugData) > 0 {
		ret["debug.bin"] = bin.DebugData
	}
	if !bin.BuildOptions.Empty() {
		ret["options.txt"] = bin.BuildOptions.Bytes()
	}
	return ret
}

func openInput(fpath string) (*blob.File, error) {
	if fpath == "" {
		return nil, fmt.Errorf("no input file is specified")
	}
	return blob.Open(fpath)
}

func readOptional(fpath string) ([]byte, error) {
	if fpath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fpath, err)
	}
	return data, nil
}

func logWarnings(warnings string) {
	for _, line := range strings.Split(strings.TrimSuffix(warnings, "\n"), "\n") {
		if line != "" {
			glog.Warningf("%s", line)
		}
	}
}
