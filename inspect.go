package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/vietanhduong/oclbin/pkg/ar"
	"github.com/vietanhduong/oclbin/pkg/devbin"
	"github.com/vietanhduong/oclbin/pkg/elf"
	"github.com/vietanhduong/oclbin/pkg/magic"
	"gopkg.in/yaml.v3"
)

type report struct {
	File     string         `json:"file" yaml:"file"`
	Size     int            `json:"size" yaml:"size"`
	Kind     magic.Kind     `json:"kind" yaml:"kind"`
	Format   devbin.Format  `json:"format" yaml:"format"`
	Elf      *elfReport     `json:"elf,omitempty" yaml:"elf,omitempty"`
	Members  []memberReport `json:"members,omitempty" yaml:"members,omitempty"`
	Warnings string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type elfReport struct {
	Class    string          `json:"class" yaml:"class"`
	Type     string          `json:"type" yaml:"type"`
	Sections []sectionReport `json:"sections" yaml:"sections"`
	Segments []segmentReport `json:"segments,omitempty" yaml:"segments,omitempty"`
}

type sectionReport struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
}

type segmentReport struct {
	Type   string `json:"type" yaml:"type"`
	Offset uint64 `json:"offset" yaml:"offset"`
	Size   uint64 `json:"size" yaml:"size"`
	Align  uint64 `json:"align" yaml:"align"`
}

type memberReport struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

func runInspect(opts options, w io.Writer) error {
	f, err := openInput(opts.in)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := inspect(opts.in, f.Bytes())
	if err != nil {
		return err
	}
	out, err := encodeReport(r, opts.format)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func inspect(name string, buf []byte) (*report, error) {
	r := &report{
		File:   name,
		Size:   len(buf),
		Kind:   magic.Detect(buf),
		Format: devbin.DetectFormat(buf),
	}
	glog.V(2).Infof("Inspecting %s: kind %s, format %s", name, r.Kind, r.Format)

	switch r.Kind {
	case magic.Elf:
		class := elf.NumBits(buf)
		decoded, warnings, err := elf.Decode(buf, class)
		r.Warnings = warnings
		if err != nil {
			return nil, fmt.Errorf("decode elf: %w", err)
		}
		r.Elf = describeElf(decoded)
	case magic.Ar:
		archive, warnings, err := ar.Decode(buf)
		r.Warnings = warnings
		if err != nil {
			return nil, fmt.Errorf("decode ar: %w", err)
		}
		r.Members = lo.Map(archive.Files, func(entry ar.FileEntry, _ int) memberReport {
			return memberReport{Name: entry.Name, Size: len(entry.Data)}
		})
	}
	return r, nil
}

func describeElf(decoded *elf.Elf) *elfReport {
	return &elfReport{
		Class: decoded.Class.String(),
		Type:  elfTypeName(decoded.FileHeader),
		Sections: lo.Map(decoded.SectionHeaders, func(s elf.SectionData, i int) sectionReport {
			return sectionReport{
				Name:   decoded.SectionName(i),
				Type:   sectionTypeName(s.Header),
				Offset: s.Header.Offset,
				Size:   s.Header.Size,
			}
		}),
		Segments: lo.Map(decoded.ProgramHeaders, func(s elf.SegmentData, _ int) segmentReport {
			return segmentReport{
				Type:   s.Header.Type.String(),
				Offset: s.Header.Offset,
				Size:   s.Header.FileSz,
				Align:  s.Header.Align,
			}
		}),
	}
}

func elfTypeName(header *elf.FileHeader) string {
	switch header.Type {
	case elf.ET_OPENCL_SOURCE:
		return "ET_OPENCL_SOURCE"
	case elf.ET_OPENCL_OBJECTS:
		return "ET_OPENCL_OBJECTS"
	case elf.ET_OPENCL_LIBRARY:
		return "ET_OPENCL_LIBRARY"
	case elf.ET_OPENCL_EXECUTABLE:
		return "ET_OPENCL_EXECUTABLE"
	case elf.ET_OPENCL_DEBUG:
		return "ET_OPENCL_DEBUG"
	}
	return header.Type.String()
}

var openclSectionTypes = map[uint32]string{
	uint32(elf.SHT_OPENCL_SOURCE):               "SHT_OPENCL_SOURCE",
	uint32(elf.SHT_OPENCL_HEADER):               "SHT_OPENCL_HEADER",
	uint32(elf.SHT_OPENCL_LLVM_TEXT):            "SHT_OPENCL_LLVM_TEXT",
	uint32(elf.SHT_OPENCL_LLVM_BINARY):          "SHT_OPENCL_LLVM_BINARY",
	uint32(elf.SHT_OPENCL_LLVM_ARCHIVE):         "SHT_OPENCL_LLVM_ARCHIVE",
	uint32(elf.SHT_OPENCL_DEV_BINARY):           "SHT_OPENCL_DEV_BINARY",
	uint32(elf.SHT_OPENCL_OPTIONS):              "SHT_OPENCL_OPTIONS",
	uint32(elf.SHT_OPENCL_PCH):                  "SHT_OPENCL_PCH",
	uint32(elf.SHT_OPENCL_DEV_DEBUG):            "SHT_OPENCL_DEV_DEBUG",
	uint32(elf.SHT_OPENCL_SPIRV):                "SHT_OPENCL_SPIRV",
	uint32(elf.SHT_OPENCL_NON_COHERENT_ATOMICS): "SHT_OPENCL_NON_COHERENT_ATOMICS",
	uint32(elf.SHT_OPENCL_SPIRV_SC_IDS):         "SHT_OPENCL_SPIRV_SC_IDS",
	uint32(elf.SHT_OPENCL_SPIRV_SC_VALUES):      "SHT_OPENCL_SPIRV_SC_VALUES",
}

func sectionTypeName(header *elf.SectionHeader) string {
	if name, ok := openclSectionTypes[uint32(header.Type)]; ok {
		return name
	}
	return header.Type.String()
}

func encodeReport(r *report, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("json marshal: %w", err)
		}
		return append(out, '\n'), nil
	case "yaml":
		out, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("yaml marshal: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}
