// Package blob loads container files for the codecs, which only ever work on
// in-memory buffers.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	bufra "github.com/avvmoto/buf-readerat"
	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

const readBufferSize = 64 * 1024

// File is a read-only view of a file on disk. The bytes come from a shared
// read-only mapping when the platform allows it and from a heap copy
// otherwise. Slices handed out by Bytes are invalid after Close.
type File struct {
	fpath  string
	data   []byte
	mapped bool
}

func Open(fpath string) (*File, error) {
	f, err := os.OpenFile(fpath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", fpath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat blob %s: %w", fpath, err)
	}
	size := info.Size()
	if size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("blob %s too large: %d bytes", fpath, size)
	}

	this := &File{fpath: fpath}
	if size == 0 {
		return this, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		this.data, this.mapped = data, true
	} else {
		glog.V(2).Infof("Mmap %s failed, reading into memory: %v", fpath, err)
		if this.data, err = ReadAll(f, size); err != nil {
			return nil, fmt.Errorf("read blob %s: %w", fpath, err)
		}
	}
	runtime.SetFinalizer(this, (*File).Close)
	return this, nil
}

func (f *File) Bytes() []byte    { return f.data }
func (f *File) FilePath() string { return f.fpath }
func (f *File) Mapped() bool     { return f.mapped }

func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	var err error
	if f.mapped {
		err = unix.Munmap(f.data)
	}
	f.data, f.mapped = nil, false
	runtime.SetFinalizer(f, nil)
	return err
}

// ReadAll copies the first size bytes of r through a read buffer.
func ReadAll(r io.ReaderAt, size int64) ([]byte, error) {
	if size < 0 {
		return nil, errors.New("negative size")
	}
	data := make([]byte, size)
	br := bufra.NewBufReaderAt(r, readBufferSize)
	if _, err := io.ReadFull(io.NewSectionReader(br, 0, size), data); err != nil {
		return nil, fmt.Errorf("buffered read: %w", err)
	}
	return data, nil
}
