//go:build linux || darwin

// Package mmap provides read-only memory-mapped access to track files. Every
// Reader owns its mapping, so handles on the same file are independent.
package mmap

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// Advice describes the expected access pattern of a mapping.
type Advice int

const (
	// AdviceNormal is the kernel default.
	AdviceNormal Advice = iota
	// AdviceSequential favors read-ahead.
	AdviceSequential
	// AdviceRandom disables read-ahead, which suits index-driven queries.
	AdviceRandom
)

// Reader is a read-only mapping of a whole file.
type Reader struct {
	file     *os.File
	data     []byte
	fileSize int64
	pageSize int

	prefetch bool

	bytesRead int64
	pagesRead int64

	mu sync.RWMutex
}

// NewReader maps filename read-only. Empty files produce a Reader with no
// data.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", filename)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file")
	}

	r := &Reader{
		file:     file,
		fileSize: stat.Size(),
		pageSize: os.Getpagesize(),
	}
	if r.fileSize == 0 {
		return r, nil
	}

	r.data, err = unix.Mmap(int(file.Fd()), 0, int(r.fileSize), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").
			WithDetail("path", filename)
	}
	return r, nil
}

// Advise tells the kernel how the mapping will be read. WillNeed prefetching
// of requested ranges is enabled for sequential access.
func (r *Reader) Advise(a Advice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefetch = a == AdviceSequential
	if len(r.data) == 0 {
		return nil
	}
	flag := unix.MADV_NORMAL
	switch a {
	case AdviceSequential:
		flag = unix.MADV_SEQUENTIAL
	case AdviceRandom:
		flag = unix.MADV_RANDOM
	}
	if err := unix.Madvise(r.data, flag); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "madvise failed")
	}
	return nil
}

// Len returns the size of the mapped file.
func (r *Reader) Len() int64 {
	return r.fileSize
}

// ReadRange returns the bytes [offset, offset+length), clipped to the end of
// the file. The slice aliases the mapping and is invalid after Close.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil, errors.New(errors.ErrorTypeClosed, "mapping is closed")
	}
	if offset < 0 || offset >= r.fileSize || length < 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "range %d+%d out of [0, %d)", offset, length, r.fileSize)
	}

	end := offset + length
	if end > r.fileSize {
		end = r.fileSize
	}
	if r.prefetch {
		r.prefetchRange(offset, end)
	}

	r.bytesRead += end - offset
	r.pagesRead += ((end - offset) + int64(r.pageSize) - 1) / int64(r.pageSize)

	return r.data[offset:end], nil
}

// prefetchRange advises kernel to prefetch a range of pages
func (r *Reader) prefetchRange(start, end int64) {
	startPage := (start / int64(r.pageSize)) * int64(r.pageSize)
	endPage := ((end + int64(r.pageSize) - 1) / int64(r.pageSize)) * int64(r.pageSize)
	if endPage > r.fileSize {
		endPage = r.fileSize
	}
	if endPage <= startPage {
		return
	}
	_ = unix.Madvise(r.data[startPage:endPage], unix.MADV_WILLNEED)
}

// Stats returns reading statistics
func (r *Reader) Stats() (bytesRead, pagesRead int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bytesRead, r.pagesRead
}

// Close unmaps the file and closes it. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close mapping")
	}
	return nil
}
