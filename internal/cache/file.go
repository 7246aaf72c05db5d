package cache

import (
	"io"
	"os"
)

// file is the backing store for a database: a single os.File addressed in
// whole-page units. Page numbers are 1-based, matching the file format;
// page 1 occupies bytes [0, pageSize) and itself contains the 100-byte file
// header prefix.
type file struct {
	f          *os.File
	pageSize   int
	totalPages int
}

// openFile opens or creates path. isNew reports whether the file was empty
// (a brand new database) at open time.
func openFile(path string, pageSize int) (fl *file, isNew bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	totalPages := 0
	if info.Size() > 0 {
		totalPages = int(info.Size() / int64(pageSize))
	}
	return &file{f: f, pageSize: pageSize, totalPages: totalPages}, totalPages == 0, nil
}

func (fl *file) offset(page int) int64 {
	return int64(page-1) * int64(fl.pageSize)
}

// readPage returns the raw bytes of page. Reading a page number beyond the
// current end of file returns a zero-filled page and no error: callers rely
// on this to provision a root page before any leaves exist under it.
func (fl *file) readPage(page int) ([]byte, error) {
	data := make([]byte, fl.pageSize)
	n, err := fl.f.ReadAt(data, fl.offset(page))
	if err != nil && err != io.EOF {
		return nil, err
	}
	_ = n
	return data, nil
}

// writePage writes data (exactly pageSize bytes) to page, growing the
// file's tracked page count if this extends it.
func (fl *file) writePage(page int, data []byte) error {
	if _, err := fl.f.WriteAt(data, fl.offset(page)); err != nil {
		return err
	}
	if page > fl.totalPages {
		fl.totalPages = page
	}
	return nil
}

func (fl *file) sync() error {
	return fl.f.Sync()
}

func (fl *file) close() error {
	return fl.f.Close()
}
