package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
)

// DirSource serves files from a file system, normally os.DirFS of the
// configured static directory.
type DirSource struct {
	fsys fs.FS
}

// NewDirSource serves files below dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{fsys: os.DirFS(dir)}
}

// NewFSSource serves files from fsys.
func NewFSSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

// Open implements Source. A directory resolves to its index file.
func (d *DirSource) Open(_ context.Context, name string) (*Object, error) {
	if !fs.ValidPath(name) {
		return nil, ErrForbidden
	}

	f, info, err := d.open(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		name = path.Join(name, IndexFile)
		if f, info, err = d.open(name); err != nil {
			return nil, err
		}
		if info.IsDir() {
			f.Close()
			return nil, ErrNotFound
		}
	}

	return &Object{
		Body:        f,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: ContentType(name),
	}, nil
}

func (d *DirSource) open(name string) (fs.File, fs.FileInfo, error) {
	f, err := d.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}
