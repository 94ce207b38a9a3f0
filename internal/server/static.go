package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// fileOnlyFS serves regular files and hides everything else. Directories
// (so http.FileServer never renders a listing) and dot files (the avatar
// store's in-progress temp files) answer 404.
type fileOnlyFS struct {
	root http.FileSystem
}

func (f fileOnlyFS) Open(name string) (http.File, error) {
	if strings.HasPrefix(path.Base(name), ".") {
		return nil, fs.ErrNotExist
	}

	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// fileServer serves dir under prefix, files only.
//
// http.StripPrefix removes prefix before the lookup, so
// GET /static/css/style.css → serves {dir}/css/style.css
func fileServer(prefix, dir string) http.Handler {
	return http.StripPrefix(prefix+"/", http.FileServer(fileOnlyFS{root: http.Dir(dir)}))
}
