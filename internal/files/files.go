package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid range")

type byteRange struct {
	start int64
	end   int64
}

func (br byteRange) length() int64 {
	return br.end - br.start + 1
}

// parseRange parses a single "bytes=<start>-<end>" range against a resource
// of the given size. ok is false when the header should be ignored and the
// full resource served. A parsed range that cannot be satisfied returns
// ErrInvalidRange.
func parseRange(header string, size int64) (br byteRange, ok bool, err error) {
	ranges, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(ranges, ",") {
		return byteRange{}, false, nil
	}

	startStr, endStr, found := strings.Cut(ranges, "-")
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)
	if !found || startStr == "" {
		return byteRange{}, false, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false, nil
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return byteRange{}, false, nil
		}
	}

	if start > end || start >= size {
		return byteRange{}, true, ErrInvalidRange
	}
	if end >= size {
		end = size - 1
	}

	return byteRange{start: start, end: end}, true, nil
}

// ServeContent writes content honouring a single byte range request.
func ServeContent(w http.ResponseWriter, r *http.Request, content io.ReadSeeker, size int64) error {
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		return writeFull(w, content, size)
	}

	br, ok, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if !ok {
		return writeFull(w, content, size)
	}

	if _, err := content.Seek(br.start, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(br.length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.CopyN(w, content, br.length()); err != nil {
		return fmt.Errorf("copy range: %w", err)
	}

	return nil
}

func writeFull(w http.ResponseWriter, content io.ReadSeeker, size int64) error {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.CopyN(w, content, size); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	return nil
}

// Handler serves downloads from a file system by stable name.
type Handler struct {
	log  *log.Logger
	root http.FileSystem
}

func NewHandler(logger *log.Logger, root http.FileSystem) *Handler {
	return &Handler{log: logger, root: root}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || strings.Contains(name, "/") || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}

	f, err := h.root.Open("/" + name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.Printf("open %q: %v", name, err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	if err := ServeContent(w, r, f, info.Size()); err != nil {
		h.log.Printf("serve %q: %v", name, err)
	}
}
