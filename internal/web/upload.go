package web

import (
	"fmt"
	"io"
	"mime"
	"net/http"
)

// upload is a request body opened as a CSV source. Closing it closes the
// request body, which also discards any unread multipart parts.
type upload struct {
	io.Reader
	body io.Closer
	name string
	size int64 // -1 when unknown
}

func (u *upload) Close() error {
	return u.body.Close()
}

// openUpload returns the CSV carried by r without buffering it. A
// multipart/form-data request must carry the file in a part named "file";
// any other content type is taken as the raw CSV. The body is limited to the
// configured maximum file size.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload.csv"
		}
		return &upload{Reader: r.Body, body: r.Body, name: name, size: r.ContentLength}, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		r.Body.Close()
		return nil, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			r.Body.Close()
			return nil, fmt.Errorf("%w: no file part", errBadUpload)
		}
		if err != nil {
			r.Body.Close()
			return nil, fmt.Errorf("%w: %v", errBadUpload, err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		name := part.FileName()
		if name == "" {
			name = "upload.csv"
		}
		// Part sizes are not known up front; progress stays at zero.
		return &upload{Reader: part, body: r.Body, name: name, size: -1}, nil
	}
}
