// Package media turns uploaded image files into data URIs that can be
// embedded in a post.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotImage   = errors.New("file is not an image")
	ErrTooLarge   = errors.New("image too large")
	ErrNoFile     = errors.New("no file")
	ErrBadDataURI = errors.New("malformed data URI")
)

// File is an image handed over by a client. ContentType is the declared
// type; when empty it is sniffed from the content.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

type Result struct {
	DataURI string
	Err     error
}

// ReadAsDataURI reads the whole file and encodes it as
// "data:<type>;base64,<payload>". maxBytes <= 0 disables the size check.
func ReadAsDataURI(f File, maxBytes int64) (string, error) {
	if f.Reader == nil {
		return "", ErrNoFile
	}

	declared := baseType(f.ContentType)
	if declared != "" && !isImage(declared) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, declared)
	}

	r := f.Reader
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}

	ctype := declared
	if ctype == "" {
		ctype = baseType(mimetype.Detect(data).String())
		if !isImage(ctype) {
			return "", fmt.Errorf("%w: detected %s", ErrNotImage, ctype)
		}
	}

	var b bytes.Buffer
	b.Grow(len("data:;base64,") + len(ctype) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(ctype)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String(), nil
}

// CheckDataURI accepts only what ReadAsDataURI produces: a base64
// "data:image/..." URI whose payload is at most maxBytes (<= 0 disables the
// size check).
func CheckDataURI(uri string, maxBytes int64) error {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ErrBadDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ErrBadDataURI
	}
	ctype, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return ErrBadDataURI
	}
	if ctype = baseType(ctype); !isImage(ctype) {
		return fmt.Errorf("%w: %s", ErrNotImage, ctype)
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}
	return nil
}

// Ingest reads f in the background. The channel yields exactly one Result
// and is then closed.
func Ingest(f File, maxBytes int64) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		uri, err := ReadAsDataURI(f, maxBytes)
		ch <- Result{DataURI: uri, Err: err}
	}()
	return ch
}

func baseType(ct string) string {
	if ct == "" {
		return ""
	}
	if t, _, err := mime.ParseMediaType(ct); err == nil {
		return t
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func isImage(ct string) bool {
	return strings.HasPrefix(ct, "image/")
}
