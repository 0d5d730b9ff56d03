package fetch

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodedBody reads the decoded stream; Close closes every layer, innermost
// decoder first and body last.
type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// decodeBody unwraps gzip and converts body to UTF-8. Closing the result
// closes body too; on error the caller still owns body.
//
// The charset comes from the Content-Type parameter. A byte order mark
// (UTF-8, UTF-16LE, UTF-16BE) overrides it and is stripped.
//
// Errors:
//   - malformed gzip header
//   - a charset label the encoding index does not know
func decodeBody(body io.ReadCloser, meta bodyMeta) (io.ReadCloser, error) {
	enc, err := charsetOf(meta.contentType)
	if err != nil {
		return nil, err
	}

	var r io.Reader = body
	d := &decodedBody{}
	if meta.gzipped {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		r = zr
		d.closers = append(d.closers, zr)
	}
	d.closers = append(d.closers, body)

	fallback := unicode.UTF8.NewDecoder()
	if enc != nil {
		fallback = enc.NewDecoder()
	}
	d.Reader = transform.NewReader(r, unicode.BOMOverride(fallback))
	return d, nil
}

// charsetOf returns the encoding named by contentType, or nil for UTF-8
// and for content types without a charset parameter.
func charsetOf(contentType string) (encoding.Encoding, error) {
	if strings.TrimSpace(contentType) == "" {
		return nil, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, nil
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return nil, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc, nil
}
