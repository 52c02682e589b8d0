package server

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// negotiateEncoding picks a content coding from an Accept-Encoding header.
// Brotli wins over gzip.  A coding named explicitly takes its own weight, so
// "br;q=0, *" refuses brotli while "*" still admits gzip.  An empty result
// means the body is sent as is.
func negotiateEncoding(header string) string {
	accepted := map[string]bool{} // explicitly named codings
	wildcard := false
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "x-gzip" {
			name = encodingGzip
		}
		ok := !qualityZero(params)
		switch name {
		case "*":
			wildcard = ok
		case encodingBrotli, encodingGzip:
			// A refusal sticks even if the coding is listed again.
			if prev, seen := accepted[name]; !seen || prev {
				accepted[name] = ok
			}
		}
	}

	for _, coding := range []string{encodingBrotli, encodingGzip} {
		if ok, seen := accepted[coding]; ok || (!seen && wildcard) {
			return coding
		}
	}
	return ""
}

func qualityZero(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q == 0
	}
	return false
}

// encodeBody compresses body with the given content coding.
func encodeBody(coding string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch coding {
	case encodingBrotli:
		w = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	case encodingGzip:
		gw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
		if err != nil {
			return nil, err
		}
		w = gw
	default:
		return nil, fmt.Errorf("server: unsupported content coding %q", coding)
	}

	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
