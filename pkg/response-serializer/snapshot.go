package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

const storedAtHeaderName = "Offline-Cache-Stored-At"

// Snapshot is an immutable capture of a response taken at write time.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// The value of the clock when the snapshot was captured.
	StoredAt time.Time
}

// NewSnapshot captures a snapshot with the given status, header and body.
// The header and body are copied.
func NewSnapshot(statusCode int, header http.Header, body []byte) Snapshot {
	if header == nil {
		header = http.Header{}
	}
	return Snapshot{
		StatusCode: statusCode,
		Header:     header.Clone(),
		Body:       bytes.Clone(body),
		StoredAt:   time.Now(),
	}
}

// OK reports whether the status code is in the 2xx range.
func (s Snapshot) OK() bool {
	return s.StatusCode >= 200 && s.StatusCode < 300
}

// Digest identifies snapshots with identical status, headers and body.
// The capture time is not part of the digest.
func (s Snapshot) Digest() string {
	h := xxhash.New()
	fmt.Fprintf(h, "%d\n", s.StatusCode)
	s.Header.Write(h)
	h.Write([]byte("\n"))
	h.Write(s.Body)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Write sends the snapshot to the client.
// Extra headers are added on top of the stored ones.
// A bodiless snapshot keeps its Content-Length, as the response to a HEAD request does.
func (s Snapshot) Write(w http.ResponseWriter, extra http.Header) (int64, error) {
	copyHeader(w.Header(), s.Header)
	copyHeader(w.Header(), extra)
	if len(s.Body) > 0 || w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(s.Body)))
	}
	w.WriteHeader(s.StatusCode)
	n, err := w.Write(s.Body)
	return int64(n), err
}

// SnapshotToBytes returns the HTTP/1.1 representation of the snapshot.
// The capture time travels as an extra header.
func SnapshotToBytes(s Snapshot) ([]byte, error) {
	header := s.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(storedAtHeaderName, strconv.FormatInt(s.StoredAt.Unix(), 10))
	res := &http.Response{
		StatusCode:    s.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToSnapshot parses bytes created by SnapshotToBytes.
func BytesToSnapshot(b []byte) (Snapshot, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}
	if storedAt, err := strconv.ParseInt(res.Header.Get(storedAtHeaderName), 10, 64); err == nil {
		s.StoredAt = time.Unix(storedAt, 0)
	}
	s.Header.Del(storedAtHeaderName)
	// the length is implied by the body
	s.Header.Del("Content-Length")
	return s, nil
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst.Del(k)
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
