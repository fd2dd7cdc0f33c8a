package serializer

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSnapshotSerialization(t *testing.T) {
	header := http.Header{}
	header.Add("Content-Type", "image/png")
	header.Add("Test", "-ing")
	snap := NewSnapshot(201, header, []byte("This is the body"))
	snap.StoredAt = time.Unix(1700000000, 0)

	bts, err := SnapshotToBytes(snap)
	if err != nil {
		t.Fatalf("Error creating bytes: %+v", err)
	}
	res, err := BytesToSnapshot(bts)
	if err != nil {
		t.Fatalf("Error creating snapshot: %+v", err)
	}
	if res.StatusCode != 201 {
		t.Fatalf("Status is %d", res.StatusCode)
	}
	if res.Header.Get("Test") != "-ing" || res.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("Headers wrong %+v", res.Header)
	}
	if res.Header.Get(storedAtHeaderName) != "" {
		t.Fatalf("Internal header leaked %+v", res.Header)
	}
	if string(res.Body) != "This is the body" {
		t.Fatalf("Body: %s", res.Body)
	}
	if !res.StoredAt.Equal(snap.StoredAt) {
		t.Fatalf("Stored at %s, expected %s", res.StoredAt, snap.StoredAt)
	}
	if res.Digest() != snap.Digest() {
		t.Fatalf("Digest changed in round trip")
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	header := http.Header{"X": []string{"1"}}
	body := []byte("abc")
	snap := NewSnapshot(200, header, body)
	header.Set("X", "2")
	body[0] = 'z'
	if snap.Header.Get("X") != "1" || string(snap.Body) != "abc" {
		t.Fatalf("Snapshot changed with its input: %+v %s", snap.Header, snap.Body)
	}
}

func TestDigestIgnoresCaptureTime(t *testing.T) {
	a := NewSnapshot(200, nil, []byte("same"))
	b := NewSnapshot(200, nil, []byte("same"))
	b.StoredAt = a.StoredAt.Add(time.Hour)
	if a.Digest() != b.Digest() {
		t.Fatal("Digest depends on capture time")
	}
	c := NewSnapshot(200, nil, []byte("other"))
	if a.Digest() == c.Digest() {
		t.Fatal("Digest ignores body")
	}
}

func TestSnapshotWrite(t *testing.T) {
	snap := NewSnapshot(http.StatusTeapot, http.Header{"Content-Type": []string{"text/plain"}}, []byte("short"))
	rr := httptest.NewRecorder()
	if _, err := snap.Write(rr, http.Header{"Cache-Status": []string{"test"}}); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("Status is %d", rr.Code)
	}
	if rr.Header().Get("Cache-Status") != "test" || rr.Header().Get("Content-Length") != "5" {
		t.Fatalf("Headers %+v", rr.Header())
	}
	if rr.Body.String() != "short" {
		t.Fatalf("Body is %s", rr.Body.String())
	}
}

func TestSnapshotWriteWithoutBody(t *testing.T) {
	head := NewSnapshot(http.StatusOK, http.Header{"Content-Length": []string{"4096"}}, nil)
	rr := httptest.NewRecorder()
	if _, err := head.Write(rr, nil); err != nil {
		t.Fatal(err)
	}
	if rr.Header().Get("Content-Length") != "4096" {
		t.Fatalf("Content-Length is %s", rr.Header().Get("Content-Length"))
	}

	// a stale length never outlives a body
	snap := NewSnapshot(http.StatusOK, http.Header{"Content-Length": []string{"4096"}}, []byte("short"))
	rr = httptest.NewRecorder()
	if _, err := snap.Write(rr, nil); err != nil {
		t.Fatal(err)
	}
	if rr.Header().Get("Content-Length") != "5" {
		t.Fatalf("Content-Length is %s", rr.Header().Get("Content-Length"))
	}

	empty := NewSnapshot(http.StatusNoContent, nil, nil)
	rr = httptest.NewRecorder()
	if _, err := empty.Write(rr, nil); err != nil {
		t.Fatal(err)
	}
	if rr.Header().Get("Content-Length") != "0" {
		t.Fatalf("Content-Length is %s", rr.Header().Get("Content-Length"))
	}
}

func TestOK(t *testing.T) {
	for status, ok := range map[int]bool{200: true, 204: true, 299: true, 301: false, 404: false, 503: false} {
		if NewSnapshot(status, nil, nil).OK() != ok {
			t.Fatalf("OK() wrong for %d", status)
		}
	}
}
