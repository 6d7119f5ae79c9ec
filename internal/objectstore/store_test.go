/*
Copyright (C) 2026  vectorcore contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package objectstore

import (
	"context"
	"errors"
	"io"
	"testing"
)

// stores returns one instance of every Store implementation this test
// should exercise identically. CephStore is excluded: it needs a live
// RADOS cluster and is only built under the ceph tag.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	posix, err := NewPosixStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPosixStore: %v", err)
	}
	return map[string]Store{
		"mem":   NewMemStore(),
		"posix": posix,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			etag, err := s.Put(ctx, "a/b.bin", []byte("hello"))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if etag == "" {
				t.Fatal("expected non-empty etag")
			}
			data, gotEtag, err := s.Get(ctx, "a/b.bin")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(data) != "hello" {
				t.Errorf("got %q, want %q", data, "hello")
			}
			if gotEtag != etag {
				t.Errorf("etag mismatch: got %s, want %s", gotEtag, etag)
			}
		})
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPutIfAbsentRejectsDivergentContent(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.PutIfAbsent(ctx, "manifest", []byte("v1")); err != nil {
				t.Fatalf("first PutIfAbsent: %v", err)
			}
			if _, err := s.PutIfAbsent(ctx, "manifest", []byte("v2")); !errors.Is(err, ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition on divergent content, got %v", err)
			}
			// identical content is a benign race, not an error.
			if _, err := s.PutIfAbsent(ctx, "manifest", []byte("v1")); err != nil {
				t.Fatalf("identical-content PutIfAbsent should succeed, got %v", err)
			}
		})
	}
}

func TestPutIfMatchCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			etag, err := s.Put(ctx, "manifest", []byte("v1"))
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := s.PutIfMatch(ctx, "manifest", []byte("v2"), "stale-etag"); !errors.Is(err, ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition on stale etag, got %v", err)
			}
			newEtag, err := s.PutIfMatch(ctx, "manifest", []byte("v2"), etag)
			if err != nil {
				t.Fatalf("PutIfMatch with correct etag: %v", err)
			}
			data, _, err := s.Get(ctx, "manifest")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(data) != "v2" {
				t.Errorf("got %q, want v2", data)
			}
			if newEtag == etag {
				t.Error("expected etag to change after successful swap")
			}
		})
	}
}

func TestListReturnsSortedPrefixMatches(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"logs/b", "logs/a", "other/c"} {
				if _, err := s.Put(ctx, k, []byte("x")); err != nil {
					t.Fatalf("Put %s: %v", k, err)
				}
			}
			got, err := s.List(ctx, "logs/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 entries under logs/, got %d", len(got))
			}
			if got[0].Key != "logs/a" || got[1].Key != "logs/b" {
				t.Errorf("expected sorted [logs/a logs/b], got %v", got)
			}
		})
	}
}

func TestReaderStreamsBody(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, "stream", []byte("streamed-body")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			rc, err := s.Reader(ctx, "stream")
			if err != nil {
				t.Fatalf("Reader: %v", err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(data) != "streamed-body" {
				t.Errorf("got %q, want streamed-body", data)
			}
		})
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, "gone", []byte("x")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Delete(ctx, "gone"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "gone"); err != nil {
				t.Fatalf("Delete on missing key should be a no-op, got %v", err)
			}
			if _, _, err := s.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}
