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
//go:build ceph

package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephConfig identifies the RADOS cluster, pool and credentials.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// etagXattr is the xattr key this store uses to emulate an S3-style
// ETag. RADOS has no built-in content-ETag concept, so CephStore
// stores a content hash alongside the object and treats it as a
// best-effort condition: a write and its guard xattr update are two
// ops, not one atomic compound op, so a racing writer can in theory
// slip between them. The WAL manifest manager does not re-read the
// manifest after a rejected compare-and-swap on any backend: it fails
// the staged batch with ErrLogContentionDurable.
const etagXattr = "vectorcore.etag"

// CephStore is an object store over a RADOS pool: lazy connect in
// ensureOpen, objects named <prefix>/<key>.
type CephStore struct {
	cfg CephConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

// NewCephStore builds a Store over the given RADOS pool. The
// connection is established lazily on first use.
func NewCephStore(cfg CephConfig) *CephStore {
	return &CephStore{cfg: cfg}
}

func (s *CephStore) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	conn, err := rados.NewConnWithClusterAndUser(s.cfg.ClusterName, s.cfg.UserName)
	if err != nil {
		return err
	}
	if s.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(s.cfg.ConfFile); err != nil {
			return err
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	ioctx, err := conn.OpenIOContext(s.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return err
	}
	s.conn = conn
	s.ioctx = ioctx
	s.opened = true
	return nil
}

func (s *CephStore) obj(key string) string {
	return path.Join(strings.TrimSuffix(s.cfg.Prefix, "/"), key)
}

func etagOfCeph(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func (s *CephStore) Get(_ context.Context, key string) ([]byte, string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, "", err
	}
	obj := s.obj(key)
	stat, err := s.ioctx.Stat(obj)
	if err != nil {
		return nil, "", ErrNotFound
	}
	data := make([]byte, stat.Size)
	n, err := s.ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, "", err
	}
	data = data[:n]
	etag, _ := s.readEtag(obj)
	if etag == "" {
		etag = etagOfCeph(data)
	}
	return data, etag, nil
}

func (s *CephStore) readEtag(obj string) (string, error) {
	buf := make([]byte, 64)
	n, err := s.ioctx.GetXattr(obj, etagXattr, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (s *CephStore) writeObject(obj string, data []byte) (string, error) {
	if err := s.ioctx.WriteFull(obj, data); err != nil {
		return "", err
	}
	etag := etagOfCeph(data)
	if err := s.ioctx.SetXattr(obj, etagXattr, []byte(etag)); err != nil {
		return "", err
	}
	return etag, nil
}

func (s *CephStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	return s.writeObject(s.obj(key), data)
}

func (s *CephStore) PutIfAbsent(_ context.Context, key string, data []byte) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	obj := s.obj(key)
	if _, err := s.ioctx.Stat(obj); err == nil {
		existingEtag, _ := s.readEtag(obj)
		if existingEtag == etagOfCeph(data) {
			return existingEtag, nil
		}
		return "", ErrPrecondition
	}
	return s.writeObject(obj, data)
}

func (s *CephStore) PutIfMatch(_ context.Context, key string, data []byte, etag string) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	obj := s.obj(key)
	if _, err := s.ioctx.Stat(obj); err != nil {
		return "", ErrPrecondition
	}
	current, _ := s.readEtag(obj)
	if current != etag {
		return "", ErrPrecondition
	}
	return s.writeObject(obj, data)
}

func (s *CephStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	if err := s.ensureOpen(); err != nil {
		return ObjectMeta{}, err
	}
	obj := s.obj(key)
	stat, err := s.ioctx.Stat(obj)
	if err != nil {
		return ObjectMeta{}, ErrNotFound
	}
	etag, _ := s.readEtag(obj)
	return ObjectMeta{Key: key, ETag: etag, Size: int64(stat.Size)}, nil
}

func (s *CephStore) List(_ context.Context, prefix string) ([]ObjectMeta, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	iter, err := s.ioctx.Iter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	full := s.obj(prefix)
	var out []ObjectMeta
	for iter.Next() {
		name := iter.Value()
		if !strings.HasPrefix(name, full) {
			continue
		}
		stat, err := s.ioctx.Stat(name)
		if err != nil {
			continue
		}
		etag, _ := s.readEtag(name)
		key := strings.TrimPrefix(name, strings.TrimSuffix(s.cfg.Prefix, "/")+"/")
		out = append(out, ObjectMeta{Key: key, ETag: etag, Size: int64(stat.Size)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *CephStore) Delete(_ context.Context, key string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	err := s.ioctx.Delete(s.obj(key))
	if err != nil && err != rados.ErrNotFound {
		return err
	}
	return nil
}

func (s *CephStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	data, _, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
