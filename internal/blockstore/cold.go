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
// cold.go moves blocks between the hot (raw Arrow IPC) and cold
// (xz-compressed) tiers. Blocks referenced only by old retained
// versions are read rarely enough that trading decode latency for
// storage is worth it; xz beats lz4 by a wide margin on Arrow's
// highly repetitive offset buffers.
package blockstore

import (
	"bytes"
	"context"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/objectstore"
)

// coldSuffix marks an archived block object.
const coldSuffix = ".xz"

// CompressCold xz-compresses a block's encoded IPC bytes.
func CompressCold(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "blockstore.CompressCold", "init xz writer", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "blockstore.CompressCold", "compress block body", err)
	}
	if err := w.Close(); err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "blockstore.CompressCold", "finish xz stream", err)
	}
	return buf.Bytes(), nil
}

// DecompressCold reverses CompressCold.
func DecompressCold(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "blockstore.DecompressCold", "init xz reader", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "blockstore.DecompressCold", "decompress block body", err)
	}
	return out, nil
}

// ArchiveBlock rewrites the block at key as an xz-compressed cold
// object at key+".xz" and removes the hot object. Archiving an
// already-archived key is an error surfaced from the store's Get.
func ArchiveBlock(ctx context.Context, store objectstore.Store, key string) error {
	data, _, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	compressed, err := CompressCold(data)
	if err != nil {
		return err
	}
	if _, err := store.Put(ctx, key+coldSuffix, compressed); err != nil {
		return err
	}
	return store.Delete(ctx, key)
}

// RestoreBlock reverses ArchiveBlock, materializing the hot object
// again and removing the cold one.
func RestoreBlock(ctx context.Context, store objectstore.Store, key string) error {
	compressed, _, err := store.Get(ctx, key+coldSuffix)
	if err != nil {
		return err
	}
	data, err := DecompressCold(compressed)
	if err != nil {
		return err
	}
	if _, err := store.Put(ctx, key, data); err != nil {
		return err
	}
	return store.Delete(ctx, key+coldSuffix)
}
