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
package cachemgr

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// BoundedMap is a small count-bounded LRU used where a byte-weighted
// Manager would be overkill: the FTS candidate-block cache, which is
// bounded by entry count rather than by resident bytes.
type BoundedMap[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

// NewBoundedMap returns a BoundedMap holding at most capacity entries.
func NewBoundedMap[K comparable, V any](capacity int) (*BoundedMap[K, V], error) {
	c, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}
	return &BoundedMap[K, V]{cache: c}, nil
}

func (b *BoundedMap[K, V]) Get(key K) (V, bool) {
	return b.cache.Get(key)
}

func (b *BoundedMap[K, V]) Add(key K, value V) {
	b.cache.Add(key, value)
}

func (b *BoundedMap[K, V]) Remove(key K) {
	b.cache.Remove(key)
}

func (b *BoundedMap[K, V]) Len() int {
	return b.cache.Len()
}

// Purge drops every entry.
func (b *BoundedMap[K, V]) Purge() {
	b.cache.Purge()
}
