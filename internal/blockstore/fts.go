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
// fts.go implements the full-text candidate-selection layer: a
// trigram (3,3) tokenizer over documents, stored as (ngram -> sorted
// document offsets) rows in a blockstore block, plus a small regex
// literal extractor so phase-1 candidate selection only needs to ask
// the blockstore "which documents contain this literal" rather than
// evaluate the regex against every document.
package blockstore

import (
	"regexp/syntax"
	"sort"

	"github.com/launix-de/vectorcore/internal/cachemgr"
)

// Trigrams returns the distinct 3-grams of s in order of first
// occurrence. Documents shorter than 3 runes contribute the whole
// string as a single token.
func Trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i+3 <= len(runes); i++ {
		g := string(runes[i : i+3])
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// FTSIndex maps an ngram to the sorted list of document offsets
// containing it. In production this is backed by blockstore rows
// (prefix="fts", key=ngram, value=encoded offset list); this type is
// the in-process view built from or flushed to those rows.
type FTSIndex struct {
	postings map[string][]uint64

	// candidates memoizes CandidatesForRegex per pattern; invalidated
	// wholesale on every AddDocument since any new document can join
	// any pattern's candidate set.
	candidates *cachemgr.BoundedMap[string, []uint64]
}

const regexCandidateCacheSize = 256

// NewFTSIndex returns an empty index.
func NewFTSIndex() *FTSIndex {
	cache, _ := cachemgr.NewBoundedMap[string, []uint64](regexCandidateCacheSize)
	return &FTSIndex{postings: make(map[string][]uint64), candidates: cache}
}

// AddDocument tokenizes text into trigrams and records offset against
// each.
func (f *FTSIndex) AddDocument(offset uint64, text string) {
	f.candidates.Purge()
	for _, g := range Trigrams(text) {
		postings := f.postings[g]
		i := sort.Search(len(postings), func(i int) bool { return postings[i] >= offset })
		if i < len(postings) && postings[i] == offset {
			continue
		}
		postings = append(postings, 0)
		copy(postings[i+1:], postings[i:])
		postings[i] = offset
		f.postings[g] = postings
	}
}

// DocumentsContaining returns the sorted offsets of documents whose
// trigram set includes literal's trigrams (a necessary, not
// sufficient, condition: the caller still confirms with the actual
// regex before returning a document as a match).
func (f *FTSIndex) DocumentsContaining(literal string) []uint64 {
	grams := Trigrams(literal)
	if len(grams) == 0 {
		return nil
	}
	result := f.postings[grams[0]]
	for _, g := range grams[1:] {
		result = intersect(result, f.postings[g])
		if len(result) == 0 {
			break
		}
	}
	out := make([]uint64, len(result))
	copy(out, result)
	return out
}

func intersect(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func union(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// CandidatesForRegex compiles pattern and walks its literal-extracted
// syntax tree, combining leaf literal lookups with intersection for
// conjunctions (concatenation) and union for alternations, the same
// phase-1 candidate-narrowing shape the blockstore's literal index is
// built for.
func (f *FTSIndex) CandidatesForRegex(pattern string) ([]uint64, error) {
	if cached, ok := f.candidates.Get(pattern); ok {
		return cached, nil
	}
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, err
	}
	re = re.Simplify()
	out := f.candidatesForNode(re)
	if out != nil {
		f.candidates.Add(pattern, out)
	}
	return out, nil
}

func (f *FTSIndex) candidatesForNode(re *syntax.Regexp) []uint64 {
	switch re.Op {
	case syntax.OpLiteral:
		if len(re.Rune) < 3 {
			// too short to map onto trigram postings; cannot narrow.
			return nil
		}
		return f.DocumentsContaining(string(re.Rune))
	case syntax.OpConcat:
		var result []uint64
		first := true
		for _, sub := range re.Sub {
			c := f.candidatesForNode(sub)
			if c == nil {
				continue
			}
			if first {
				result = c
				first = false
				continue
			}
			result = intersect(result, c)
		}
		return result
	case syntax.OpAlternate:
		var result []uint64
		for _, sub := range re.Sub {
			c := f.candidatesForNode(sub)
			if c == nil {
				// one unfilterable branch makes the whole alternation
				// unfilterable.
				return nil
			}
			result = union(result, c)
		}
		return result
	case syntax.OpCapture:
		if len(re.Sub) == 1 {
			return f.candidatesForNode(re.Sub[0])
		}
		return nil
	default:
		// no literal to narrow on (wildcards, classes, anchors): every
		// document is a candidate, so return nil to mean "no filter".
		return nil
	}
}
