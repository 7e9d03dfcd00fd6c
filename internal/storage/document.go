package storage

import (
	"fmt"

	gojson "github.com/goccy/go-json"

	"rownest/internal/nest"
)

// Document is one stored entry.
type Document struct {
	Key  string
	Hash string
	Body []byte
}

// Documents encodes top-level entries as JSON documents keyed by the schema's
// top-level identifier fields. A schema without identifiers keys documents by
// content hash.
//
// Two entries may canonicalize to the same key (e.g. 1 and "1"); the first
// one wins so a single upsert statement never touches a key twice.
func Documents(entries []nest.Entry, props []nest.Property) ([]Document, error) {
	ids := nest.Identifiers(props)
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = id.Name
	}

	out := make([]Document, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		body, err := gojson.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode entry %d: %w", i, err)
		}
		hash := ContentHash(body)

		key := hash
		if len(fields) > 0 {
			key = EntityKey(e, fields)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		out = append(out, Document{Key: key, Hash: hash, Body: body})
	}
	return out, nil
}

// Chunks splits docs into batches of at most size documents.
func Chunks(docs []Document, size int) [][]Document {
	if size <= 0 {
		size = len(docs)
	}
	var out [][]Document
	for len(docs) > 0 {
		n := size
		if n > len(docs) {
			n = len(docs)
		}
		out = append(out, docs[:n])
		docs = docs[n:]
	}
	return out
}
