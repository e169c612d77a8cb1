package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// New builds a manifest for list and computes its checksum.
// Records are stored under their map key; a record's Path field is set
// from the key so callers can rely on it after New.
func New(list map[string]Record, rules Rules) (*Manifest, error) {
	normalized := make(map[string]Record, len(list))
	for path, rec := range list {
		rec.Path = path
		normalized[path] = rec
	}

	sum, err := Checksum(normalized)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		Checksum: sum,
		Rules:    rules,
		List:     normalized,
	}, nil
}

// Checksum returns the hex MD5 of the JSON serialization of list.
// encoding/json writes map keys in sorted order, so the result does not
// depend on map iteration order. A nil list hashes like an empty one.
func Checksum(list map[string]Record) (string, error) {
	if list == nil {
		list = map[string]Record{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to marshal file list: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// decode parses a stored manifest. The stored checksum is kept as is.
func decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if m.List == nil {
		m.List = map[string]Record{}
	}
	for path, rec := range m.List {
		rec.Path = path
		m.List[path] = rec
	}
	return &m, nil
}
