// Package manifest provides the persisted baseline of a monitored tree:
// the per-file metadata snapshot, the rules used to produce it, and a
// checksum over the snapshot used to short-circuit comparisons.
package manifest

// FileName is the name of the manifest file inside the monitored root.
const FileName = "fs_checksum"

// TempPattern is the os.CreateTemp pattern of an unfinished manifest write.
const TempPattern = "." + FileName + "-*"

// Record is the metadata tracked for one file.
type Record struct {
	// Path is the slash-separated path relative to the monitored root.
	// It is the key of Manifest.List and is not serialized.
	Path string `json:"-"`

	// Modified is the modification time in Unix seconds.
	Modified int64 `json:"modified"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// Same reports whether two records describe unchanged metadata.
func (r Record) Same(other Record) bool {
	return r.Modified == other.Modified && r.Size == other.Size
}

// Rules holds the raw rule strings a manifest was produced with.
type Rules struct {
	Exclude []string `json:"ex"`
	Include []string `json:"in"`
}

// Manifest is a baseline snapshot.
type Manifest struct {
	Checksum string            `json:"checksum"`
	Rules    Rules             `json:"rules"`
	List     map[string]Record `json:"list"`
}

// Len returns the number of files in the manifest.
func (m *Manifest) Len() int {
	return len(m.List)
}
