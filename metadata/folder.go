package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FolderMetadata is the decrypted content of one folder document.
//
// Wire form: [name, files, folders, created, modified].
type FolderMetadata struct {
	Name     string
	Files    []FileEntry
	Folders  []FolderRef
	Created  int64 // Unix milliseconds
	Modified int64 // Unix milliseconds
}

// FolderRef links a child folder by its hashed folder key.
//
// Wire form: [name, handle].
type FolderRef struct {
	Name   string
	Handle string
}

// FileEntry is one named file in a folder.
//
// Wire form: [name, created, modified, versions].
type FileEntry struct {
	Name     string
	Created  int64
	Modified int64
	Versions []FileVersion
}

// FileVersion is one stored version of a file.
//
// Wire form: [handle, size, modified, created].
type FileVersion struct {
	Handle   string
	Size     int64
	Modified int64
	Created  int64
}

// NewFolderMetadata returns an empty folder document.
func NewFolderMetadata(name string, now time.Time) *FolderMetadata {
	ms := now.UnixMilli()
	return &FolderMetadata{
		Name:     name,
		Files:    []FileEntry{},
		Folders:  []FolderRef{},
		Created:  ms,
		Modified: ms,
	}
}

// Decode parses a decrypted folder document.
func Decode(data []byte) (*FolderMetadata, error) {
	var m FolderMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode serializes the folder document to its wire form.
func (m *FolderMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func (m FolderMetadata) MarshalJSON() ([]byte, error) {
	files := m.Files
	if files == nil {
		files = []FileEntry{}
	}
	folders := m.Folders
	if folders == nil {
		folders = []FolderRef{}
	}
	return json.Marshal([]any{m.Name, files, folders, m.Created, m.Modified})
}

func (m *FolderMetadata) UnmarshalJSON(data []byte) error {
	fields, err := positional(data, 5, "folder")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fields[0], &m.Name); err != nil {
		return fmt.Errorf("%w: folder name: %w", ErrMalformed, err)
	}
	if err := json.Unmarshal(fields[1], &m.Files); err != nil {
		return fmt.Errorf("%w: folder files: %w", ErrMalformed, err)
	}
	if err := json.Unmarshal(fields[2], &m.Folders); err != nil {
		return fmt.Errorf("%w: folder children: %w", ErrMalformed, err)
	}
	if m.Created, err = decodeInt(fields[3]); err != nil {
		return err
	}
	if m.Modified, err = decodeInt(fields[4]); err != nil {
		return err
	}
	if m.Files == nil {
		m.Files = []FileEntry{}
	}
	if m.Folders == nil {
		m.Folders = []FolderRef{}
	}
	return nil
}

func (r FolderRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{r.Name, r.Handle})
}

func (r *FolderRef) UnmarshalJSON(data []byte) error {
	fields, err := positional(data, 2, "folder ref")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fields[0], &r.Name); err != nil {
		return fmt.Errorf("%w: folder ref name: %w", ErrMalformed, err)
	}
	if err := json.Unmarshal(fields[1], &r.Handle); err != nil {
		return fmt.Errorf("%w: folder ref handle: %w", ErrMalformed, err)
	}
	return nil
}

func (e FileEntry) MarshalJSON() ([]byte, error) {
	versions := e.Versions
	if versions == nil {
		versions = []FileVersion{}
	}
	return json.Marshal([]any{e.Name, e.Created, e.Modified, versions})
}

func (e *FileEntry) UnmarshalJSON(data []byte) error {
	fields, err := positional(data, 4, "file")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fields[0], &e.Name); err != nil {
		return fmt.Errorf("%w: file name: %w", ErrMalformed, err)
	}
	if e.Created, err = decodeInt(fields[1]); err != nil {
		return err
	}
	if e.Modified, err = decodeInt(fields[2]); err != nil {
		return err
	}
	if err := json.Unmarshal(fields[3], &e.Versions); err != nil {
		return fmt.Errorf("%w: file versions: %w", ErrMalformed, err)
	}
	return nil
}

func (v FileVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Handle, v.Size, v.Modified, v.Created})
}

func (v *FileVersion) UnmarshalJSON(data []byte) error {
	fields, err := positional(data, 4, "version")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fields[0], &v.Handle); err != nil {
		return fmt.Errorf("%w: version handle: %w", ErrMalformed, err)
	}
	if v.Size, err = decodeInt(fields[1]); err != nil {
		return err
	}
	if v.Modified, err = decodeInt(fields[2]); err != nil {
		return err
	}
	if v.Created, err = decodeInt(fields[3]); err != nil {
		return err
	}
	return nil
}

// positional splits a JSON array into at least n raw elements.
func positional(data []byte, n int, what string) ([]json.RawMessage, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, what, err)
	}
	if len(fields) < n {
		return nil, fmt.Errorf("%w: %s has %d fields, want %d", ErrMalformed, what, len(fields), n)
	}
	return fields, nil
}

// decodeInt accepts a JSON number or a numeric string. Null decodes to 0.
func decodeInt(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number: %s", ErrMalformed, s)
	}
	return int64(f), nil
}
