package metadata

import (
	"fmt"
	"strings"
	"time"
)

// MaxNameLen is the maximum length of a file or folder name in bytes.
const MaxNameLen = 255

// Handle returns the capability of the entry's current version.
func (e *FileEntry) Handle() string {
	if len(e.Versions) == 0 {
		return ""
	}
	return e.Versions[0].Handle
}

// Size returns the size of the entry's current version.
func (e *FileEntry) Size() int64 {
	if len(e.Versions) == 0 {
		return 0
	}
	return e.Versions[0].Size
}

// FindFile finds a file by name.
func (m *FolderMetadata) FindFile(name string) (*FileEntry, bool) {
	for i := range m.Files {
		if m.Files[i].Name == name {
			return &m.Files[i], true
		}
	}
	return nil, false
}

// FindFileByHandle finds a file by the handle of its current version.
func (m *FolderMetadata) FindFileByHandle(handle string) (*FileEntry, bool) {
	for i := range m.Files {
		if m.Files[i].Handle() == handle {
			return &m.Files[i], true
		}
	}
	return nil, false
}

// FindFolder finds a child folder reference by name.
func (m *FolderMetadata) FindFolder(name string) (*FolderRef, bool) {
	for i := range m.Folders {
		if m.Folders[i].Name == name {
			return &m.Folders[i], true
		}
	}
	return nil, false
}

// HasFolder reports whether a child folder with handle is linked.
func (m *FolderMetadata) HasFolder(handle string) bool {
	for _, f := range m.Folders {
		if f.Handle == handle {
			return true
		}
	}
	return false
}

// HasName reports whether a file or folder named name exists.
func (m *FolderMetadata) HasName(name string) bool {
	if _, ok := m.FindFile(name); ok {
		return true
	}
	_, ok := m.FindFolder(name)
	return ok
}

// AddFile appends a file entry. Names must be unique among files.
func (m *FolderMetadata) AddFile(entry FileEntry) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	if _, ok := m.FindFile(entry.Name); ok {
		return fmt.Errorf("%w: %q", ErrChildExists, entry.Name)
	}
	m.Files = append(m.Files, entry)
	return nil
}

// RemoveFiles drops every file whose current handle is in handles and returns
// the number removed.
func (m *FolderMetadata) RemoveFiles(handles ...string) int {
	drop := make(map[string]bool, len(handles))
	for _, h := range handles {
		drop[h] = true
	}
	kept := m.Files[:0]
	for _, f := range m.Files {
		if !drop[f.Handle()] {
			kept = append(kept, f)
		}
	}
	removed := len(m.Files) - len(kept)
	m.Files = kept
	return removed
}

// RenameFile renames the file with the given handle.
func (m *FolderMetadata) RenameFile(handle, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	entry, ok := m.FindFileByHandle(handle)
	if !ok {
		return fmt.Errorf("%w: file %s", ErrChildNotFound, handle)
	}
	if entry.Name == newName {
		return nil
	}
	if _, exists := m.FindFile(newName); exists {
		return fmt.Errorf("%w: %q", ErrChildExists, newName)
	}
	entry.Name = newName
	return nil
}

// AddFolder links a child folder. Linking the same handle twice is a no-op.
func (m *FolderMetadata) AddFolder(ref FolderRef) error {
	if err := ValidateName(ref.Name); err != nil {
		return err
	}
	if m.HasFolder(ref.Handle) {
		return nil
	}
	m.Folders = append(m.Folders, ref)
	return nil
}

// RemoveFolders unlinks every child folder whose handle is in handles and
// returns the number removed.
func (m *FolderMetadata) RemoveFolders(handles ...string) int {
	drop := make(map[string]bool, len(handles))
	for _, h := range handles {
		drop[h] = true
	}
	kept := m.Folders[:0]
	for _, f := range m.Folders {
		if !drop[f.Handle] {
			kept = append(kept, f)
		}
	}
	removed := len(m.Folders) - len(kept)
	m.Folders = kept
	return removed
}

// Touch sets the modification time.
func (m *FolderMetadata) Touch(now time.Time) {
	m.Modified = now.UnixMilli()
}

// ValidateName checks that a name is valid for a file or folder entry.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name too long (%d bytes, max %d)", ErrInvalidName, len(name), MaxNameLen)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: name contains path separator", ErrInvalidName)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: name is reserved", ErrInvalidName)
	}
	if strings.ContainsAny(name, "\x00") {
		return fmt.Errorf("%w: name contains null byte", ErrInvalidName)
	}
	return nil
}
