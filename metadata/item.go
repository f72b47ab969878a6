package metadata

import "fmt"

// ItemKind tags an ItemRef.
type ItemKind uint8

const (
	ItemFile ItemKind = iota + 1
	ItemFolder
)

// String returns the human-readable name of the kind.
func (k ItemKind) String() string {
	switch k {
	case ItemFile:
		return "file"
	case ItemFolder:
		return "folder"
	default:
		return fmt.Sprintf("ItemKind(%d)", k)
	}
}

// ItemRef names a file or a folder inside a parent folder. The kind is
// explicit; it is never inferred from the handle length.
type ItemRef struct {
	Kind   ItemKind
	Name   string
	Handle string
}

// FileItem returns a reference to a file.
func FileItem(name, handle string) ItemRef {
	return ItemRef{Kind: ItemFile, Name: name, Handle: handle}
}

// FolderItem returns a reference to a folder.
func FolderItem(name, handle string) ItemRef {
	return ItemRef{Kind: ItemFolder, Name: name, Handle: handle}
}

// IsFile reports whether r references a file.
func (r ItemRef) IsFile() bool { return r.Kind == ItemFile }

// IsFolder reports whether r references a folder.
func (r ItemRef) IsFolder() bool { return r.Kind == ItemFolder }

// Validate checks the name and the handle format for the item's kind.
func (r ItemRef) Validate() error {
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	switch r.Kind {
	case ItemFile:
		return ValidateFileHandle(r.Handle)
	case ItemFolder:
		return ValidateFolderHandle(r.Handle)
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidItem, r.Kind)
	}
}

// Items returns references to every entry of m.
func (m *FolderMetadata) Items() []ItemRef {
	items := make([]ItemRef, 0, len(m.Files)+len(m.Folders))
	for _, f := range m.Folders {
		items = append(items, FolderItem(f.Name, f.Handle))
	}
	for i := range m.Files {
		items = append(items, FileItem(m.Files[i].Name, m.Files[i].Handle()))
	}
	return items
}

// FileItems returns references to the files of m.
func (m *FolderMetadata) FileItems() []ItemRef {
	items := make([]ItemRef, 0, len(m.Files))
	for i := range m.Files {
		items = append(items, FileItem(m.Files[i].Name, m.Files[i].Handle()))
	}
	return items
}
