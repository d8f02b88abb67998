package dsval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// PartitionID identifies the project and namespace a key belongs to.
type PartitionID struct {
	ProjectID   string `json:"projectId"`
	NamespaceID string `json:"namespaceId,omitempty"`
}

// PathElement is one (kind, identifier) step of a key path. The identifier
// is either a numeric ID or a string Name; an element with neither is
// incomplete and may only appear last.
type PathElement struct {
	Kind string
	ID   int64
	Name string
}

func IDElement(kind string, id int64) PathElement {
	return PathElement{Kind: kind, ID: id}
}

func NameElement(kind, name string) PathElement {
	return PathElement{Kind: kind, Name: name}
}

func (pe PathElement) Incomplete() bool {
	return pe.ID == 0 && pe.Name == ""
}

func (pe PathElement) String() string {
	switch {
	case pe.Name != "":
		return pe.Kind + ":" + strconv.Quote(pe.Name)
	case pe.ID != 0:
		return pe.Kind + ":" + strconv.FormatInt(pe.ID, 10)
	default:
		return pe.Kind + ":?"
	}
}

type wirePathElement struct {
	Kind string  `json:"kind"`
	ID   *Int    `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

func (pe PathElement) MarshalJSON() ([]byte, error) {
	w := wirePathElement{Kind: pe.Kind}
	switch {
	case pe.Name != "":
		w.Name = &pe.Name
	case pe.ID != 0:
		id := IntOf(pe.ID)
		w.ID = &id
	}
	return json.Marshal(w)
}

// UnmarshalJSON picks the variant by which of "id" and "name" is present.
func (pe *PathElement) UnmarshalJSON(data []byte) error {
	var w wirePathElement
	if err := json.Unmarshal(data, &w); err != nil {
		return customErr(DeserializationError, err, "invalid path element")
	}
	if w.ID != nil && w.Name != nil {
		return errorf(DeserializationError, "path element %q has both id and name", w.Kind)
	}
	*pe = PathElement{Kind: w.Kind}
	if w.Name != nil {
		pe.Name = *w.Name
	}
	if w.ID != nil {
		id, err := w.ID.Int64()
		if err != nil {
			return withPath(err, ".id")
		}
		pe.ID = id
	}
	return nil
}

// Key locates a stored entity.
type Key struct {
	PartitionID PartitionID   `json:"partitionId"`
	Path        []PathElement `json:"path"`
}

func NewKey(projectID, namespaceID string, path ...PathElement) *Key {
	return &Key{
		PartitionID: PartitionID{ProjectID: projectID, NamespaceID: namespaceID},
		Path:        path,
	}
}

// LastKind returns the kind of the last path element.
func (k *Key) LastKind() string {
	if len(k.Path) == 0 {
		return ""
	}
	return k.Path[len(k.Path)-1].Kind
}

// Incomplete reports whether the last path element lacks an identifier.
func (k *Key) Incomplete() bool {
	return len(k.Path) == 0 || k.Path[len(k.Path)-1].Incomplete()
}

// Parent returns the key without its last path element, or nil for a root key.
func (k *Key) Parent() *Key {
	if len(k.Path) <= 1 {
		return nil
	}
	return &Key{PartitionID: k.PartitionID, Path: k.Path[:len(k.Path)-1]}
}

// Child returns a new key with el appended to the path.
func (k *Key) Child(el PathElement) *Key {
	path := make([]PathElement, len(k.Path), len(k.Path)+1)
	copy(path, k.Path)
	return &Key{PartitionID: k.PartitionID, Path: append(path, el)}
}

// Validate checks that every path element but the last is complete.
func (k *Key) Validate() error {
	if len(k.Path) == 0 {
		return fmt.Errorf("key has an empty path")
	}
	for i, el := range k.Path {
		if el.Kind == "" {
			return fmt.Errorf("key path element %d has an empty kind", i)
		}
		if el.ID != 0 && el.Name != "" {
			return fmt.Errorf("key path element %d has both id and name", i)
		}
		if i < len(k.Path)-1 && el.Incomplete() {
			return fmt.Errorf("key path element %d is incomplete", i)
		}
	}
	return nil
}

func (k *Key) Equal(another *Key) bool {
	if k == nil || another == nil {
		return k == another
	}
	if k.PartitionID != another.PartitionID || len(k.Path) != len(another.Path) {
		return false
	}
	for i, el := range k.Path {
		if el != another.Path[i] {
			return false
		}
	}
	return true
}

func (k *Key) String() string {
	var buf strings.Builder
	buf.WriteString(k.PartitionID.ProjectID)
	if k.PartitionID.NamespaceID != "" {
		buf.WriteByte('/')
		buf.WriteString(k.PartitionID.NamespaceID)
	}
	for _, el := range k.Path {
		buf.WriteByte('/')
		buf.WriteString(el.String())
	}
	return buf.String()
}
