package graph

import "fmt"

// Kind is the closed set of node kinds the engine knows about.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindRoot
	KindView
	KindScrollView
	KindImage
	KindParagraph
	KindText
	KindRawText
)

// Trait describes what an external collaborator may do with a kind.
type Trait uint8

const (
	// TraitLeaf kinds never have children.
	TraitLeaf Trait = 1 << iota
	// TraitMeasurable kinds are measured by the layout collaborator rather
	// than sized from their children.
	TraitMeasurable
	// TraitRoot is only valid at the top of a surface.
	TraitRoot
)

var kindInfo = [...]struct {
	name   string
	traits Trait
}{
	KindUnknown:    {"Unknown", 0},
	KindRoot:       {"RootView", TraitRoot},
	KindView:       {"View", 0},
	KindScrollView: {"ScrollView", 0},
	KindImage:      {"Image", TraitLeaf | TraitMeasurable},
	KindParagraph:  {"Paragraph", TraitMeasurable},
	KindText:       {"Text", 0},
	KindRawText:    {"RawText", TraitLeaf},
}

func (k Kind) String() string {
	if int(k) < len(kindInfo) {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k != KindUnknown && int(k) < len(kindInfo)
}

// Has reports whether the kind carries the trait.
func (k Kind) Has(t Trait) bool {
	if int(k) >= len(kindInfo) {
		return false
	}
	return kindInfo[k].traits&t != 0
}

// LeafOnly reports whether nodes of this kind must not have children.
func (k Kind) LeafOnly() bool { return k.Has(TraitLeaf) }

// ParseKind resolves a kind from its display name.
func ParseKind(name string) (Kind, error) {
	for i, info := range kindInfo {
		if Kind(i) != KindUnknown && info.name == name {
			return Kind(i), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown node kind %q", name)
}
