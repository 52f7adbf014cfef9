package cache

import (
	"fmt"

	"neoflow/internal/domain"
)

// Kind names a family of cached views.
type Kind string

const (
	KindList       Kind = "list"
	KindStatus     Kind = "status"
	KindResult     Kind = "result"
	KindTemplates  Kind = "templates"
	KindMergeRules Kind = "merge_rules"
)

// Key identifies one cached view. Keys are comparable and safe to use as map keys.
type Key struct {
	Kind   Kind
	ID     string
	Filter domain.ListFilter
}

// ListKey keys one page of the document list.
func ListKey(filter domain.ListFilter) Key {
	return Key{Kind: KindList, Filter: filter}
}

// StatusKey keys the status snapshot of one document.
func StatusKey(documentID string) Key {
	return Key{Kind: KindStatus, ID: documentID}
}

// ResultKey keys the extraction result of one document.
func ResultKey(documentID string) Key {
	return Key{Kind: KindResult, ID: documentID}
}

// TemplatesKey keys the tenant's template list.
func TemplatesKey() Key {
	return Key{Kind: KindTemplates}
}

// MergeRulesKey keys the tenant's merge rules.
func MergeRulesKey() Key {
	return Key{Kind: KindMergeRules}
}

func (k Key) String() string {
	switch k.Kind {
	case KindList:
		f := k.Filter
		return fmt.Sprintf("documents/list?page=%d&limit=%d&status=%s&document_type=%s",
			f.Page, f.Limit, f.Status, f.DocumentType)
	case KindStatus, KindResult:
		return fmt.Sprintf("documents/%s/%s", k.Kind, k.ID)
	default:
		return "tenant/" + string(k.Kind)
	}
}

// Matcher selects a set of keys.
type Matcher func(Key) bool

// Lists matches every cached list view regardless of filter.
func Lists() Matcher {
	return func(k Key) bool { return k.Kind == KindList }
}

// Exact matches a single key.
func Exact(key Key) Matcher {
	return func(k Key) bool { return k == key }
}

// Document matches the per-document views (status and result) of one id.
func Document(documentID string) Matcher {
	return func(k Key) bool {
		return (k.Kind == KindStatus || k.Kind == KindResult) && k.ID == documentID
	}
}

// Any matches a key when any of the matchers does.
func Any(matchers ...Matcher) Matcher {
	return func(k Key) bool {
		for _, m := range matchers {
			if m(k) {
				return true
			}
		}
		return false
	}
}
