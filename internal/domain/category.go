package domain

// Category labels a document within a corpus. The set is fixed: it doubles as
// the pre-filter vocabulary for search and as the context domains walked by
// deep mode.
type Category string

const (
	// CategoryGeneral is the default label for uncategorized documents.
	CategoryGeneral Category = "general"
	// CategoryAPI labels API and endpoint documentation.
	CategoryAPI Category = "api"
	// CategoryDocs labels narrative documentation and guides.
	CategoryDocs Category = "docs"
	// CategoryReferences labels reference material and specifications.
	CategoryReferences Category = "references"
	// CategoryProcess labels process, CI, and workflow documentation.
	CategoryProcess Category = "process"
	// CategoryWorkspace labels workspace conventions and local setup notes.
	CategoryWorkspace Category = "workspace"
)

// Categories lists every valid label.
func Categories() []Category {
	return []Category{
		CategoryGeneral, CategoryAPI, CategoryDocs,
		CategoryReferences, CategoryProcess, CategoryWorkspace,
	}
}

// ContextDomains lists the categories deep mode gathers from, one fast-path
// search per domain per round.
func ContextDomains() []Category {
	return []Category{CategoryAPI, CategoryDocs, CategoryReferences, CategoryProcess}
}

// IsValid reports whether c belongs to the fixed label set.
func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryAPI, CategoryDocs,
		CategoryReferences, CategoryProcess, CategoryWorkspace:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }
