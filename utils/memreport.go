package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MemReport is a hierarchical memory breakdown of a unit array or tree, fed
// by the AllocationSize accounting of each backing array.
type MemReport struct {
	Name       string      `json:"name"`
	TotalBytes int         `json:"total_bytes"`
	Children   []MemReport `json:"children,omitempty"`
}

// String renders the report as an indented tree. Every child line carries
// its share of the parent's total, which is what compression work actually
// gets judged by.
func (r MemReport) String() string {
	var sb strings.Builder
	r.render(&sb, 0, 0)
	return sb.String()
}

func (r MemReport) render(sb *strings.Builder, depth, parentTotal int) {
	fmt.Fprintf(sb, "%s- %s: %d bytes", strings.Repeat("  ", depth), r.Name, r.TotalBytes)
	if depth > 0 && parentTotal > 0 {
		fmt.Fprintf(sb, " (%.1f%%)", 100*float64(r.TotalBytes)/float64(parentTotal))
	}
	sb.WriteByte('\n')
	for _, child := range r.Children {
		child.render(sb, depth+1, r.TotalBytes)
	}
}

// JSON returns the report as a JSON document, for diagnostics that get
// scraped rather than read.
func (r MemReport) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
