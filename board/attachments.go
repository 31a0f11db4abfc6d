package board

import (
	"fmt"
	"strings"

	"github.com/jevenson76/atl-dashboards/domain"
)

// MaxAttachmentSize is the largest attachment accepted, in bytes.
const MaxAttachmentSize int64 = 10 * 1024 * 1024

// Attachment rules, in the order they are checked.
const (
	RuleSize      = "size"
	RuleType      = "type"
	RuleDuplicate = "duplicate"
)

var allowedExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"txt": {}, "csv": {}, "png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "zip": {},
}

// ValidationError rejects a local edit. Reason is meant to be shown to the user.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// extension returns the lowercased text after the last dot. A name without a
// dot is its own extension.
func extension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

func validateAttachment(existing []domain.Attachment, a domain.Attachment) error {
	if a.Size > MaxAttachmentSize {
		return &ValidationError{Rule: RuleSize, Reason: fmt.Sprintf("File %q exceeds 10MB limit", a.Name)}
	}
	ext := extension(a.Name)
	if _, ok := allowedExtensions[ext]; !ok {
		return &ValidationError{Rule: RuleType, Reason: fmt.Sprintf("File type \".%s\" not allowed", ext)}
	}
	for _, e := range existing {
		if e.Name == a.Name {
			return &ValidationError{Rule: RuleDuplicate, Reason: fmt.Sprintf("File %q already added", a.Name)}
		}
	}
	return nil
}
