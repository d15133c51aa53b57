package format

// Publication status values pushed to the downstream knowledge base.
const (
	StatusPublished = "PUBLISHED"
	StatusDraft     = "DRAFT"
)

// Internal workflow status values.
const (
	InternalDraft     = "Draft"
	InternalReview    = "Review"
	InternalApproved  = "Approved"
	InternalArchived  = "Archived"
	InternalNeedsWork = "Needs Work"
)

// Visibility values.
const (
	VisibilityPublic  = "Public"
	VisibilityPrivate = "Private"
)

// PublicationStatus derives the downstream status from the internal workflow
// fields. An entry is PUBLISHED only when it is both approved and public.
func PublicationStatus(internalStatus, visibility string) string {
	if internalStatus == InternalApproved && visibility == VisibilityPublic {
		return StatusPublished
	}
	return StatusDraft
}

// WorkflowFromPublication maps a publication status back to the internal
// fields, the inverse used during CSV import.
func WorkflowFromPublication(status string) (internalStatus, visibility string) {
	if status == StatusPublished {
		return InternalApproved, VisibilityPublic
	}
	return InternalDraft, VisibilityPrivate
}
