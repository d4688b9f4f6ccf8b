package graph

import "github.com/eternisai/assignment-relay/internal/assignments"

// educationAssignment is the subset of the Graph educationAssignment resource
// the relay reads. Optional fields are pointers so null and absent decode alike.
type educationAssignment struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"displayName"`
	DueDateTime *string `json:"dueDateTime"`
}

// assignmentPage is one page of GET /education/me/assignments.
type assignmentPage struct {
	Value    []educationAssignment `json:"value"`
	NextLink string                `json:"@odata.nextLink"`
}

func (a educationAssignment) toAssignment() assignments.Assignment {
	out := assignments.Assignment{ID: a.ID}
	if a.DisplayName != nil {
		out.Title = *a.DisplayName
	}
	if a.DueDateTime != nil {
		out.DueAt = *a.DueDateTime
	}
	return out
}
