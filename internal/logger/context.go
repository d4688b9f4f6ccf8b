package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithCycleID adds a poll cycle ID to the context.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, ContextKeyCycleID, cycleID)
}

// WithAssignmentID adds an assignment ID to the context.
func WithAssignmentID(ctx context.Context, assignmentID string) context.Context {
	return context.WithValue(ctx, ContextKeyAssignmentID, assignmentID)
}

// GenerateCycleID generates a new poll cycle ID.
func GenerateCycleID() string {
	return uuid.New().String()
}
