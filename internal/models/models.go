// Package models defines the core data structures for ReplyPipe.
//
// It includes the normalized and classified backend reply types, goal outline
// nodes, reminder schedules, chat transcript entries and the API envelope
// shared across modules.
package models

import (
	"errors"
	"strings"
)

// Validation constants for input validation
const (
	// MaxUtteranceLength defines the maximum allowed length of a chat message sent to the backend
	MaxUtteranceLength = 4096
	// MaxGoalLength defines the maximum allowed length of a goal submitted for breakdown
	MaxGoalLength = 1000
)

// Error variables for better error handling and testability
var (
	ErrEmptyUtterance    = errors.New("message cannot be empty")
	ErrUtteranceTooLong  = errors.New("message exceeds maximum length")
	ErrEmptyGoal         = errors.New("goal cannot be empty")
	ErrGoalTooLong       = errors.New("goal exceeds maximum length")
	ErrInvalidPermission = errors.New("invalid notification permission")
	ErrPlanNotFound      = errors.New("plan not found")
	ErrStepNotFound      = errors.New("step not found")
	ErrCheckpointMissing = errors.New("checkpoint not found")
)

// ChatRequest is the payload for sending one user utterance to the backend.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate checks the utterance is present and within bounds.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyUtterance
	}
	if len(r.Message) > MaxUtteranceLength {
		return ErrUtteranceTooLong
	}
	return nil
}

// GoalRequest is the payload for a "break down this goal" command.
type GoalRequest struct {
	Goal string `json:"goal"`
}

// Validate checks the goal is present and within bounds.
func (r *GoalRequest) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return ErrEmptyGoal
	}
	if len(r.Goal) > MaxGoalLength {
		return ErrGoalTooLong
	}
	return nil
}

// MessageStatus represents the delivery status of a notification.
type MessageStatus string

const (
	// MessageStatusSent indicates the notification was handed to a delivery channel.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusFailed indicates the delivery channel rejected the notification.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records one delivery attempt of a fired reminder.
type Receipt struct {
	ReminderID string        `json:"reminder_id"`
	Channel    string        `json:"channel"`
	Status     MessageStatus `json:"status"`
	Time       int64         `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusScheduled indicates the reply also armed a reminder.
	APIStatusScheduled APIStatus = "scheduled"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// ScheduledWithMessage creates a scheduled API response with a message and result.
func ScheduledWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusScheduled).
		WithMessage(message).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}
