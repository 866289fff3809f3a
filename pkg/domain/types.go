package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusOpen       RequestStatus = "open"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
)

type UserRole string

const (
	RoleSeeker   UserRole = "seeker"
	RoleProvider UserRole = "provider"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// Categories is the fixed set of service categories a request may use.
var Categories = []string{
	"Personal Tax",
	"Business Tax",
	"Tax Planning",
	"Tax Audit",
	"International Tax",
	"Other",
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Budget is an inclusive price range. Min <= Max, both non-negative.
type Budget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ServiceRequest struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Budget      Budget        `json:"budget"`
	Deadline    time.Time     `json:"deadline"`
	Documents   []string      `json:"documents"`
	SeekerID    string        `json:"seekerId"`
	ProviderID  string        `json:"providerId,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`

	// Display names joined by the gateway; empty when the query does not
	// include them.
	SeekerName   string `json:"seekerName,omitempty"`
	ProviderName string `json:"providerName,omitempty"`
}

type Message struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Proposal struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"requestId"`
	ProviderID string         `json:"providerId"`
	Amount     float64        `json:"amount"`
	Message    string         `json:"message"`
	Status     ProposalStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ValidationError reports a client-side input problem detected before any
// network call. Field names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// RequestInput carries the seeker-provided fields of a new service request.
type RequestInput struct {
	Title       string
	Description string
	Category    string
	Budget      Budget
	Deadline    time.Time
}

// Validate checks the input against the request field rules.
func (in RequestInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if !ValidCategory(in.Category) {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if in.Budget.Min < 0 || in.Budget.Max < 0 {
		return &ValidationError{Field: "budget", Reason: "must be non-negative"}
	}
	if in.Budget.Min > in.Budget.Max {
		return &ValidationError{Field: "budget", Reason: "min exceeds max"}
	}
	if in.Deadline.IsZero() {
		return &ValidationError{Field: "deadline", Reason: "required"}
	}
	return nil
}

// BoundProvider reports whether the request's provider binding is consistent
// with its status: a provider is set if and only if work has started.
func (r ServiceRequest) BoundProvider() bool {
	return r.Status == StatusInProgress || r.Status == StatusCompleted
}
