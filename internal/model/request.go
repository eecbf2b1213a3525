package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the review state of a rule request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusDone     Status = "done"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDone:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusDone
}

// CanTransitionTo reports whether the lifecycle graph permits moving from s
// to next: pending may become approved or rejected, approved may become done.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusDone
	}
	return false
}

// Protocols accepted on a rule request.
const (
	ProtocolTCP  = "TCP"
	ProtocolUDP  = "UDP"
	ProtocolICMP = "ICMP"
)

// RuleRequest is a firewall rule change proposal with a reviewable lifecycle.
// The JSON field names match the wire format consumed by the web frontend.
type RuleRequest struct {
	ID            string    `json:"id" db:"id"`
	SourceIP      string    `json:"source_ip" db:"source_ip"`
	DestinationIP string    `json:"destination_ip" db:"destination_ip"`
	Port          string    `json:"port" db:"port"`
	Protocol      string    `json:"protocol" db:"protocol"`
	Description   string    `json:"description" db:"description"`
	CreatedBy     string    `json:"createdBy" db:"created_by"`
	RequesterName string    `json:"requester_name" db:"requester_name"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	Status        Status    `json:"status" db:"status"`
	ReviewerNotes string    `json:"reviewer_notes" db:"reviewer_notes"`
}

// RuleRequestInput holds the caller-supplied fields of a new request.
// Everything else (id, timestamps, status, ownership) is assigned at creation.
type RuleRequestInput struct {
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	Port          string `json:"port"`
	Protocol      string `json:"protocol"`
	Description   string `json:"description"`
}

// Validate checks the input fields and returns a message describing the first
// problem found, suitable for returning to the caller.
func (in RuleRequestInput) Validate() error {
	if strings.TrimSpace(in.SourceIP) == "" {
		return fmt.Errorf("source_ip is required")
	}
	if strings.TrimSpace(in.DestinationIP) == "" {
		return fmt.Errorf("destination_ip is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("description is required")
	}
	switch in.Protocol {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP:
	default:
		return fmt.Errorf("protocol must be TCP, UDP or ICMP")
	}
	if err := validatePort(in.Port); err != nil {
		return err
	}
	return nil
}

// validatePort accepts a single port number or a "low-high" range.
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port is required")
	}
	parts := strings.SplitN(port, "-", 2)
	prev := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("port must be a number or low-high range between 1 and 65535")
		}
		if n < prev {
			return fmt.Errorf("port range low end must not exceed high end")
		}
		prev = n
	}
	return nil
}
