package models

import "github.com/google/uuid"

// Notification types emitted by the lifecycle.
const (
	NotifyApplicationReceived = "application_received"
	NotifyStatusChanged       = "status_changed"
	NotifyApplicationDeclined = "application_declined"
	NotifyPaymentPosted       = "payment_posted"
	NotifyChargesAdded        = "charges_added"
	NotifyCompletionConfirmed = "completion_confirmed"
	NotifyRatingReceived      = "rating_received"
)

// Notification is the payload handed to the delivery sink.
type Notification struct {
	Type          string     `json:"type"`
	RecipientID   uuid.UUID  `json:"recipientId"`
	RecipientRole Role       `json:"recipientRole"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	JobID         *uuid.UUID `json:"jobId,omitempty"`
	ApplicationID *uuid.UUID `json:"applicationId,omitempty"`
}
