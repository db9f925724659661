package models

import (
	"strings"
)

// JobStatus is the aggregate status of a job posting.
type JobStatus string

const (
	JobStatusPosted         JobStatus = "posted"
	JobStatusApplied        JobStatus = "applied"
	JobStatusAccepted       JobStatus = "accepted"
	JobStatusWorking        JobStatus = "working"
	JobStatusPaymentPending JobStatus = "payment_pending"
	JobStatusPaid           JobStatus = "paid"
	JobStatusFinished       JobStatus = "finished"
	JobStatusCancelled      JobStatus = "cancelled"
)

// ApplicationStatus is the status of one worker's application to a job.
type ApplicationStatus string

const (
	ApplicationStatusApplied        ApplicationStatus = "applied"
	ApplicationStatusAccepted       ApplicationStatus = "accepted"
	ApplicationStatusWorking        ApplicationStatus = "working"
	ApplicationStatusPaymentPending ApplicationStatus = "payment_pending"
	ApplicationStatusPaid           ApplicationStatus = "paid"
	ApplicationStatusFinished       ApplicationStatus = "finished"
	ApplicationStatusDeclined       ApplicationStatus = "declined"
	ApplicationStatusCancelled      ApplicationStatus = "cancelled"
)

// JobStatuses lists every job status in lifecycle order.
var JobStatuses = []JobStatus{
	JobStatusPosted, JobStatusApplied, JobStatusAccepted, JobStatusWorking,
	JobStatusPaymentPending, JobStatusPaid, JobStatusFinished, JobStatusCancelled,
}

// ApplicationStatuses lists every application status in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	ApplicationStatusApplied, ApplicationStatusAccepted, ApplicationStatusWorking,
	ApplicationStatusPaymentPending, ApplicationStatusPaid, ApplicationStatusFinished,
	ApplicationStatusDeclined, ApplicationStatusCancelled,
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPosted:         {JobStatusApplied, JobStatusCancelled},
	JobStatusApplied:        {JobStatusAccepted, JobStatusCancelled},
	JobStatusAccepted:       {JobStatusWorking, JobStatusCancelled},
	JobStatusWorking:        {JobStatusPaymentPending, JobStatusCancelled},
	JobStatusPaymentPending: {JobStatusPaid},
	JobStatusPaid:           {JobStatusFinished},
	JobStatusFinished:       {},
	JobStatusCancelled:      {},
}

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusApplied:        {ApplicationStatusAccepted, ApplicationStatusDeclined, ApplicationStatusCancelled},
	ApplicationStatusAccepted:       {ApplicationStatusWorking, ApplicationStatusCancelled},
	ApplicationStatusWorking:        {ApplicationStatusPaymentPending, ApplicationStatusCancelled},
	ApplicationStatusPaymentPending: {ApplicationStatusPaid},
	ApplicationStatusPaid:           {ApplicationStatusFinished},
	ApplicationStatusFinished:       {},
	ApplicationStatusDeclined:       {},
	ApplicationStatusCancelled:      {},
}

// normalize collapses mixed-case and hyphenated spellings ("WORKING", "Payment-Pending").
func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// ParseJobStatus normalizes raw case-insensitively and reports whether it names a job status.
func ParseJobStatus(raw string) (JobStatus, bool) {
	s := JobStatus(normalize(raw))
	_, ok := jobTransitions[s]
	return s, ok
}

// ParseApplicationStatus normalizes raw case-insensitively and reports whether it names
// an application status.
func ParseApplicationStatus(raw string) (ApplicationStatus, bool) {
	s := ApplicationStatus(normalize(raw))
	_, ok := applicationTransitions[s]
	return s, ok
}

// AllowedTargets returns the statuses reachable from s in one step.
func (s JobStatus) AllowedTargets() []JobStatus {
	return append([]JobStatus(nil), jobTransitions[s]...)
}

// CanTransitionTo reports whether to is reachable from s. The empty status is the
// "no prior status" case and may move anywhere.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	if s == "" {
		_, ok := jobTransitions[to]
		return ok
	}
	for _, t := range jobTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusFinished || s == JobStatusCancelled
}

// HasSelectedWorker reports whether a job in this status must carry a selected worker.
func (s JobStatus) HasSelectedWorker() bool {
	switch s {
	case JobStatusAccepted, JobStatusWorking, JobStatusPaymentPending, JobStatusPaid, JobStatusFinished:
		return true
	}
	return false
}

func (s ApplicationStatus) AllowedTargets() []ApplicationStatus {
	return append([]ApplicationStatus(nil), applicationTransitions[s]...)
}

func (s ApplicationStatus) CanTransitionTo(to ApplicationStatus) bool {
	if s == "" {
		_, ok := applicationTransitions[to]
		return ok
	}
	for _, t := range applicationTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) IsTerminal() bool {
	return len(applicationTransitions[s]) == 0
}

// IsActive reports whether the application still counts as the worker's claim on the job.
func (s ApplicationStatus) IsActive() bool {
	return s != ApplicationStatusDeclined && s != ApplicationStatusCancelled
}

// JobStatus returns the job status an application in s drags its job to, if any.
// Declined and cancelled have no job counterpart here; the orchestrator decides.
func (s ApplicationStatus) JobStatus() (JobStatus, bool) {
	switch s {
	case ApplicationStatusAccepted, ApplicationStatusWorking, ApplicationStatusPaymentPending,
		ApplicationStatusPaid, ApplicationStatusFinished:
		return JobStatus(s), true
	}
	return "", false
}

// ApplicationStatus is the inverse of ApplicationStatus.JobStatus.
func (s JobStatus) ApplicationStatus() (ApplicationStatus, bool) {
	switch s {
	case JobStatusAccepted, JobStatusWorking, JobStatusPaymentPending, JobStatusPaid, JobStatusFinished:
		return ApplicationStatus(s), true
	case JobStatusCancelled:
		return ApplicationStatusCancelled, true
	}
	return "", false
}

func JobStatusStrings(in []JobStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func ApplicationStatusStrings(in []ApplicationStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
