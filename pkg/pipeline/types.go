package pipeline

import "time"

// Job is a posted position
type Job struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Application is a candidate's application to a job
type Application struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	JobID          string    `json:"jobId"`
	CandidateID    string    `json:"candidateId"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
