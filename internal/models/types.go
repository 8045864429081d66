package models

// --- Request / Response types ---

// SubmitYearRequest is the payload for POST /games/{id}/year.
// Year is kept as text so that non-numeric input reaches validation.
type SubmitYearRequest struct {
	Year string `json:"year"`
	Era  Era    `json:"era"`
}

// SelectEventRequest is the payload for POST /games/{id}/event.
type SelectEventRequest struct {
	Event string `json:"event"`
}

// ChooseRequest is the payload for POST /games/{id}/choice.
type ChooseRequest struct {
	Choice string `json:"choice"`
}

// ArchiveRequest is the payload for POST /games/{id}/archive.
type ArchiveRequest struct {
	Title string `json:"title,omitempty"`
}

// Chronicle is an archived timeline.
type Chronicle struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StartYear  *int   `json:"startYear,omitempty"`
	EntryCount int    `json:"entryCount"`
	Finished   bool   `json:"finished"`
	CreatedAt  int64  `json:"createdAt"`
}

// ChronicleWithEntries is the full archived timeline.
type ChronicleWithEntries struct {
	Chronicle
	Entries []HistoryEntry `json:"entries"`
}

// ServiceCheck reports the status of a dependency.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status         string       `json:"status"`
	Narrator       ServiceCheck `json:"narrator"`
	DB             ServiceCheck `json:"db"`
	ChronicleCount int          `json:"chronicleCount"`
	ActiveGames    int          `json:"activeGames"`
}

// ErrorResponse is the body written for every non-2xx response without a
// richer payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
