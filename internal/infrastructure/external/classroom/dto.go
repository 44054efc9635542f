package classroom

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// API DATA TRANSFER OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// CourseDTO is a course as returned by the classroom API.
type CourseDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Section      string `json:"section,omitempty"`
	Description  string `json:"descriptionHeading,omitempty"`
	Room         string `json:"room,omitempty"`
	CourseState  string `json:"courseState"`
	CreationTime string `json:"creationTime,omitempty"`
	UpdateTime   string `json:"updateTime,omitempty"`
}

// AssignmentDTO is a coursework item as returned by the classroom API.
type AssignmentDTO struct {
	ID           string   `json:"id"`
	CourseID     string   `json:"courseId"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	State        string   `json:"state"`
	MaxPoints    float64  `json:"maxPoints,omitempty"`
	DueDate      *DateDTO `json:"dueDate,omitempty"`
	CreationTime string   `json:"creationTime,omitempty"`
}

// DateDTO is the classroom API's split date representation.
type DateDTO struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Time converts the split date into a time.Time, or zero when unset.
func (d *DateDTO) Time() time.Time {
	if d == nil || d.Year == 0 {
		return time.Time{}
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// SubmissionDTO is a student submission as returned by the classroom API.
type SubmissionDTO struct {
	ID             string  `json:"id"`
	CourseID       string  `json:"courseId"`
	CourseWorkID   string  `json:"courseWorkId"`
	UserID         string  `json:"userId"`
	State          string  `json:"state"`
	AssignedGrade  float64 `json:"assignedGrade,omitempty"`
	Late           bool    `json:"late,omitempty"`
	CreationTime   string  `json:"creationTime,omitempty"`
	UpdateTime     string  `json:"updateTime,omitempty"`
	SubmissionTime string  `json:"submissionTime,omitempty"`
}

// listCoursesResponse is the wire shape of the course list endpoint.
type listCoursesResponse struct {
	Courses       []CourseDTO `json:"courses"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// listAssignmentsResponse is the wire shape of the coursework list endpoint.
type listAssignmentsResponse struct {
	CourseWork    []AssignmentDTO `json:"courseWork"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// listSubmissionsResponse is the wire shape of the submissions list endpoint.
type listSubmissionsResponse struct {
	StudentSubmissions []SubmissionDTO `json:"studentSubmissions"`
	NextPageToken      string          `json:"nextPageToken,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// CoursesSyncResult reports the outcome of a course sync.
type CoursesSyncResult struct {
	Status        string      `json:"status"`
	CoursesSynced int         `json:"courses_synced"`
	Courses       []CourseDTO `json:"courses"`
	Timestamp     string      `json:"timestamp"`
}

// AssignmentsSyncResult reports the outcome of an assignment sync.
type AssignmentsSyncResult struct {
	Status            string          `json:"status"`
	AssignmentsSynced int             `json:"assignments_synced"`
	Assignments       []AssignmentDTO `json:"assignments"`
	Timestamp         string          `json:"timestamp"`
}

// SubmissionsSyncResult reports the outcome of a submission sync.
type SubmissionsSyncResult struct {
	Status            string          `json:"status"`
	SubmissionsSynced int             `json:"submissions_synced"`
	Submissions       []SubmissionDTO `json:"submissions"`
	Timestamp         string          `json:"timestamp"`
}
