// Package model defines the core data types shared across prlens.
package model

import "time"

// Severity ranks how serious an issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a numeric rank for sorting (higher = more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	if s.Rank() == 0 {
		return "unknown"
	}
	return string(s)
}

// IssueType categorizes an issue by rule family.
type IssueType string

const (
	IssueStyle        IssueType = "style"
	IssueBug          IssueType = "bug"
	IssuePerformance  IssueType = "performance"
	IssueBestPractice IssueType = "best_practice"
	IssueSecurity     IssueType = "security"
)

// Issue is a single finding on one line of a file.
type Issue struct {
	Type        IssueType `json:"type"`
	Line        int       `json:"line"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion"`
	Severity    Severity  `json:"severity"`
}

// FileReport holds the issues found in one file. Files without issues are
// never reported.
type FileReport struct {
	Name   string  `json:"name"`
	Issues []Issue `json:"issues"`
}

// Summary aggregates issue counts across a report.
type Summary struct {
	TotalFiles     int `json:"total_files"`
	TotalIssues    int `json:"total_issues"`
	CriticalIssues int `json:"critical_issues"`
	HighIssues     int `json:"high_issues"`
	MediumIssues   int `json:"medium_issues"`
	LowIssues      int `json:"low_issues"`
}

// Summarize derives a Summary from file reports.
func Summarize(files []FileReport) Summary {
	s := Summary{TotalFiles: len(files)}
	for _, f := range files {
		for _, is := range f.Issues {
			s.TotalIssues++
			switch is.Severity {
			case SeverityCritical:
				s.CriticalIssues++
			case SeverityHigh:
				s.HighIssues++
			case SeverityMedium:
				s.MediumIssues++
			case SeverityLow:
				s.LowIssues++
			}
		}
	}
	return s
}

// AnalysisResult is the terminal output of a review.
type AnalysisResult struct {
	Files   []FileReport `json:"files"`
	Summary Summary      `json:"summary"`
}

// NewAnalysisResult builds a result whose summary is derived from files.
func NewAnalysisResult(files []FileReport) *AnalysisResult {
	if files == nil {
		files = []FileReport{}
	}
	return &AnalysisResult{Files: files, Summary: Summarize(files)}
}

// FileStatus is the change status of a file in a pull request.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// ChangedFile is one entry of a pull request's file list.
type ChangedFile struct {
	Path        string
	Status      FileStatus
	RevisionSHA string
}

// ChangedLineSet maps a file path to the ascending new-side line numbers
// added by a diff. A path with an empty slice was in the diff but added no
// lines; a missing path was not in the diff at all.
type ChangedLineSet map[string][]int

// PRMetadata describes a pull request.
type PRMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	BaseBranch  string `json:"base_branch"`
	HeadBranch  string `json:"head_branch"`
	HeadSHA     string `json:"head_sha"`
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the persisted record of one pull request analysis.
type Job struct {
	ID           string
	Repo         string
	PRNumber     int
	Status       JobStatus
	Progress     string
	Result       []byte // serialized AnalysisResult, set only when completed
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
