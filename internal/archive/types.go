// Package archive implements the crawl orchestrator: the level-by-level
// traversal of courses, assignments, submissions and questions, fanning out
// concurrent fetches per level and localizing every failure to the smallest
// subtree.
package archive

import (
	"path"
	"strings"
)

// CourseInfo identifies one course, used as a fan-out seed.
type CourseInfo struct {
	Name string
	URL  string
}

// AssignmentInfo identifies one assignment within a course.
type AssignmentInfo struct {
	AssignmentName string
	CourseName     string
	URL            string
}

// Target resolves the artifact location for this assignment's submission.
func (a AssignmentInfo) Target(resultsURL string) SubmissionTarget {
	return SubmissionTarget{
		Path: path.Join(SanitizeFilename(a.CourseName), SanitizeFilename(a.AssignmentName)),
		URL:  resultsURL,
	}
}

// SubmissionTarget is the resolved output location and results URL for one
// student's submission. Path is a '/'-joined object prefix relative to the
// artifact store root.
type SubmissionTarget struct {
	Path string
	URL  string
}

// invalidFilenameChars are replaced by '_' in artifact path components.
const invalidFilenameChars = ` <>:"/\|?*`

// SanitizeFilename makes a display name safe to use as a path component.
// It is idempotent.
func SanitizeFilename(name string) string {
	for _, c := range invalidFilenameChars {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	return strings.TrimSpace(name)
}
