package domain

import "strings"

// JobIDPlaceholder is the token in output-file names that the batch
// scheduler substitutes with the external job id.
const JobIDPlaceholder = "%j"

// RealisedRun is one fully concrete submission unit: a template bound to an
// instantiation and a rerun index. Identical inputs always produce identical
// script text.
type RealisedRun struct {
	Name           string
	Instantiation  Instantiation
	OutputDir      string
	RerunIndex     int
	CanonicalBuild bool

	// OutputFile is the file name handed to the scheduler, still containing
	// JobIDPlaceholder. Script is the complete submission script text.
	OutputFile string
	Script     string
}

// TrueOutputFile returns the output-file name with the scheduler's job id
// substituted for the placeholder.
func (r RealisedRun) TrueOutputFile(jobID string) string {
	return strings.ReplaceAll(r.OutputFile, JobIDPlaceholder, jobID)
}
