package constant

type JobStatus string

const (
	JobStatusSubmitted     JobStatus = "submitted"
	JobStatusPreprocessing JobStatus = "preprocessing"
	JobStatusPreprocessed  JobStatus = "preprocessed"
	JobStatusFailed        JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPreprocessed || s == JobStatusFailed
}

// MaxErrorMessageLen bounds error_message stored in the ledger.
const MaxErrorMessageLen = 2000

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
