package types

// JobType identifies a kind of job a data-processing engine can run.
type JobType string

const (
	JobTypeHive               JobType = "Hive"
	JobTypeJava               JobType = "Java"
	JobTypeMapReduce          JobType = "MapReduce"
	JobTypeMapReduceStreaming JobType = "MapReduce.Streaming"
	JobTypePig                JobType = "Pig"
	JobTypeShell              JobType = "Shell"
	JobTypeSpark              JobType = "Spark"
)

// JobConfigHint is a single suggested configuration entry for a job.
type JobConfigHint struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ConfigHints groups the configuration suggestions for a job type.
type ConfigHints struct {
	Configs []JobConfigHint   `json:"configs" yaml:"configs"`
	Params  map[string]string `json:"params" yaml:"params"`
	Args    []string          `json:"args" yaml:"args"`
}
