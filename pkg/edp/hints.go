package edp

import "github.com/rzbill/herd/pkg/types"

var hadoopHints = []types.JobConfigHint{
	{Name: "mapred.reduce.tasks", Value: "-1", Description: "The default number of reduce tasks per job."},
	{Name: "mapred.map.tasks", Value: "2", Description: "The default number of map tasks per job."},
	{Name: "mapreduce.job.queuename", Value: "default", Description: "Queue to which the job is submitted."},
}

var streamingHints = []types.JobConfigHint{
	{Name: "edp.streaming.mapper", Value: "", Description: "Command run as the streaming mapper."},
	{Name: "edp.streaming.reducer", Value: "", Description: "Command run as the streaming reducer."},
}

var hiveHints = []types.JobConfigHint{
	{Name: "hive.exec.parallel", Value: "false", Description: "Whether to execute independent stages in parallel."},
	{Name: "hive.exec.dynamic.partition.mode", Value: "strict", Description: "Dynamic partitioning mode."},
}

var sparkHints = []types.JobConfigHint{
	{Name: "edp.spark.adapt_for_swift", Value: "false", Description: "Adapt the job for object storage access."},
	{Name: "spark.executor.memory", Value: "1g", Description: "Memory per executor process."},
	{Name: "spark.master", Value: "yarn", Description: "Cluster manager the job is submitted to."},
}

func configHints(jobType types.JobType) types.ConfigHints {
	h := types.ConfigHints{
		Params: map[string]string{},
		Args:   []string{},
	}
	switch jobType {
	case types.JobTypeMapReduce, types.JobTypeJava:
		h.Configs = append(h.Configs, hadoopHints...)
	case types.JobTypeMapReduceStreaming:
		h.Configs = append(append(h.Configs, hadoopHints...), streamingHints...)
	case types.JobTypeHive, types.JobTypePig:
		h.Configs = append(append(h.Configs, hadoopHints...), hiveHints...)
	case types.JobTypeSpark:
		h.Configs = append(h.Configs, sparkHints...)
	case types.JobTypeShell:
		h.Configs = []types.JobConfigHint{}
	}
	return h
}
