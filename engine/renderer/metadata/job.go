package metadata

/** Definition for jobs. Returns the result handed to OnComplete. */
type JobStart func(params interface{}) (interface{}, error)

/** Definition for completion of a job. */
type JobOnComplete func(result interface{})

/** Definition for failure of a job. */
type JobOnFailure func(err error)

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	/** @brief Invoked on a worker goroutine. Required. */
	OnStart JobStart
	/** @brief Invoked on the worker goroutine when OnStart succeeds. Optional. */
	OnComplete JobOnComplete
	/** @brief Invoked on the worker goroutine when OnStart fails. Optional. */
	OnFailure JobOnFailure
	/** @brief Data to be passed to the entry point upon execution. */
	InputParams interface{}
}
