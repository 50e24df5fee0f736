package queuectl

// Stats returns statistics about the job queue.
type Stats struct {
	Pending    int `json:"pending"`    // number of jobs waiting to be claimed
	Processing int `json:"processing"` // number of jobs currently being executed
	Completed  int `json:"completed"`  // number of successfully completed jobs
	Failed     int `json:"failed"`     // number of jobs waiting out a backoff delay
	Dead       int `json:"dead"`       // number of jobs in the dead-letter queue
}
