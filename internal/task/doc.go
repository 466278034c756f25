// Package task runs generation jobs in the background. The job row is the
// durable record: a job still generating at startup is requeued, and one
// generating for longer than the stuck age is failed, so every job reaches
// a terminal state without a separate task table.
package task
