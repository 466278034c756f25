// Package service contains the job use cases of the API server. JobService
// applies ownership and state rules on top of store.JobStore, keeps audio
// objects in storage consistent with job rows, and emits a
// events.JobChangeEvent for every committed write so background runners and
// fan-out publishers see the same sequence the database does.
package service
