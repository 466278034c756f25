// Package events carries job row changes from the service layer to the
// components that react to them, such as the generation runner and the Redis
// fan-out, without the service depending on either.
package events
