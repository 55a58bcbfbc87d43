// Package events delivers committed registry events to collaborators.
//
// The durable log in package store is the source of truth. Sinks here see
// events only after their unit of work commits, and a sink failure never
// undoes a mutation.
package events
