// Package registry implements the domain registry: a singleton id counter,
// domain records keyed by a key derived from their id, and one event per
// successful mutation.
//
// Every operation runs as a single unit of work on a store.Backend. The
// counter read, the record write and the event append commit together or not
// at all. Committed events are then handed to the configured events.Sink in
// seq order.
//
// Operations:
//
//	Initialize    create the counter; fails with ALREADY_INITIALIZED on repeat
//	CreateDomain  allocate the next id, insert the record, emit DomainCreated
//	UpdateDomain  rewrite dom_type of an existing record, emit DomainUpdated
//	Record        point lookup by id
package registry
