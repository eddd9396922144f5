// Package container wraps rwsync.Manager together with the T-typed
// storage it arbitrates, the way ringbuffer.ArrayMPMC[T] pairs a bare
// index-dispensing primitive (ringbuffer.MPMC[int]) with a slice of
// user values addressed by the indices it hands out.
//
// Box[T] owns a slice of T plus an "original" template value used to
// seed newly appended cells when the box grows. It presents two
// views: WritePtr, with read/write access to the writer's current
// draft cell and a Publish method; and ReadPtr, with read-only access
// to the latched cell and Refresh/HasUpdate methods.
package container
