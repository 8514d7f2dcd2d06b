// Package goasio provides a minimal asynchronous I/O runtime: a
// work-stealing-free, multi-worker cooperative scheduler coupled with a
// readiness-based I/O event driver.
//
// # Architecture
//
// The hard part is the interaction of three subsystems:
//
//   - the [driver], which converts OS readiness events (epoll on Linux,
//     kqueue on Darwin, IOCP on Windows) into per-source notifications;
//   - the [Registration], a per-source readiness state machine that
//     mediates between suspended consumers and the driver;
//   - the worker pool, which alternates between draining the task queue,
//     polling the driver, and parking.
//
// Tasks are represented as [Future] values driven by a [Waker]. Leaf I/O
// futures (accept, read, write, send, recv) are built on top of
// [AsyncIO]. User task bodies are written as ordinary
// sequential Go using [Spawn] and [Await], which bridge a dedicated
// goroutine per task onto the poll/wake protocol so callers never need
// to hand-write a state machine.
//
// # Platform support
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll
//   - Darwin: kqueue
//   - Windows: IOCP (simplified completion-based stand-in)
//
// # Thread safety
//
// [Spawn] takes the runtime handle from the [Awaiter] passed into a task
// body (including the body given to [BlockOn]), so it is safe to call
// from the goroutine running any such body.
// The shared task queue and unparker queue are mutex-guarded
// multi-producer/multi-consumer FIFOs. Per-registration event queues are
// single-consumer, serialized by a mutex held only across a single
// non-blocking poll.
//
// # Usage
//
//	rt, err := goasio.NewRuntime(goasio.WithWorkerThreads(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Shutdown()
//
//	result := goasio.BlockOn(rt, func(aw *goasio.Awaiter) int {
//		h := goasio.Spawn(aw, func(aw *goasio.Awaiter) int {
//			return 21 * 2
//		})
//		return goasio.Await(aw, h).Value
//	})
//
// # Error handling
//
// I/O errors (registration, polling, read/write/accept/connect/…)
// surface verbatim to the caller of the top-level operation.
// Would-block never surfaces: it is transparently retried once
// readiness is observed. Programmer-error conditions (spawning outside
// a runtime, two concurrent parkers on one [parker]) fail fast via
// panic, matching this module's documented preconditions.
package goasio
