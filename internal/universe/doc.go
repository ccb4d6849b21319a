// Package universe implements the per-universe E1.31 session engine.
//
// The engine arbitrates among concurrent sources claiming the same
// universe and maintains the single authoritative 512-slot channel
// buffer downstream output renders.
//
// ARCHITECTURE:
//
// Single-Writer Reactive Core:
// The engine is driven by exactly two trigger kinds - a decoded packet
// (Apply) and a liveness-timer expiry (Expire) - delivered one at a time
// by the surrounding run loop. All state mutation happens synchronously
// inside the handling of one trigger, so the core needs no locks.
//
// Trigger Processing Flow:
//  1. Admission: universe/preview filtering, replay rejection, ceiling check
//  2. Registry: source records created/refreshed/evicted, timers kept in sync
//  3. Priority tracker: per-level source counts follow every registry change
//  4. Arbitration: the buffer is overwritten only by packets at or above
//     the winning priority that carry a zero start code (LTP tie-break)
//  5. Events: an in-order batch describing what happened, drained per cycle
//
// INVARIANTS:
//   - registry size never exceeds the admission ceiling
//   - every registry mutation is paired with a tracker Add/Remove, so the
//     tracker's counts always agree with registry membership
//   - a source's timer is cancelled synchronously before its record is
//     deleted; a timer can never fire for an unregistered identity
//   - stale packets change nothing: no timer reset, no priority move,
//     no buffer write
package universe
