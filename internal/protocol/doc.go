// Package protocol implements the balance board report protocol wire format.
//
// It covers both directions of the link:
//   - Output commands written to the control channel (light, reporting mode,
//     status request, extension registration, register reads)
//   - Input reports read from the data channel, decoded into a tagged Frame
//
// Everything here is pure: no I/O and no state. Frames are views over the
// caller's buffer and must not be retained past the next receive.
package protocol
