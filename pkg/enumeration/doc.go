// Package enumeration implements the interactive ESC enumeration workflow:
// deciding which online nodes are ESCs, and assigning each one a stable
// logical index bound to a physical action performed by the operator.
//
// # Workflow
//
// The workflow has three phases, all driven by pumping a single bus session:
//
//  1. Bootstrap: wait until the allocation table stops growing, meaning
//     every node connected to the bus is online (WaitForAllNodesOnline).
//  2. Role detection: listen for ESCStatus broadcasts for a collection
//     window; the distinct senders are the enumeration candidates
//     (DetectESCNodes).
//  3. Enumeration: the Coordinator runs one round per candidate. A round
//     puts every unassigned candidate into enumeration mode, waits for
//     exactly one indication (the operator turns a motor or presses a
//     button), stops enumeration on that node only, writes the next free
//     index into the parameter the indication named, and commits it to
//     non-volatile storage.
//
// # Failure Policy
//
// Nothing in this package retries. A timed-out request, a rejected request,
// a mismatched parameter echo or an exhausted run deadline each abort the
// whole run with an error naming the violated step; the partial assignment
// order is discarded. Retrying a begin-enumeration request could double-fire
// physical actuation, so fail-fast is the only safe policy here.
package enumeration
