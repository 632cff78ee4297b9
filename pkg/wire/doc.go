// Package wire defines the CBOR wire format types for TORQBUS bridge links.
//
// The bus itself moves small fixed frames; a bus bridge re-exposes those
// frames to host tools as CBOR (RFC 8949) maps with integer keys, one frame
// per length-prefixed transport message.
//
// # Frame Kinds
//
// There are three frame kinds:
//   - Broadcast: unsolicited, visible to every node (NodeStatus, ESCStatus,
//     EnumerationIndication)
//   - Request: host or node to a single destination node
//   - Response: answers a request, correlated by (source, transfer id)
//
// # CBOR Integer Keys
//
// All maps use integer keys for compactness. The key mappings are documented
// on each struct in this package.
//
// # Transfer IDs
//
// A transfer id correlates a response to its request. IDs are allocated per
// destination by the sender and wrap at 255; a bridge link never carries
// enough concurrent requests to one node for the wrap to be ambiguous.
package wire
