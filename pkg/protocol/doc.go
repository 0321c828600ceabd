// Package protocol implements the wire formats spoken between the mirror and
// its viewers.
//
// Three formats live here:
//
//   - Outbound JSON envelopes. Every text frame sent to a viewer is either a
//     state push or a point event:
//
//     {"type":"state","name":"live_level_data","data":{...}}
//     {"type":"event","name":"level_reset","data":null}
//
//     Names come from a fixed vocabulary (see the State* and Event*
//     constants); encoding an unknown name fails.
//
//   - Inbound control messages. Viewers send pointer and keyboard input as
//     small JSON objects:
//
//     {"type":"mouse_down","x":0.5,"y":0.25}
//     {"type":"key_down","key":32}
//
//     Coordinates are normalized to 0..1 and are scaled by the receiver.
//
//   - The guideline embedding. A structured payload is smuggled through the
//     host level's free-form guideline string, a "~"-delimited token list.
//     The payload occupies one region bounded by two sentinel tokens; each
//     byte becomes a pair of numeric tokens that look like the host's own
//     guideline entries:
//
//     0.5~0~283036382.0~123.000000~0.000000~125.000000~0.000000~283036382.1
//
//     Embed replaces any previous region so re-embedding never accumulates
//     regions. Extract and HasPayload agree on every input.
//
// Binary frames carry raw RGBA pixels and have no header; they are not
// described here because nothing encodes them.
package protocol
