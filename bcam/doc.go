// Package bcam defines the camlink wire protocol shared by the two real-time
// capture cores and the host application.
//
// The protocol moves camera frame data from an acquisition/orchestrator core
// pair, across a message-oriented host channel, to a consumer application.
// Two message families travel over the channel:
//
//   - Commands (host → orchestrator): fixed magic sentinel, a command id and
//     an optional payload. Recognized ids are GetVersion, GetStatus, CapSetup,
//     CapStart and CapStop. Malformed commands are dropped without a reply.
//
//   - Messages (orchestrator → host): Info replies to Get* commands, Log
//     entries carrying a severity and a UTF-8 string, and Capture messages
//     carrying a frame section tag, a per-frame part sequence number and a
//     slice of pixel payload bytes.
//
// Every message fits in a single channel write of at most MaxMessageSize
// bytes; the channel contract (see MessageConn) preserves message boundaries,
// so one write is always delivered as exactly one read on the other end.
//
// # Frame sections
//
// The orchestrator classifies each capture unit into a frame section. A frame
// on the wire is a run of Capture messages tagged Start, Body..., End; the
// part sequence number starts at 0 on Start and increments by one per message.
// An Invalid section aborts the in-progress frame: the host discards any
// accumulated bytes and resynchronizes at the next Start.
package bcam
