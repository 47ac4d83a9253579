// Package host implements the application side of the camlink pipeline.
//
// A Camera owns one bcam.MessageConn to the orchestrator core. Its receiver
// task demultiplexes inbound traffic: Info messages answer pending commands,
// Log messages are forwarded to the local logger, and Capture messages feed a
// FrameAssembler that rebuilds complete frames. Finished frames land in a
// fixed-size FrameRing from which the application pulls with NextFrame; when
// the application lags, the oldest behavior is to drop the newest frame
// rather than stall the receiver.
package host
