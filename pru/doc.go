// Package pru implements the two cooperating real-time cores of the camlink
// capture pipeline.
//
// The AcquisitionCore produces fixed-size capture units into a small bank of
// shared scratch slots; the OrchestratorCore consumes the units, classifies
// them into frame sections, batches them into wire messages and streams them
// to the host over a bcam.MessageConn. The cores coordinate through SharedMem,
// a model of the shared scratch memory and the bidirectional command
// registers, and pace themselves with a Clock that tests replace with a
// deterministic fake.
package pru
