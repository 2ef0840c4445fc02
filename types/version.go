package types

// Version is the canonical project version.
// The CLI, the relay and the recording format share this version.
const Version = "0.4.2"

// RecordingVersion is the version stamped into stream recordings.
// Bump when the recorded entry shape changes.
const RecordingVersion = "1"
