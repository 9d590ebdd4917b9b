package core

// DebugMode selects fail-loud behavior for programming errors: invalid
// lifecycle transitions, mutations off the frame goroutine, and removal of
// still-linked nodes panic instead of being reported and tolerated.
//
// Release builds leave this false: the same conditions log through the
// errors package and the offending operation becomes a no-op.
var DebugMode = false
