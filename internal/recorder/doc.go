// Package recorder holds both sides of the recording contract.
//
// Runner is what the orchestrator uses: it launches the recorder executable
// as a blocking subprocess with the base directory as its working directory
// and its output appended to logs/recorder.log.
//
// Loop is the recorder itself (the "record" subcommand). It polls the
// stream links, claims each unclaimed user by creating its lock marker,
// records the stream with ffmpeg and removes the marker when ffmpeg exits.
package recorder
