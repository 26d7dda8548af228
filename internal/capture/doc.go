// Package capture stores what exposures produce: FITS artifacts on disk
// and a history row per finished exposure in SQLite.
//
// FileWriter satisfies camera.ArtifactWriter, SQLiteRepository satisfies
// camera.Sequencer, and Recorder is a driver observer that turns each
// camera.Result into a Record.
package capture
