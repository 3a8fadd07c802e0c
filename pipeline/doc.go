// Package pipeline composes the embedding driver and the cache publisher.
//
// A run embeds, pushes, or embeds and then pushes a project's chunks. In
// embed-then-push mode the push always follows the embedding stage, so a
// partly failed or stopped embedding still publishes what succeeded.
//
// Runs execute synchronously through Run, or in the background on a
// single-worker ants pool through Start. Either way a second run while one
// is active fails with ErrRunInProgress. Every run is tagged with a UUID in
// its log records.
package pipeline
