// Package recognition identifies the songs playing in a YouTube video through external providers.
//
// # Providers
//
// [AudD] submits the video URL to api.audd.io and returns the recognized songs synchronously.
// The result field may hold a single song, a list of songs or a list of timecoded segments,
// all of which are flattened to [models.Candidate] values in the order given.
//
// [ACRCloud] registers the URL with a File Scanning container and polls the file until
// the scan finishes. Polls are paced with a [rate.Limiter].
//
// # Strategy
//
// [Chain] tries providers in order and returns the first success. When every provider
// reports that nothing was recognized, the chain does the same. Otherwise it returns the
// first hard failure.
//
// # Errors
//
//   - [shared.ErrValidation] : empty URL, nothing is sent
//   - [ServiceError] (wraps [shared.ErrRecognitionService]) : provider rejected the request
//   - [shared.ErrNoSongsRecognized] : success with an empty result
//   - [shared.ErrTransport] : network failure or deadline
//
// No call is retried. API tokens are never logged.
package recognition
