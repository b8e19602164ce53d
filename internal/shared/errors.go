package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Conversion pipeline errors
	ErrValidation          = fmt.Errorf("validation failed")
	ErrRecognitionService  = fmt.Errorf("recognition service error")
	ErrNoSongsRecognized   = fmt.Errorf("no songs recognized")
	ErrCatalogSearch       = fmt.Errorf("catalog search failed")
	ErrPlaylistCreate      = fmt.Errorf("playlist creation failed")
	ErrPlaylistPopulate    = fmt.Errorf("adding tracks to playlist failed")
	ErrTransport           = fmt.Errorf("transport error")
	ErrInvalidState        = fmt.Errorf("invalid conversion state")
	ErrConversionNotFound  = fmt.Errorf("conversion not found")
	ErrNoSongsFound        = fmt.Errorf("no songs found to add")
	ErrConversionCancelled = fmt.Errorf("conversion cancelled")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

const (
	MessageNoMusic        = "No music detected in this video. Try a different video."
	MessageNoUsableSongs  = "No usable songs were recognized."
	MessageNoSongsToAdd   = "No songs found to add."
	MessageRecognizeError = "Something went wrong while recognizing songs."
	MessageCreateError    = "Something went wrong while creating the playlist."
	MessageGenericError   = "Something went wrong. Please try again."
)

// UserMessage maps a pipeline error to the text shown to the user.
//
// "Nothing was found" and "something broke" stay distinguishable.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSongsRecognized):
		return MessageNoMusic
	case errors.Is(err, ErrNoSongsFound):
		return MessageNoSongsToAdd
	case errors.Is(err, ErrRecognitionService):
		return MessageRecognizeError
	case errors.Is(err, ErrPlaylistCreate), errors.Is(err, ErrPlaylistPopulate):
		return MessageCreateError
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return MessageGenericError
	}
}
