package interfaces

import "signal-desk/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger is the serving layer seen from the feed and session side.
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// Start runs the HTTP server (blocking).
	Start() error

	// -----------------------------------------------------------------------------

	// Broadcast pushes a live-price frame to all connected clients.
	Broadcast(payload *models.MPricePayload)

	// -----------------------------------------------------------------------------

	// Stop shuts the server down.
	Stop() error
}
