package interfaces

// -----------------------------------------------------------------------------
// INetworkManager abstracts outbound HTTP so sources stay testable.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// Get performs a GET request with query params, retries and backoff.
	Get(url string, params map[string]string) ([]byte, error)
}
