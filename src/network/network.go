package network

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"signal-desk/src/helpers"
	"signal-desk/src/logger"
	"signal-desk/src/models"
)

// -----------------------------------------------------------------------------

type AsyncNetworkManager struct {
	Config *models.MConfig
	Agents *helpers.AgentPool
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	return &AsyncNetworkManager{
		Config: cfg,
		Agents: helpers.NewAgentPool(),
		Logger: log,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and exponential backoff.
func (nm *AsyncNetworkManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	var body []byte
	attempt := func() error {
		req, err := http.NewRequest("GET", finalUrl, nil)
		if err != nil {
			return err
		}

		// Use dynamic User-Agent
		req.Header.Set("User-Agent", nm.Agents.GetUserAgent())

		resp, err := nm.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == 429 || resp.StatusCode == 403 {
			nm.Logger.Info("Request blocked (%d). Backing off.", resp.StatusCode)
			return fmt.Errorf("blocked (status %d)", resp.StatusCode)
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("bad status: %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	attempts := nm.Config.Network.MaxRetries + 1
	if err := helpers.RetryWithBackoff("GET "+finalUrl, attempts, time.Second, attempt); err != nil {
		return nil, &helpers.NetworkError{SignalDeskError: helpers.SignalDeskError{
			Message: "max retries exceeded",
			Cause:   err,
		}}
	}
	return body, nil
}
