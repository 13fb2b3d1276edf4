package helpers

import (
	"math/rand"
	"sync"
)

// -----------------------------------------------------------------------------

// AgentPool hands out browser user-agent strings for outbound requests so the
// quote upstreams see ordinary traffic.
type AgentPool struct {
	userAgents []string
	mu         sync.Mutex
}

// -----------------------------------------------------------------------------

func NewAgentPool() *AgentPool {
	return &AgentPool{
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36",
			"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0",
		},
	}
}

// -----------------------------------------------------------------------------

func (ap *AgentPool) GetUserAgent() string {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if len(ap.userAgents) == 0 {
		return "Mozilla/5.0 (Go-http-client/1.1)"
	}
	return ap.userAgents[rand.Intn(len(ap.userAgents))]
}
