package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"signal-desk/src/engine"
	"signal-desk/src/entitlement"
	"signal-desk/src/logger"
	"signal-desk/src/models"
	"signal-desk/src/pricefeed"
	"signal-desk/src/session"
	"signal-desk/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config       *models.MConfig
	Logger       *logger.Logger
	Session      *session.Controller
	Entitlements *entitlement.Store
	Engine       *engine.SignalEngine
	Book         *pricefeed.LivePriceBook
	Clock        *utils.MarketClock
	Calendar     *utils.ExchangeCalendar

	engine *gin.Engine

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MPricePayload // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestState *models.MPricePayload
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, sess *session.Controller, ent *entitlement.Store, eng *engine.SignalEngine, book *pricefeed.LivePriceBook, clock *utils.MarketClock, cal *utils.ExchangeCalendar, logger *logger.Logger) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:       cfg,
		Logger:       logger,
		Session:      sess,
		Entitlements: ent,
		Engine:       eng,
		Book:         book,
		Clock:        clock,
		Calendar:     cal,
		engine:       gin.Default(),
		clients:      make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		broadcast:  make(chan *models.MPricePayload, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestState: &models.MPricePayload{
			Type:   "INITIAL",
			Prices: book.Snapshot(),
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/instruments", s.getInstruments)
	s.engine.GET("/api/entitlement", s.getEntitlement)
	s.engine.GET("/api/markets", s.getMarkets)
	s.engine.GET("/api/session", s.getSession)
	s.engine.GET("/api/history", s.getHistory)

	s.engine.POST("/api/session/instrument", s.postInstrument)
	s.engine.POST("/api/session/timeframe", s.postTimeframe)
	s.engine.POST("/api/session/analyze", s.postAnalyze)
	s.engine.POST("/api/session/feedback", s.postFeedback)
	s.engine.POST("/api/session/new-cycle", s.postNewCycle)
	s.engine.POST("/api/session/back", s.postBack)
	s.engine.POST("/api/upgrade", s.postUpgrade)
	s.engine.POST("/api/entitlement/reset", s.postReset)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Read Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":        "ok",
		"connections":   connections,
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"timeframes":          s.Config.Timeframes,
		"analysis_seconds":    s.Config.Session.AnalysisSeconds,
		"reveal_delay_millis": s.Config.Session.RevealDelayMillis,
	})
}

// -----------------------------------------------------------------------------

// instrumentView is a catalog row overlaid with the live quote.
type instrumentView struct {
	models.MInstrument
	LastTick models.MTick `json:"lastTick"`
}

// getInstruments returns the catalog with live prices. When the currency
// week is closed the payload carries the reopening countdown instead of
// pretending those quotes are moving.
func (s *FastAPIServer) getInstruments(c *gin.Context) {
	live := s.Book.Snapshot()

	out := make([]instrumentView, 0, len(s.Config.Instruments))
	for _, inst := range s.Config.Instruments {
		view := instrumentView{MInstrument: inst}
		if entry, ok := live[inst.ID]; ok {
			view.Price = entry.Price
			view.Change = entry.Change
			view.LastTick = entry.LastTick
		}
		out = append(out, view)
	}

	forexClosed := s.Clock.ForexClosed()
	resp := gin.H{
		"instruments": out,
		"forexClosed": forexClosed,
	}
	if forexClosed {
		resp["forexReopen"] = s.Clock.ForexCountdown()
	}
	c.JSON(200, resp)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getEntitlement(c *gin.Context) {
	state := s.Entitlements.Snapshot()
	c.JSON(200, gin.H{
		"tier":           state.Tier,
		"signalsUsed":    state.SignalsUsed,
		"remaining":      s.Entitlements.Remaining(),
		"resetCountdown": s.Entitlements.ResetCountdown(),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMarkets(c *gin.Context) {
	c.JSON(200, gin.H{
		"exchanges":   s.Calendar.Statuses(),
		"forexClosed": s.Clock.ForexClosed(),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSession(c *gin.Context) {
	c.JSON(200, s.Session.View())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHistory(c *gin.Context) {
	c.JSON(200, gin.H{"signals": s.Engine.History()})
}

// -----------------------------------------------------------------------------
// Session Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) postInstrument(c *gin.Context) {
	var body struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "invalid body"})
		return
	}
	s.respondTransition(c, s.Session.SelectInstrument(body.ID))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postTimeframe(c *gin.Context) {
	var body struct {
		Timeframe string `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "invalid body"})
		return
	}
	s.respondTransition(c, s.Session.SelectTimeframe(body.Timeframe))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postAnalyze(c *gin.Context) {
	s.respondTransition(c, s.Session.StartAnalysis())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postFeedback(c *gin.Context) {
	var body struct {
		Outcome models.MSignalStatus `json:"outcome"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "invalid body"})
		return
	}
	s.respondTransition(c, s.Session.Feedback(body.Outcome))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postNewCycle(c *gin.Context) {
	s.respondTransition(c, s.Session.NewCycle())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postBack(c *gin.Context) {
	s.respondTransition(c, s.Session.Back())
}

// -----------------------------------------------------------------------------

// respondTransition maps session errors to status codes and always returns
// the fresh session view so the client can re-render from one response.
func (s *FastAPIServer) respondTransition(c *gin.Context, err error) {
	if err != nil {
		status := http.StatusConflict
		switch {
		case errors.Is(err, session.ErrQuotaExceeded):
			status = http.StatusForbidden
		case errors.Is(err, session.ErrUnknownInstrument), errors.Is(err, session.ErrUnknownTimeframe):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error(), "session": s.Session.View()})
		return
	}
	c.JSON(200, gin.H{"session": s.Session.View()})
}

// -----------------------------------------------------------------------------
// Entitlement Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) postUpgrade(c *gin.Context) {
	var body struct {
		Passphrase string `json:"passphrase"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "invalid body"})
		return
	}

	tier, err := s.Entitlements.Upgrade(body.Passphrase)
	if err != nil {
		c.JSON(403, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"tier":      tier,
		"remaining": s.Entitlements.Remaining(),
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) postReset(c *gin.Context) {
	if err := s.Entitlements.ManualReset(); err != nil {
		c.JSON(403, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"remaining": s.Entitlements.Remaining()})
}
