package bridge

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/danmuck/jvsctl/internal/auth"
	"github.com/danmuck/jvsctl/internal/observability"
	"github.com/danmuck/jvsctl/internal/protocol/jvs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type sendRequest struct {
	Payload string `json:"payload"`
}

type frameView struct {
	Payload string `json:"payload"`
	Length  int    `json:"length"`
	Status  bool   `json:"status"`
}

// Router returns the admin API, built on first use.
func (s *Service) Router() *gin.Engine {
	s.routerOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.Use(observability.RequestLogger(s.log))
		r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
		if len(s.cfg.CorsOrigins) > 0 {
			cfg := cors.DefaultConfig()
			cfg.AllowOrigins = s.cfg.CorsOrigins
			r.Use(cors.New(cfg))
		}
		s.registerRoutes(r)
		s.router = r
	})
	return s.router
}

func (s *Service) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": s.cfg.Name,
		})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Status())
	})

	r.GET("/frames/last", func(c *gin.Context) {
		frame, ok := s.LastFrame()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no frame received yet"})
			return
		}
		c.JSON(http.StatusOK, frameView{
			Payload: frame.Hex(),
			Length:  frame.Length,
			Status:  frame.Status,
		})
	})

	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		r.POST("/frames", requireToken(auth.StaticToken{Token: token}), s.handleSend)
	} else {
		r.POST("/frames", s.handleSend)
	}
	r.GET("/frames/ws", s.tap.ServeWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Service) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(req.Payload), " ", ""))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be hex: " + err.Error()})
		return
	}

	err = s.Send(payload)
	switch {
	case err == nil:
		frame, _ := jvs.Encode(payload)
		c.JSON(http.StatusOK, gin.H{
			"status": "sent",
			"frame":  hex.EncodeToString(frame),
		})
	case errors.Is(err, ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, jvs.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
