package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/versevilla/forum/realtime"
)

// SocketController upgrades viewers to websocket connections served by the realtime package.
type SocketController struct {
	registry *realtime.Registry
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewSocketController accepts upgrades from allowedOrigins; "*" allows any origin.
func NewSocketController(registry *realtime.Registry, allowedOrigins []string, log *zap.Logger) *SocketController {
	if log == nil {
		log = zap.NewNop()
	}
	return &SocketController{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := map[string]struct{}{}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients send no Origin
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// Connect upgrades the request and serves the connection until it closes.
func (s *SocketController) Connect(ctx *gin.Context) {
	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade has already answered the client
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	realtime.NewClient(conn, s.registry, s.log).Serve()
}
