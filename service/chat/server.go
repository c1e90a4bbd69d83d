package chat

import (
	"mchat/global"
	"mchat/service/storage"
	"mchat/tools/security"
)

// Server wires the transport to the router. One instance per process.
type Server struct {
	cfg    *global.Config
	auth   security.Options
	router *Router
}

func NewServer(cfg *global.Config, store storage.Gateway, mirror *storage.PresenceMirror) *Server {
	return &Server{
		cfg: cfg,
		auth: security.Options{
			Secret: cfg.JWTSecret,
			Alg:    cfg.JWTAlg,
			TTL:    cfg.JWTTTL,
		},
		router: NewRouter(RouterConfig{
			CheckMembership: cfg.CheckMembership,
			StorageTimeout:  cfg.StorageTimeout,
		}, store, mirror),
	}
}

func (s *Server) Router() *Router { return s.router }

func (s *Server) Close() {
	s.router.Conns().Close()
}
