package httpsrv

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/webitel/wlog"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Addr     string
	host     string
	port     int
	mux      *http.ServeMux
	srv      *http.Server
	log      *wlog.Logger
	listener net.Listener
}

// New binds the listener immediately so the real host/port are known
// before the service registers itself in Consul.
func New(addr string, log *wlog.Logger) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	h, p, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return nil, err
	}

	port, _ := strconv.Atoi(p)

	if h == "::" {
		h = publicAddr()
	}

	mux := http.NewServeMux()

	return &Server{
		Addr: addr,
		mux:  mux,
		srv: &http.Server{
			Handler: mux,
		},
		log:      log,
		host:     h,
		port:     port,
		listener: l,
	}, nil
}

func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) HandleFunc(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

func (s *Server) Listen() error {
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) Shutdown() error {
	s.log.Debug("receive shutdown http")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

func (s *Server) Host() string {
	if e, ok := os.LookupEnv("PROXY_HTTP_HOST"); ok {
		return e
	}

	return s.host
}

func (s *Server) Port() int {
	return s.port
}

func publicAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}

	return "127.0.0.1"
}
