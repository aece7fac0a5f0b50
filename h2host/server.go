// Package h2host is a net.Conn-driven host for h2engine.Connection: the
// adapted descendant of the teacher's conn.go/serverConn.go/server.go
// goroutine-per-connection transport loop (dgrr/http2), now a consumer
// of the engine's Sink/Feed contract instead of being the engine. It
// reuses fasthttp's Request/Response/RequestHandler so the same
// fasthttp.RequestHandler a caller already writes for HTTP/1.1 also
// serves HTTP/2 and h2c requests driven by h2engine.
package h2host

import (
	"bytes"
	"crypto/tls"
	"net"
	"time"

	"github.com/dgrr/h2engine"
	"github.com/dgrr/h2engine/fasthttpadaptor"
	"github.com/valyala/fasthttp"
)

// Options configures connection lifecycle behavior the engine itself
// has no opinion on (spec.md §9: no I/O, no timers in the core).
type Options struct {
	// IdleTimeout resets on every byte read; zero disables it.
	IdleTimeout time.Duration
	// PingInterval, if non-zero, sends an h2 PING on a timer. The time of
	// the last PONG is recorded; a missing PONG does not close the
	// connection.
	PingInterval time.Duration
	// Logger receives connection-lifecycle diagnostics, mirroring the
	// teacher's fasthttp.Logger-gated debug logging in serverConn.go.
	Logger fasthttp.Logger
	Debug  bool
	// OnDisconnect fires once per connection, after it has stopped being
	// served, win or error.
	OnDisconnect func(net.Conn)
}

// Server serves both HTTP/1.1 and HTTP/2 (h2 via ALPN, or h2c via
// Upgrade/prior-knowledge) over the same fasthttp.RequestHandler,
// driven entirely by h2engine rather than net/http or fasthttp's own
// connection loop.
type Server struct {
	Handler fasthttp.RequestHandler
	Config  h2engine.Config
	Options Options
}

func (srv *Server) logf(format string, args ...interface{}) {
	if srv.Options.Debug && srv.Options.Logger != nil {
		srv.Options.Logger.Printf(format, args...)
	}
}

// Serve accepts plaintext connections (HTTP/1.1, with optional h2c
// upgrade or prior-knowledge handled by the engine itself).
func (srv *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go srv.serveConn(conn, h2engine.VersionHTTP1)
	}
}

// ServeTLSEmbed accepts TLS connections, negotiating "h2" via ALPN
// (falling back to HTTP/1.1), mirroring the teacher's
// fasthttp.Server.ServeTLSEmbed naming (server_fasthttp.go).
func (srv *Server) ServeTLSEmbed(ln net.Listener, certPEM, keyPEM []byte) error {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	tln := tls.NewListener(ln, cfg)

	for {
		conn, err := tln.Accept()
		if err != nil {
			return err
		}
		go srv.serveTLSConn(conn.(*tls.Conn))
	}
}

func (srv *Server) serveTLSConn(conn *tls.Conn) {
	if err := conn.Handshake(); err != nil {
		srv.logf("h2host: TLS handshake failed: %v", err)
		conn.Close()
		return
	}

	version := h2engine.VersionHTTP1
	if conn.ConnectionState().NegotiatedProtocol == "h2" {
		version = h2engine.VersionHTTP2
	}

	srv.serveConn(conn, version)
}

func (srv *Server) serveConn(conn net.Conn, version h2engine.Version) {
	defer conn.Close()

	h := &connHost{conn: conn, srv: srv, pending: make(map[uint32]*exchange)}
	c := h2engine.NewConnection(h2engine.RoleServer, srv.Config, h)
	h.c = c

	if err := c.Begin(version); err != nil {
		srv.logf("h2host: begin failed: %v", err)
		return
	}

	var pingTimer *time.Timer
	if srv.Options.PingInterval > 0 {
		pingTimer = time.NewTimer(srv.Options.PingInterval)
		defer pingTimer.Stop()
		go h.pingLoop(pingTimer)
	}

	buf := make([]byte, 32*1024)
	for {
		if srv.Options.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(srv.Options.IdleTimeout))
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := c.Feed(buf[:n]); ferr != nil {
				srv.logf("h2host: feed error: %v", ferr)
				break
			}
		}
		if err != nil {
			c.EOF()
			break
		}
	}

	if srv.Options.OnDisconnect != nil {
		srv.Options.OnDisconnect(conn)
	}
}

// exchange accumulates one in-flight request's body while its HEADERS
// (or h1 head) have been seen but MessageTail hasn't fired yet.
type exchange struct {
	req  fasthttp.Request
	body bytes.Buffer
}

// connHost is the Sink implementation bridging engine events to
// fasthttp.Request/Response and back, one per connection.
type connHost struct {
	h2engine.BaseSink

	conn net.Conn
	srv  *Server
	c    *h2engine.Connection

	pending map[uint32]*exchange

	lastPong time.Time
}

func (h *connHost) Writev(bufs [][]byte) error {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		if _, err := h.conn.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func (h *connHost) StreamStart(id uint32) {
	h.pending[id] = &exchange{}
}

func (h *connHost) StreamEnd(id uint32) {
	delete(h.pending, id)
}

func (h *connHost) MessageHead(id uint32, msg *h2engine.Message) {
	ex := h.pending[id]
	if ex == nil {
		ex = &exchange{}
		h.pending[id] = ex
	}
	fasthttpadaptor.RequestFromMessage(msg, &ex.req)
}

func (h *connHost) MessageData(id uint32, p []byte) {
	if ex := h.pending[id]; ex != nil {
		ex.body.Write(p)
	}
}

func (h *connHost) MessageTail(id uint32, _ []h2engine.Header) {
	ex := h.pending[id]
	if ex == nil {
		return
	}
	ex.req.SetBody(ex.body.Bytes())

	ctx := &fasthttp.RequestCtx{}
	ctx.Request = ex.req

	if h.srv.Handler != nil {
		h.srv.Handler(ctx)
	}

	respMsg, body := fasthttpadaptor.MessageFromResponse(&ctx.Response)

	endStream := len(body) == 0
	if err := h.c.WriteHead(id, respMsg, endStream); err != nil {
		h.srv.logf("h2host: write head failed: %v", err)
		return
	}
	if !endStream {
		if _, err := h.c.WriteData(id, body, true); err != nil {
			h.srv.logf("h2host: write data failed: %v", err)
		}
	}
}

func (h *connHost) Pong(data [8]byte) {
	h.lastPong = time.Now()
}

func (h *connHost) pingLoop(timer *time.Timer) {
	interval := h.srv.Options.PingInterval
	for range timer.C {
		if err := h.c.WritePing([8]byte{}); err != nil {
			return
		}
		timer.Reset(interval)
	}
}
