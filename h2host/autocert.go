package h2host

import (
	"crypto/tls"
	"net"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ServeAutocertTLS accepts TLS connections whose certificates are
// provisioned on demand by an ACME CA (Let's Encrypt by default),
// grounded on the teacher's examples/autocert/main.go: there, a
// tls.Config with GetCertificate wired to autocert.Manager.GetCertificate
// and acme.ALPNProto in NextProtos fed fasthttp.Server.ListenAndServeTLS;
// here the same tls.Config is handed to this engine's own TLS accept
// loop instead, since h2host owns the connection loop rather than
// delegating it to fasthttp (see package doc).
//
// m.HostPolicy should be set by the caller (e.g. autocert.HostWhitelist)
// before calling this; ServeAutocertTLS does not second-guess which
// hosts are eligible for a certificate.
func (srv *Server) ServeAutocertTLS(ln net.Listener, m *autocert.Manager) error {
	cfg := &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", acme.ALPNProto, "http/1.1"},
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
