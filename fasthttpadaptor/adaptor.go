// Package fasthttpadaptor bridges h2engine.Message/body callbacks to
// fasthttp's Request/Response types, the way the teacher's adaptor.go
// bridged its own Headers/HPACK frames to fasthttp (dgrr/http2
// adaptor.go: fasthttpRequestHeaders/fasthttpResponseHeaders). h2engine
// itself never imports fasthttp; this package is the optional glue a
// host uses to reuse fasthttp.RequestHandler across both HTTP/1.1 and
// HTTP/2 connections driven by the same engine.
package fasthttpadaptor

import (
	"github.com/dgrr/h2engine"
	"github.com/valyala/fasthttp"
)

// RequestFromMessage populates req from msg's method/path/scheme/
// authority pseudo-headers and regular headers, mirroring the teacher's
// per-pseudo-header switch in fasthttpRequestHeaders.
func RequestFromMessage(msg *h2engine.Message, req *fasthttp.Request) {
	req.Header.SetMethod(msg.Method)
	req.SetRequestURI(msg.Path)

	if msg.HasScheme() {
		req.URI().SetScheme(msg.Scheme)
	}
	if msg.HasAuthority() {
		req.URI().SetHost(msg.Authority)
		req.Header.SetHost(msg.Authority)
	}

	for _, h := range msg.Headers {
		switch h.Name {
		case "user-agent":
			req.Header.SetUserAgent(h.Value)
		case "content-type":
			req.Header.SetContentType(h.Value)
		case "content-length":
			// recomputed from the delivered body; h2engine already
			// validated/enforced the declared length upstream.
		default:
			req.Header.Add(h.Name, h.Value)
		}
	}
}

// MessageFromResponse projects resp into a Message carrying a :status
// pseudo-header and a lowercased regular header set, mirroring the
// teacher's fasthttpResponseHeaders (status + content-length synthesized,
// then VisitAll for the rest).
func MessageFromResponse(resp *fasthttp.Response) (*h2engine.Message, []byte) {
	msg := &h2engine.Message{
		Code:          resp.StatusCode(),
		ContentLength: int64(len(resp.Body())),
	}

	resp.Header.VisitAll(func(k, v []byte) {
		name := string(k)
		lname := lowerASCII(name)
		if lname == "content-length" || lname == "connection" {
			return
		}
		msg.Headers = append(msg.Headers, h2engine.Header{Name: lname, Value: string(v)})
	})

	return msg, resp.Body()
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
