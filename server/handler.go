package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	pageHello    = "hello.html"
	pageNotFound = "404.html"

	writeTimeout = 10 * time.Second
)

// handleConnection serves exactly one request on conn and closes it.  It
// runs on a worker goroutine.
func (s *Server) handleConnection(conn net.Conn) {
	code := 0
	defer func() {
		conn.Close()
		s.metrics.ObserveRequest(code)
	}()

	if rt := time.Duration(s.cfg.ReadTimeout); rt > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(rt))
	}

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.log.Debugf("%s closed before sending a request", conn.RemoteAddr())
			return
		}
		s.log.Debugf("%s: bad request: %v", conn.RemoteAddr(), err)
		code = http.StatusBadRequest
		s.respond(conn, code, "text/plain; charset=utf-8", []byte("bad request\n"), "")
		return
	}

	code, page := s.route(req)
	body, err := s.pages.Load(page)
	if err != nil {
		s.log.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
		code = http.StatusInternalServerError
		s.respond(conn, code, "text/plain; charset=utf-8", []byte("internal server error\n"), "")
		return
	}

	s.log.Debugf("%s %s -> %d", req.Method, req.URL.Path, code)
	s.respond(conn, code, "text/html; charset=utf-8", body, req.Header.Get("Accept-Encoding"))
}

// route maps a request to a status code and a page name.  GET /sleep holds
// the worker for SleepDuration, which makes a busy pool easy to observe.
func (s *Server) route(req *http.Request) (int, string) {
	if req.Method == http.MethodGet {
		switch req.URL.Path {
		case "/":
			return http.StatusOK, pageHello
		case "/sleep":
			time.Sleep(time.Duration(s.cfg.SleepDuration))
			return http.StatusOK, pageHello
		}
	}
	return http.StatusNotFound, pageNotFound
}

// respond writes a complete HTTP/1.1 response.  The connection is always
// closed afterwards, which the Connection header announces.
func (s *Server) respond(conn net.Conn, code int, contentType string, body []byte, acceptEncoding string) {
	coding := ""
	if s.cfg.Compression {
		if coding = negotiateEncoding(acceptEncoding); coding != "" {
			encoded, err := encodeBody(coding, body)
			if err != nil {
				s.log.Warnf("encode %s: %v", coding, err)
				coding = ""
			} else {
				body = encoded
			}
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	fmt.Fprintf(w, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(w, "Content-Length: %s\r\n", strconv.Itoa(len(body)))
	if coding != "" {
		fmt.Fprintf(w, "Content-Encoding: %s\r\n", coding)
	}
	if s.cfg.Compression {
		w.WriteString("Vary: Accept-Encoding\r\n")
	}
	w.WriteString("Connection: close\r\n\r\n")
	w.Write(body)
	if err := w.Flush(); err != nil {
		s.log.Debugf("%s: write response: %v", conn.RemoteAddr(), err)
	}
}
