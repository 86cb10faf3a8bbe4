package http

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
)

const (
	streamBoundary  = "frame"
	streamCloseWait = time.Second
)

// sendStream writes one multipart part on the long-lived stream request,
// opening it first if needed. The request body uses chunked transfer
// encoding with one HTTP chunk per part. Any write failure closes the stream
// and the next frame reopens it.
func (s *Session) sendStream(ctx context.Context, deviceID string, f *domain.Frame, tun domain.TransportTunables) domain.Delivery {
	if s.stream != nil && s.streamDevice != deviceID {
		_ = s.closeStream(true)
	}

	deadline := time.Now().Add(tun.TransferTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if s.stream == nil {
		conn, err := s.connect(ctx, tun)
		if err != nil {
			return domain.Delivery{Outcome: domain.ConnectError, Err: err}
		}
		header := fmt.Sprintf("POST %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Content-Type: multipart/x-mixed-replace; boundary=%s\r\n"+
			"Transfer-Encoding: chunked\r\n\r\n",
			s.uploadPath(deviceID), s.host, streamBoundary)
		if _, err := s.writeChunks(conn, []byte(header), tun, deadline); err != nil {
			s.drop(conn)
			return partial(0, f.Len(), err)
		}
		s.stream = conn
		s.streamDevice = deviceID
		s.logger.Info("stream opened", ports.DeviceID(deviceID))
	}

	partHeader := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, f.Len())
	chunkLen := len(partHeader) + f.Len() + len("\r\n")
	prefix := fmt.Sprintf("%x\r\n%s", chunkLen, partHeader)

	if _, err := s.writeChunks(s.stream, []byte(prefix), tun, deadline); err != nil {
		_ = s.closeStream(false)
		return partial(0, f.Len(), err)
	}
	n, err := s.writeChunks(s.stream, f.Bytes(), tun, deadline)
	if err != nil {
		_ = s.closeStream(false)
		return partial(n, f.Len(), err)
	}
	// Part terminator, then chunk terminator.
	if _, err := s.writeChunks(s.stream, []byte("\r\n\r\n"), tun, deadline); err != nil {
		_ = s.closeStream(false)
		return partial(n, f.Len(), err)
	}

	return domain.Delivery{Outcome: domain.Delivered, Written: n}
}

// closeStream ends the stream request. With graceful set it first writes the
// closing boundary and the terminating zero-length chunk.
func (s *Session) closeStream(graceful bool) error {
	conn := s.stream
	s.stream = nil
	s.streamDevice = ""
	if conn == nil {
		return nil
	}

	var err error
	if graceful {
		s.setState(Draining)
		err = writeTrailer(conn)
	}
	s.drop(conn)
	return err
}

func writeTrailer(conn net.Conn) error {
	closing := "--" + streamBoundary + "--\r\n"
	trailer := fmt.Sprintf("%x\r\n%s\r\n0\r\n\r\n", len(closing), closing)
	if err := conn.SetWriteDeadline(time.Now().Add(streamCloseWait)); err != nil {
		return err
	}
	_, err := conn.Write([]byte(trailer))
	return err
}
