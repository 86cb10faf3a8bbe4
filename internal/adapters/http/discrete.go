package http

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
)

// sendDiscrete opens a connection, posts one frame with a Content-Length
// body, reads the status line if one arrives in time and closes.
func (s *Session) sendDiscrete(ctx context.Context, deviceID string, f *domain.Frame, tun domain.TransportTunables) domain.Delivery {
	conn, err := s.connect(ctx, tun)
	if err != nil {
		return domain.Delivery{Outcome: domain.ConnectError, Err: err}
	}
	defer s.drop(conn)

	deadline := time.Now().Add(tun.TransferTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	header := fmt.Sprintf("POST %s HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Content-Type: image/jpeg\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n\r\n",
		s.uploadPath(deviceID), s.host, f.Len())

	if _, err := s.writeChunks(conn, []byte(header), tun, deadline); err != nil {
		return partial(0, f.Len(), err)
	}
	n, err := s.writeChunks(conn, f.Bytes(), tun, deadline)
	if err != nil {
		return partial(n, f.Len(), err)
	}

	return domain.Delivery{
		Outcome: domain.Delivered,
		Written: n,
		Acked:   s.readAck(conn, tun.AckTimeout),
	}
}

func partial(written, total int, err error) domain.Delivery {
	return domain.Delivery{
		Outcome: domain.PartialSend,
		Written: written,
		Err:     &domain.PartialSendError{Written: written, Total: total, Err: err},
	}
}
