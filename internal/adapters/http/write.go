package http

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
)

var errTransferDeadline = errors.New("transfer deadline exceeded")

// writeChunks writes data in ChunkSize pieces. Each write gets the chunk
// timeout, capped by the transfer deadline. A chunk that times out is
// retried until the transfer deadline; any other error ends the write.
// The housekeeper is serviced before every chunk.
func (s *Session) writeChunks(conn net.Conn, data []byte, tun domain.TransportTunables, deadline time.Time) (int, error) {
	written := 0
	for written < len(data) {
		if s.house != nil {
			s.house.Service()
		}

		now := time.Now()
		if !now.Before(deadline) {
			return written, errTransferDeadline
		}
		chunkDeadline := now.Add(tun.ChunkTimeout)
		if chunkDeadline.After(deadline) {
			chunkDeadline = deadline
		}
		if err := conn.SetWriteDeadline(chunkDeadline); err != nil {
			return written, err
		}

		end := written + tun.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		n, err := conn.Write(data[written:end])
		written += n
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Debug("chunk write timed out",
					ports.Int("written", written),
					ports.Int("total", len(data)),
				)
				continue
			}
			return written, err
		}
	}
	return written, nil
}

// readAck waits up to timeout for a status line. It reports whether a 2xx
// status arrived. Failing to read one is only logged.
func (s *Session) readAck(conn net.Conn, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false
	}

	line, err := bufio.NewReaderSize(conn, 256).ReadString('\n')
	if err != nil && line == "" {
		s.logger.Debug("no acknowledgment", ports.Err(fmt.Errorf("%w: %v", domain.ErrAckTimeout, err)))
		return false
	}

	code, ok := parseStatusLine(line)
	if !ok {
		s.logger.Debug("malformed acknowledgment", ports.String("line", strings.TrimSpace(line)))
		return false
	}
	if code/100 != 2 {
		s.logger.Warn("collector rejected frame", ports.Int("status", code))
		return false
	}
	return true
}

// parseStatusLine extracts the code from "HTTP/1.1 200 OK".
func parseStatusLine(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0, false
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 999 {
		return 0, false
	}
	return code, true
}
