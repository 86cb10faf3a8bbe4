// Package collector implements the reference collector: device
// registration, frame upload in every supported framing, and a live MJPEG
// view of each device's latest frame.
package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/frameship/internal/ports"
)

const (
	// MaxFrameBytes bounds a single uploaded frame.
	MaxFrameBytes = 8 << 20

	streamBoundary = "frame"
	blankWidth     = 640
	blankHeight    = 480
)

// DefaultRepeatInterval is how often a stream viewer is sent the current
// frame again when nothing new arrives.
const DefaultRepeatInterval = time.Second

// Server serves the collector HTTP API.
type Server struct {
	store  *Store
	logger ports.Logger
	blank  []byte
	repeat time.Duration
}

// NewServer creates a collector backed by store.
func NewServer(store *Store, logger ports.Logger) *Server {
	return &Server{
		store:  store,
		logger: logger,
		blank:  blankFrame(),
		repeat: DefaultRepeatInterval,
	}
}

// SetRepeatInterval changes how often stream viewers get the current frame
// again. Call it before serving.
func (s *Server) SetRepeatInterval(d time.Duration) {
	if d > 0 {
		s.repeat = d
	}
}

// Handler returns the collector routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("POST /register_device", s.register)
	mux.HandleFunc("POST /upload/{device_id}", s.upload)
	mux.HandleFunc("GET /stream/{device_id}", s.stream)
	mux.HandleFunc("GET /list_devices", s.listDevices)
	return mux
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Hello and Welcome"})
}

type registerRequest struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"type"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		writeDetail(w, http.StatusBadRequest, "device_id is required")
		return
	}
	s.store.Register(req.DeviceID, req.Type)
	s.logger.Info("device registered",
		ports.DeviceID(req.DeviceID),
		ports.String("type", req.Type),
		ports.String("remote", r.RemoteAddr),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered", "device_id": req.DeviceID})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("device_id")
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		frame, err := readFrame(r.Body, r.ContentLength)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		s.store.Put(id, frame)

	case mediaType == "multipart/form-data":
		if err := s.uploadForm(r, id); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

	case mediaType == "multipart/x-mixed-replace":
		n, err := s.uploadStream(r, id, params["boundary"])
		s.logger.Info("stream ended",
			ports.DeviceID(id),
			ports.Int("frames", n),
			ports.Err(err),
		)
		if err != nil && n == 0 {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Stream from device %s processed successfully", id),
			"frames":  n,
		})
		return

	default:
		writeDetail(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	s.logger.Debug("frame received", ports.DeviceID(id))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Frame from device %s processed successfully", id),
	})
}

func (s *Server) uploadForm(r *http.Request, id string) error {
	if err := r.ParseMultipartForm(MaxFrameBytes); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return errors.New("missing file field")
	}
	defer f.Close()
	if !strings.HasPrefix(hdr.Header.Get("Content-Type"), "image/") {
		return errors.New("unsupported file type")
	}
	frame, err := readFrame(f, hdr.Size)
	if err != nil {
		return err
	}
	s.store.Put(id, frame)
	return nil
}

// uploadStream stores every image part of a multipart stream as it arrives.
// It returns the number of frames stored.
func (s *Server) uploadStream(r *http.Request, id, boundary string) (int, error) {
	if boundary == "" {
		return 0, errors.New("missing boundary")
	}
	mr := multipart.NewReader(r.Body, boundary)
	n := 0
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if !strings.HasPrefix(part.Header.Get("Content-Type"), "image/") {
			part.Close()
			continue
		}
		size := int64(-1)
		if v := part.Header.Get("Content-Length"); v != "" {
			if l, err := strconv.ParseInt(v, 10, 64); err == nil {
				size = l
			}
		}
		frame, err := readFrame(part, size)
		part.Close()
		if err != nil {
			return n, err
		}
		s.store.Put(id, frame)
		n++
	}
}

// readFrame reads one frame. With a known size it reads exactly that many
// bytes so a streamed part is available before the next boundary arrives.
func readFrame(r io.Reader, size int64) ([]byte, error) {
	if size > MaxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	if size > 0 {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		return buf, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r, MaxFrameBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if len(buf) > MaxFrameBytes {
		return nil, errors.New("frame exceeds limit")
	}
	if len(buf) == 0 {
		return nil, errors.New("empty frame")
	}
	return buf, nil
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("device_id")
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.repeat)
	defer ticker.Stop()

	for {
		frame, changed := s.store.Latest(id)
		if frame == nil {
			frame = s.blank
		}
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-changed:
		case <-ticker.C:
		}
	}
}

func (s *Server) listDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"devices": s.store.Devices()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// blankFrame is shown for devices that have not sent anything yet.
func blankFrame() []byte {
	img := image.NewGray(image.Rect(0, 0, blankWidth, blankHeight))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil
	}
	return buf.Bytes()
}
