package web

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-cameraview/pkg/cameraview"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Event types sent on /ws/events.
const (
	EventCameraOpened      = "camera_opened"
	EventCameraClosed      = "camera_closed"
	EventCameraUnavailable = "camera_unavailable"
	EventSessionConfigured = "session_configured"
	EventFocus             = "focus"
	EventPictureTaken      = "picture_taken"
	EventPictureFailed     = "picture_failed"
	EventError             = "error"
)

// maxEvents bounds the in-memory event history.
const maxEvents = 200

// Event is one controller notification.
type Event struct {
	ID    string    `json:"id"`
	Type  string    `json:"type"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
	X     *float64  `json:"x,omitempty"`
	Y     *float64  `json:"y,omitempty"`
	Bytes int       `json:"bytes,omitempty"`
}

func newEvent(typ string) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC()}
}

// Callbacks returns controller callbacks that record and broadcast events.
// Pictures also go to /ws/pictures and GET /api/picture.
func (s *Server) Callbacks() cameraview.Callbacks {
	return cameraview.Callbacks{
		OnCameraOpened:      func() { s.emit(newEvent(EventCameraOpened)) },
		OnCameraClosed:      func() { s.emit(newEvent(EventCameraClosed)) },
		OnCameraUnavailable: func() { s.emit(newEvent(EventCameraUnavailable)) },
		OnSessionConfigured: func() { s.emit(newEvent(EventSessionConfigured)) },
		OnFocusAt: func(x, y float64) {
			e := newEvent(EventFocus)
			e.X, e.Y = &x, &y
			s.emit(e)
		},
		OnPictureTaken: func(data []byte) {
			s.setPicture(data)
			s.pictures.BroadcastBinary(data)
			e := newEvent(EventPictureTaken)
			e.Bytes = len(data)
			s.emit(e)
		},
		OnPictureFailed: func(err error) {
			e := newEvent(EventPictureFailed)
			e.Error = err.Error()
			s.emit(e)
		},
		OnError: func(err error) {
			e := newEvent(EventError)
			e.Error = err.Error()
			s.emit(e)
		},
		ChoosePictureSize: s.choosePictureSize,
	}
}

// choosePictureSize caps the still size when a limit is configured.
func (s *Server) choosePictureSize(available *sizes.SizeMap, ratio sizes.AspectRatio, def sizes.Size) sizes.Size {
	limit := s.maxPicture
	if limit.IsZero() || (def.Width <= limit.Width && def.Height <= limit.Height) {
		return def
	}
	best := sizes.Size{}
	for _, sz := range available.Sizes(ratio) {
		if sz.Width <= limit.Width && sz.Height <= limit.Height {
			best = sz
		}
	}
	if best.IsZero() {
		return def
	}
	return best
}

func (s *Server) emit(e Event) {
	s.eventsMu.Lock()
	s.history = append(s.history, e)
	if len(s.history) > maxEvents {
		s.history = s.history[1:]
	}
	s.eventsMu.Unlock()

	if err := s.events.BroadcastJSON(e); err != nil {
		s.logger.Warn("failed to broadcast event", "type", e.Type, "error", err)
	}
}

// Events returns the recorded events, oldest first.
func (s *Server) Events() []Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return append([]Event(nil), s.history...)
}

func (s *Server) setPicture(data []byte) {
	s.pictureMu.Lock()
	s.picture = data
	s.pictureMu.Unlock()
}

func (s *Server) lastPicture() []byte {
	s.pictureMu.RLock()
	defer s.pictureMu.RUnlock()
	return s.picture
}
