package pose

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-posedrive/internal/log"
)

// RemoteEstimator sends frames to a pose service over a websocket and waits
// for the poses. One request is in flight at a time.
type RemoteEstimator struct {
	url          string
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// remoteRequest is the frame message sent to the pose service.
type remoteRequest struct {
	Type  string `json:"type"`
	Frame string `json:"frame"` // base64 JPEG
}

// remoteResponse is the pose service reply.
type remoteResponse struct {
	Poses []Pose `json:"poses"`
	Error string `json:"error,omitempty"`
}

// NewRemoteEstimator creates an estimator for the service at url
// (e.g. "ws://localhost:8765/pose"). The connection is opened lazily.
func NewRemoteEstimator(url string) *RemoteEstimator {
	return &RemoteEstimator{
		url:          url,
		readTimeout:  5 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

// Estimate sends one frame and returns the service's poses.
// A failed round trip drops the connection; the next call redials.
func (r *RemoteEstimator) Estimate(ctx context.Context, jpeg []byte) ([]Pose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if r.conn == nil {
		if err := r.dial(ctx); err != nil {
			return nil, err
		}
	}

	poses, err := r.roundTrip(ctx, jpeg)
	if err != nil {
		var svcErr *ServiceError
		if !errors.As(err, &svcErr) {
			r.conn.Close()
			r.conn = nil
		}
		return nil, err
	}
	return poses, nil
}

func (r *RemoteEstimator) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("pose service connect failed: %w", err)
	}

	log.Info("pose service connected", "url", r.url)
	r.conn = conn
	return nil
}

func (r *RemoteEstimator) roundTrip(ctx context.Context, jpeg []byte) ([]Pose, error) {
	req := remoteRequest{
		Type:  "frame",
		Frame: base64.StdEncoding.EncodeToString(jpeg),
	}

	r.conn.SetWriteDeadline(r.deadline(ctx, r.writeTimeout))
	if err := r.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}

	r.conn.SetReadDeadline(r.deadline(ctx, r.readTimeout))
	var resp remoteResponse
	if err := r.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("read poses: %w", err)
	}

	if resp.Error != "" {
		return nil, &ServiceError{Message: resp.Error}
	}
	return resp.Poses, nil
}

// deadline picks the earlier of ctx's deadline and now+timeout.
func (r *RemoteEstimator) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// Close closes the connection.
func (r *RemoteEstimator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.conn == nil {
		return nil
	}
	r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := r.conn.Close()
	r.conn = nil
	return err
}

// ServiceError is an error reported by the pose service itself.
// The connection stays usable after one.
type ServiceError struct {
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return "pose service: " + e.Message
}
