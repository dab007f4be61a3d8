package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which ele-updates will be sent to the client, so as not to overburden.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// By definition, pongWait encompasses the number of pings to tolerate losing before
	// concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// A Client publishes ele-updates unidirectionally to a web client via websocket.
type Client struct {
	id      string
	updates <-chan []EleUpdate
	ws      *websock
	rootCtx context.Context
	logger  zerolog.Logger
}

// NewClient upgrades the request to a websocket and returns a publisher for sending ui updates
// to it. Updates received faster than the publication rate are merged per element, such that
// only the latest value of each element attribute is sent.
func NewClient(
	updates <-chan []EleUpdate,
	w http.ResponseWriter,
	r *http.Request,
	logger zerolog.Logger,
) (*Client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	id := uuid.NewString()
	return &Client{
		id:      id,
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
		logger:  logger.With().Str("client", id).Logger(),
	}, nil
}

// ID is the session id of the client, for logging.
func (cli *Client) ID() string {
	return cli.id
}

// Sync starts routines to publish incoming updates to the client, monitor its messages,
// and check its liveness. Sync returns nil upon client disconnect or an error if an
// unexpected error occurred. The websocket is closed before returning.
func (cli *Client) Sync() error {
	defer cli.ws.Close()
	cli.logger.Info().Msg("client connected")

	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		// Unblock the reader.
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
		return nil
	})

	err := group.Wait()
	if errors.Is(err, errClientClosed) {
		err = nil
	}
	cli.logger.Info().Err(err).Msg("client disconnected")
	return err
}

var errClientClosed = errors.New("client closed the connection")

// ErrPongDeadlineExceeded is returned when the client stops answering pings.
var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// pingPong pings the client every pingResolution and fails once no pong has been
// received for pongWait. Pongs are only handled while readMessages is running.
func (cli *Client) pingPong(ctx context.Context) error {
	pongs := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(string) error {
		select {
		case pongs <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	deadline := time.Now().Add(pongWait)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pongs:
			deadline = time.Now().Add(pongWait)
		case <-pinger:
			if time.Now().After(deadline) {
				return ErrPongDeadlineExceeded
			}
			err := cli.ws.Do(ctx, func(conn *websocket.Conn) error {
				return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// readMessages drains messages from the client, which sends none but closures.
// Read errors are permanent, hence any error must trigger full teardown.
func (cli *Client) readMessages(ctx context.Context) error {
	for ctx.Err() == nil {
		// Blocks until a message or an error arrives; Sync sets a past deadline on teardown.
		if _, _, err := cli.ws.Conn().ReadMessage(); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case isClosure(err):
				return errClientClosed
			default:
				return fmt.Errorf("read: %w", err)
			}
		}
	}
	return nil
}

// publish sends updates at most once per pubResolution, merging those received in between.
func (cli *Client) publish(ctx context.Context) error {
	pending := map[string]EleUpdate{}
	flush := channerics.NewTicker(ctx.Done(), pubResolution)

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			if !ok {
				return nil
			}
			Merge(pending, updates)
		case <-flush:
			if len(pending) == 0 {
				continue
			}
			if err := cli.send(ctx, Values(pending)); err != nil {
				return err
			}
			pending = map[string]EleUpdate{}
		}
	}
}

func (cli *Client) send(ctx context.Context, batch []EleUpdate) error {
	return cli.ws.Do(ctx, func(conn *websocket.Conn) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return fmt.Errorf("publish: set deadline: %w", err)
		}
		if err := conn.WriteJSON(batch); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		return nil
	})
}

func isClosure(err error) bool {
	return websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}

// ErrSockCongestion is returned when a write waits too long for the socket.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	// Time to wait for other writers to release the socket.
	congestionWait   = time.Second
	closeGracePeriod = 100 * time.Millisecond
)

// websock serializes writes to the websocket, which supports only one concurrent writer.
type websock struct {
	writeSem chan struct{}
	conn     *websocket.Conn
}

func newWebSocket(conn *websocket.Conn) *websock {
	return &websock{
		writeSem: make(chan struct{}, 1),
		conn:     conn,
	}
}

// Conn returns the underlying websocket, for setup and for its single reader only.
func (sock *websock) Conn() *websocket.Conn {
	return sock.conn
}

// Do runs @writeFn once no other writer holds the socket. It is a no-op once ctx is done.
func (sock *websock) Do(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	timer := time.NewTimer(congestionWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.conn)
	case <-timer.C:
		return ErrSockCongestion
	}
}

// Close takes the socket from any writer for good, says goodbye, and closes it.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}

	_ = sock.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	time.Sleep(closeGracePeriod)
	_ = sock.conn.Close()
}
