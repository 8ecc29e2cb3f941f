package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wavechat/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Client adapts a websocket connection to the relay's Conn handle:
// inbound frames become dispatched events, outbound events are queued on
// a buffered channel drained by the write pump.
type Client struct {
	conn  *websocket.Conn
	relay *Relay
	sess  *Session
	log   *zap.Logger

	send      chan models.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded websocket connection and registers it with
// the relay. Call Run to start the pumps.
func NewClient(conn *websocket.Conn, relay *Relay, log *zap.Logger) *Client {
	c := &Client{
		conn:  conn,
		relay: relay,
		log:   log,
		send:  make(chan models.Event, sendBuffer),
		done:  make(chan struct{}),
	}
	c.sess = relay.Connect(c)
	return c
}

// Send queues an outbound event. A closed or backed-up client drops the
// event and reports false; delivery is best effort while connected.
func (c *Client) Send(evt models.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Run starts the read and write pumps. It returns immediately; the pumps
// exit when the connection drops.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.relay.Disconnect(c.sess)
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var evt models.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			// One unparseable frame; keep reading.
			continue
		}
		c.relay.Dispatch(c.sess, evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
