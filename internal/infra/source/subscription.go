package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terrylica/gapless-network-data/internal/core/domain"
)

// Subscriber dials the live notification source and opens a newHeads
// subscription. Exactly one subscription exists per connection.
type Subscriber struct {
	url    string
	dialer *websocket.Dialer
}

// NewSubscriber creates a subscriber for a websocket JSON-RPC endpoint.
func NewSubscriber(url string) *Subscriber {
	return &Subscriber{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:             websocket.DefaultDialer.Proxy,
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
		},
	}
}

// Connect dials the endpoint and subscribes to new block heads.
func (s *Subscriber) Connect(ctx context.Context) (*Subscription, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []any{"newHeads"},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	var subResp struct {
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := conn.ReadJSON(&subResp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read subscribe response: %w", err)
	}
	if subResp.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe failed: rpc error %d: %s", subResp.Error.Code, subResp.Error.Message)
	}
	if subResp.Result == "" {
		conn.Close()
		return nil, fmt.Errorf("subscribe failed: empty subscription id")
	}

	return &Subscription{conn: conn, id: subResp.Result}, nil
}

// Subscription is one live newHeads stream.
type Subscription struct {
	conn *websocket.Conn
	id   string
}

// ID returns the upstream subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Next blocks until the next head notification arrives. Frames that are
// not head notifications (keepalives, late RPC responses) are skipped.
// Unblock a pending Next by calling Close.
func (s *Subscription) Next() (domain.Notification, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return domain.Notification{}, err
		}

		var msg struct {
			Method string `json:"method"`
			Params struct {
				Subscription string `json:"subscription"`
				Result       struct {
					Number string `json:"number"`
					Hash   string `json:"hash"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Method != "eth_subscription" || msg.Params.Result.Number == "" {
			continue
		}

		number, err := hexUint64(msg.Params.Result.Number)
		if err != nil {
			continue
		}
		return domain.Notification{Number: number, Hash: msg.Params.Result.Hash}, nil
	}
}

// Close tears down the connection.
func (s *Subscription) Close() error {
	return s.conn.Close()
}
