// Package minecraft queries Java edition servers with the Server List Ping
// status exchange.
package minecraft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tnze/go-mc/bot"
	"github.com/rs/zerolog/log"

	"scanner/internal/model"
	"scanner/internal/provider"
)

type statusResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
}

type pingFunc func(ctx context.Context, addr string) ([]byte, error)

// Client queries one server address
type Client struct {
	address string
	ping    pingFunc
}

// New returns a client for address, which is host or host:port. A bare host
// is resolved through its _minecraft._tcp SRV record first. Query has no
// deadline of its own, callers bound it through ctx.
func New(address string) *Client {
	return &Client{address: address, ping: pingAndList}
}

func pingAndList(ctx context.Context, addr string) ([]byte, error) {
	resp, _, err := bot.PingAndListContext(ctx, addr)
	return resp, err
}

// Query performs one status exchange. Every failure wraps provider.ErrUnavailable.
func (c *Client) Query(ctx context.Context) (model.Sample, error) {
	data, err := c.ping(ctx, c.address)
	if err != nil {
		return model.Sample{}, fmt.Errorf("%w: query %s: %w", provider.ErrUnavailable, c.address, err)
	}

	status, err := decodeStatus(data)
	if err != nil {
		return model.Sample{}, fmt.Errorf("%w: query %s: %w", provider.ErrUnavailable, c.address, err)
	}

	sample := model.Sample{
		OnlineCount: status.Players.Online,
		MaxPlayers:  status.Players.Max,
		Players:     make([]model.SampleEntry, 0, len(status.Players.Sample)),
	}
	for _, p := range status.Players.Sample {
		sample.Players = append(sample.Players, model.SampleEntry{Name: p.Name, ID: p.ID})
	}

	log.Debug().
		Str("address", c.address).
		Str("version", status.Version.Name).
		Int("online", sample.OnlineCount).
		Int("sample", len(sample.Players)).
		Msg("Queried server status")

	return sample, nil
}

func decodeStatus(data []byte) (*statusResponse, error) {
	var status statusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if status.Players.Online < 0 {
		return nil, fmt.Errorf("negative online count %d", status.Players.Online)
	}
	return &status, nil
}
