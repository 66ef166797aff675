package api

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"candle-allocator/internal/data"
	"candle-allocator/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// MiniTicker Binance !miniTicker@arr 推送的单个元素
type MiniTicker struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // 毫秒
	Symbol    string `json:"s"`
	Close     string `json:"c"` // 最新价
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
}

// Connector 只负责连接和收集全市场最新价，交给 PriceBook 过滤
type Connector struct {
	wsConn        *websocket.Conn
	wsURL         string
	tickerChannel chan data.Ticker
	logger        *zap.Logger
}

// NewConnector 初始化 websocket 连接器
func NewConnector(wsURL string, logger *zap.Logger) *Connector {
	// 确保通道有足够的缓冲区来应对全市场推送
	tickerChan := make(chan data.Ticker, 4096)
	return &Connector{
		wsURL:         wsURL,
		tickerChannel: tickerChan,
		logger:        logger.With(zap.String("component", "connector")),
	}
}

// Start 建立连接并持续读取，断线后重连，ctx 取消时关闭输出通道
func (c *Connector) Start(ctx context.Context) {
	defer close(c.tickerChannel)
	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Error("Failed to connect to WS", zap.String("URL", c.wsURL), zap.Error(err))
		} else {
			c.readLoop(ctx)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("Connector stopped")
			return
		case <-time.After(reconnectDelay):
			c.logger.Info("Reconnecting to WS...", zap.String("URL", c.wsURL))
		}
	}
}

func (c *Connector) connect(ctx context.Context) error {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.wsConn = conn
	c.logger.Info("Subscribed to all-market mini ticker stream", zap.String("URL", c.wsURL))
	return nil
}

// readLoop 持续读取 WS 消息直到出错或 ctx 取消
func (c *Connector) readLoop(ctx context.Context) {
	defer c.wsConn.Close()

	// ctx 取消时关闭连接以打断阻塞的 ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = c.wsConn.Close() })
	defer stop()

	for {
		_, message, err := c.wsConn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Error reading WS message", zap.Error(err))
			}
			return
		}
		for _, t := range c.decode(message) {
			// 使用 select/default 防止阻塞 Connector
			select {
			case c.tickerChannel <- t:
			default:
				c.logger.Debug("Ticker channel full! Dropping price update", zap.String("Symbol", t.Symbol))
			}
		}
	}
}

func (c *Connector) decode(message []byte) []data.Ticker {
	var batch []MiniTicker
	if err := json.Unmarshal(message, &batch); err != nil {
		c.logger.Debug("Mini ticker unmarshal error", zap.Error(err))
		return nil
	}
	out := make([]data.Ticker, 0, len(batch))
	for _, mt := range batch {
		price, err := service.StringToFloat(mt.Close)
		if err != nil || price <= 0 {
			continue
		}
		out = append(out, data.Ticker{Symbol: mt.Symbol, Price: price, Timestamp: mt.EventTime})
	}
	return out
}

// GetTickerChannel 供 PriceBook 消费
func (c *Connector) GetTickerChannel() <-chan data.Ticker {
	return c.tickerChannel
}
