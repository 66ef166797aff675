package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"candle-allocator/internal/model"
	"candle-allocator/internal/service"

	"go.uber.org/zap"
)

// Binance 错误码：无效交易对
const codeInvalidSymbol = -1121

// RestClient Binance 现货公开接口 (exchangeInfo / klines / ticker/price)
// 实现 data.CandleSource / data.PriceSource / data.InstrumentSource
type RestClient struct {
	BaseURL string
	HTTP    *http.Client
	logger  *zap.Logger
}

// NewRestClient 初始化 REST 客户端
func NewRestClient(cfg *service.ExchangeConfig, logger *zap.Logger) *RestClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RestClient{
		BaseURL: cfg.RESTURL,
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		logger: logger.With(zap.String("component", "rest"), zap.String("Exchange", cfg.Name)),
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol               string `json:"symbol"`
		Status               string `json:"status"`
		BaseAsset            string `json:"baseAsset"`
		QuoteAsset           string `json:"quoteAsset"`
		IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
	} `json:"symbols"`
}

type priceTicker struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

func (c *RestClient) buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(c.BaseURL + endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid base URL or endpoint: %w", err)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (c *RestClient) fetchJSON(ctx context.Context, endpoint string, params url.Values, target any) error {
	fullURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Code == codeInvalidSymbol {
			return fmt.Errorf("GET %s: %s: %w", endpoint, apiErr.Msg, model.ErrDataUnavailable)
		}
		return fmt.Errorf("GET %s: status %d: %s", endpoint, resp.StatusCode, string(b))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// ListInstruments 返回处于交易状态的现货交易对
func (c *RestClient) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	var info exchangeInfo
	if err := c.fetchJSON(ctx, "/api/v3/exchangeInfo", url.Values{"permissions": {"SPOT"}}, &info); err != nil {
		return nil, err
	}
	out := make([]model.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		out = append(out, model.Instrument{Symbol: s.Symbol, Base: s.BaseAsset, Quote: s.QuoteAsset})
	}
	c.logger.Info("Loaded exchange instruments", zap.Int("Total", len(info.Symbols)), zap.Int("Trading", len(out)))
	return out, nil
}

// FetchCandles 拉取最近 limit 根 K 线 (包含尚未收盘的当前 K 线)
func (c *RestClient) FetchCandles(ctx context.Context, instrument model.Instrument, timeframe string, limit int) (model.CandleWindow, error) {
	interval, err := service.NormalizeInterval(timeframe)
	if err != nil {
		return model.CandleWindow{}, err
	}
	params := url.Values{
		"symbol":   {instrument.Symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	var rows [][]json.Number
	if err := c.fetchJSON(ctx, "/api/v3/klines", params, &rows); err != nil {
		return model.CandleWindow{}, err
	}
	if len(rows) == 0 {
		return model.CandleWindow{}, fmt.Errorf("%s: no klines: %w", instrument.Symbol, model.ErrDataUnavailable)
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return model.CandleWindow{}, fmt.Errorf("%s kline %d: %w", instrument.Symbol, i, err)
		}
		candles = append(candles, candle)
	}
	return model.NewCandleWindow(candles)
}

// [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []json.Number) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}
	openTime, err := row[0].Int64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := service.StringToFloat(row[i+1].String())
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.Candle{
		OpenTime: time.UnixMilli(openTime),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

// FetchLastPrice 最新成交价
func (c *RestClient) FetchLastPrice(ctx context.Context, symbol string) (float64, error) {
	var pt priceTicker
	if err := c.fetchJSON(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, &pt); err != nil {
		return 0, err
	}
	price, err := service.StringToFloat(pt.Price.String())
	if err != nil {
		return 0, fmt.Errorf("%s price %q: %w", symbol, pt.Price, err)
	}
	return price, nil
}
