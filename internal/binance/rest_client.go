package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"binance-dca-bot/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.binance.com/api/v3"
	testnetBaseURL = "https://testnet.binance.vision/api/v3"
	recvWindow     = "5000" // How long a request is valid in milliseconds

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
	OrderSideBuy    = "BUY"
	OrderSideSell   = "SELL"
)

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	GetServerTime() (int64, error)
	GetSymbolPrice(symbol string) (decimal.Decimal, error)
	GetAllTickerPrices() (map[string]string, error)
	GetExchangeInfo() (*ExchangeInfoResponse, error)
	GetAccount() (*AccountResponse, error)
	GetMyTrades(symbol string, startTime, endTime int64) ([]RawTrade, error)
	GetDailyKlines(symbol string, startTime, endTime int64) ([]Kline, error)
	GetOpenOrders(symbol string) ([]OpenOrder, error)
	CreateOrder(order OrderRequest) (*CreateOrderResponse, error)
	CancelOrder(symbol string, orderID int64) error
}

// RestClient is a client for the Binance REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client. API credentials are
// passed explicitly; they come from the key vault, not the config file.
func NewRestClient(cfg *config.Binance, apiKey, secretKey string, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Testnet")
	} else {
		url = baseURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    apiKey,
		secretKey: secretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signedQuery appends timestamp, recvWindow and the signature to the params.
func (c *RestClient) signedQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	var lastStatus string
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			lastStatus = resp.Status()
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// The last attempt already failed; no point sleeping before giving up.
		if i == maxRetries-1 {
			break
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
	}
	return nil, fmt.Errorf("request failed after %d attempts, last status %s", maxRetries, lastStatus)
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime() (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetSymbolPrice fetches the latest price for one symbol.
func (c *RestClient) GetSymbolPrice(symbol string) (decimal.Decimal, error) {
	var ticker TickerPrice

	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&ticker)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/ticker/price", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable price %q for %s: %w", ticker.Price, symbol, err)
	}
	return price, nil
}

// GetAllTickerPrices fetches the latest price for all symbols.
func (c *RestClient) GetAllTickerPrices() (map[string]string, error) {
	var prices []*TickerPrice

	req := c.client.R().
		SetResult(&prices).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get all ticker prices: %w", err)
	}

	result := resp.Result().(*[]*TickerPrice)
	priceMap := make(map[string]string, len(*result))
	for _, p := range *result {
		priceMap[p.Symbol] = p.Price
	}

	return priceMap, nil
}

// ExchangeInfoResponse represents the full response from the /exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol             string   `json:"symbol"`
	Status             string   `json:"status"`
	BaseAsset          string   `json:"baseAsset"`
	QuoteAsset         string   `json:"quoteAsset"`
	SpotTradingAllowed bool     `json:"isSpotTradingAllowed"`
	Filters            []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol.
type Filter struct {
	FilterType  string `json:"filterType"`
	MinQty      string `json:"minQty,omitempty"`
	MaxQty      string `json:"maxQty,omitempty"`
	StepSize    string `json:"stepSize,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
}

// GetExchangeInfo fetches exchange trading rules and symbol information.
func (c *RestClient) GetExchangeInfo() (*ExchangeInfoResponse, error) {
	var exchangeInfo ExchangeInfoResponse

	req := c.client.R().
		SetResult(&exchangeInfo).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/exchangeInfo", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	return resp.Result().(*ExchangeInfoResponse), nil
}

// AccountResponse represents the signed /account endpoint response.
type AccountResponse struct {
	AccountType string       `json:"accountType"`
	Balances    []RawBalance `json:"balances"`
}

// RawBalance is one wallet entry as returned by the exchange, numbers still
// encoded as strings.
type RawBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// GetAccount fetches the account information, including all wallet balances.
func (c *RestClient) GetAccount() (*AccountResponse, error) {
	var account AccountResponse

	query := c.signedQuery(url.Values{})
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query).
		SetResult(&account)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/account", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return resp.Result().(*AccountResponse), nil
}

// RawTrade is one executed trade as returned by the /myTrades endpoint.
type RawTrade struct {
	Symbol          string `json:"symbol"`
	OrderID         int64  `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

// GetMyTrades fetches the trade history for a symbol. startTime and endTime
// are epoch milliseconds; zero means unbounded.
func (c *RestClient) GetMyTrades(symbol string, startTime, endTime int64) ([]RawTrade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if startTime > 0 {
		params.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var trades []RawTrade
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signedQuery(params)).
		SetResult(&trades)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/myTrades", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", symbol, err)
	}

	return *resp.Result().(*[]RawTrade), nil
}

// Kline is one daily candle. Only the fields the strategy needs are kept.
type Kline struct {
	OpenTime  int64
	Open      string
	High      string
	Low       string
	Close     string
	CloseTime int64
}

// GetDailyKlines fetches daily candles for a symbol within the given epoch
// millisecond range.
func (c *RestClient) GetDailyKlines(symbol string, startTime, endTime int64) ([]Kline, error) {
	var raw [][]interface{}

	req := c.client.R().
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  "1d",
			"startTime": strconv.FormatInt(startTime, 10),
			"endTime":   strconv.FormatInt(endTime, 10),
		}).
		SetResult(&raw)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, entry := range raw {
		kline, err := parseKline(entry)
		if err != nil {
			return nil, fmt.Errorf("unexpected kline shape for %s: %w", symbol, err)
		}
		klines = append(klines, kline)
	}
	return klines, nil
}

// parseKline converts the positional kline array into a Kline struct.
func parseKline(entry []interface{}) (Kline, error) {
	if len(entry) < 7 {
		return Kline{}, fmt.Errorf("expected at least 7 fields, got %d", len(entry))
	}

	openTime, ok1 := entry[0].(float64)
	open, ok2 := entry[1].(string)
	high, ok3 := entry[2].(string)
	low, ok4 := entry[3].(string)
	closePrice, ok5 := entry[4].(string)
	closeTime, ok6 := entry[6].(float64)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return Kline{}, fmt.Errorf("unexpected field types in kline entry")
	}

	return Kline{
		OpenTime:  int64(openTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		CloseTime: int64(closeTime),
	}, nil
}

// OpenOrder is one resting order as returned by the /openOrders endpoint.
type OpenOrder struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Time                int64  `json:"time"`
}

// GetOpenOrders fetches resting orders; symbol may be empty for all symbols.
func (c *RestClient) GetOpenOrders(symbol string) ([]OpenOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var orders []OpenOrder
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signedQuery(params)).
		SetResult(&orders)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/openOrders", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}

	return *resp.Result().(*[]OpenOrder), nil
}

// OrderRequest describes an order to place. MARKET buys are sized by
// QuoteOrderQty (spend this much quote asset); LIMIT orders by Quantity
// and Price.
type OrderRequest struct {
	Symbol        string
	Side          string
	Type          string
	Quantity      decimal.Decimal
	QuoteOrderQty decimal.Decimal
	Price         decimal.Decimal
}

// Fill is one partial execution reported in an order response.
type Fill struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	TransactTime        int64  `json:"transactTime"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Fills               []Fill `json:"fills"`
}

// CreateOrder places a new order on Binance.
func (c *RestClient) CreateOrder(order OrderRequest) (*CreateOrderResponse, error) {
	if order.Side != OrderSideBuy && order.Side != OrderSideSell {
		return nil, fmt.Errorf("invalid order side %q: must be BUY or SELL", order.Side)
	}
	if order.Type == OrderTypeLimit && order.Price.IsZero() {
		return nil, fmt.Errorf("price must be specified for LIMIT orders")
	}

	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", order.Side)
	params.Set("type", order.Type)
	if !order.Quantity.IsZero() {
		params.Set("quantity", order.Quantity.String())
	}
	if !order.QuoteOrderQty.IsZero() {
		params.Set("quoteOrderQty", order.QuoteOrderQty.String())
	}
	if order.Type == OrderTypeLimit {
		params.Set("price", order.Price.String())
		params.Set("timeInForce", "GTC") // Good-Til-Canceled
	}

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(c.signedQuery(params)).
		SetResult(&CreateOrderResponse{})

	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/order", req)
	if err != nil {
		c.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", order.Symbol),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*CreateOrderResponse)
	c.logger.Info("Successfully created order", zap.Any("order", result))
	return result, nil
}

// CancelOrder cancels a resting order.
func (c *RestClient) CancelOrder(symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(c.signedQuery(params))
	ctx := context.Background()

	_, err := c.doRequest(ctx, "DELETE", "/order", req)
	if err != nil {
		c.logger.Error("Failed to cancel order",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.Int64("order_id", orderID),
		)
		return fmt.Errorf("failed to cancel order %d: %w", orderID, err)
	}

	c.logger.Info("Order canceled", zap.String("symbol", symbol), zap.Int64("order_id", orderID))
	return nil
}
