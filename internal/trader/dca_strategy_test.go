package trader

import (
	"testing"
	"time"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/models"
	"binance-dca-bot/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockRestClient is a mock of the exchange client for strategy tests.
type MockRestClient struct {
	mock.Mock
}

func (m *MockRestClient) GetServerTime() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRestClient) GetSymbolPrice(symbol string) (decimal.Decimal, error) {
	args := m.Called(symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRestClient) GetAllTickerPrices() (map[string]string, error) {
	args := m.Called()
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockRestClient) GetExchangeInfo() (*binance.ExchangeInfoResponse, error) {
	args := m.Called()
	return args.Get(0).(*binance.ExchangeInfoResponse), args.Error(1)
}

func (m *MockRestClient) GetAccount() (*binance.AccountResponse, error) {
	args := m.Called()
	return args.Get(0).(*binance.AccountResponse), args.Error(1)
}

func (m *MockRestClient) GetMyTrades(symbol string, startTime, endTime int64) ([]binance.RawTrade, error) {
	args := m.Called(symbol, startTime, endTime)
	return args.Get(0).([]binance.RawTrade), args.Error(1)
}

func (m *MockRestClient) GetDailyKlines(symbol string, startTime, endTime int64) ([]binance.Kline, error) {
	args := m.Called(symbol, startTime, endTime)
	return args.Get(0).([]binance.Kline), args.Error(1)
}

func (m *MockRestClient) GetOpenOrders(symbol string) ([]binance.OpenOrder, error) {
	args := m.Called(symbol)
	return args.Get(0).([]binance.OpenOrder), args.Error(1)
}

func (m *MockRestClient) CreateOrder(order binance.OrderRequest) (*binance.CreateOrderResponse, error) {
	args := m.Called(order)
	return args.Get(0).(*binance.CreateOrderResponse), args.Error(1)
}

func (m *MockRestClient) CancelOrder(symbol string, orderID int64) error {
	args := m.Called(symbol, orderID)
	return args.Error(0)
}

func setupTestStore(t *testing.T) *store.Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Trade{}, &models.DailyHighPrice{}))
	return store.New(db, zap.NewNop())
}

func testUser() *config.UserConfig {
	return &config.UserConfig{
		Assets:      []string{"BTC"},
		AmountUSD:   map[string]float64{"BTC": 100},
		DropPercent: 2,
		Frequency:   FrequencyMonthly,
	}
}

func testBinanceConfig() *config.Binance {
	return &config.Binance{QuoteAsset: "USDC", MinTradeAmount: 15}
}

func newTestStrategy(t *testing.T, client *MockRestClient) (*DCAStrategy, *store.Store) {
	st := setupTestStore(t)
	s := NewDCAStrategy(client, st, testBinanceConfig(), zap.NewNop())
	s.now = func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return s, st
}

func sufficientAccount() *binance.AccountResponse {
	return &binance.AccountResponse{
		AccountType: "SPOT",
		Balances: []binance.RawBalance{
			{Asset: "USDC", Free: "500.00000000", Locked: "0.00000000"},
		},
	}
}

func seedDailyHigh(t *testing.T, st *store.Store, asset, high string) {
	err := st.InsertDailyHighPrices([]models.DailyHighPrice{
		{Asset: asset, HighPrice: decimal.RequireFromString(high), Timestamp: time.Now().UTC()},
	})
	assert.NoError(t, err)
}

func TestDCAStrategy_MarketBuyOnDrop(t *testing.T) {
	client := new(MockRestClient)
	s, st := newTestStrategy(t, client)

	// Reference high 61000, drop 2% -> target 59780. Current 59000 is at or
	// below the target, so the buy is an immediate market order.
	seedDailyHigh(t, st, "BTC", "61000")

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
	client.On("GetAccount").Return(sufficientAccount(), nil)
	client.On("CreateOrder", mock.MatchedBy(func(order binance.OrderRequest) bool {
		return order.Type == binance.OrderTypeMarket &&
			order.Side == binance.OrderSideBuy &&
			order.Symbol == "BTCUSDC" &&
			order.QuoteOrderQty.Equal(decimal.NewFromInt(100))
	})).Return(&binance.CreateOrderResponse{
		Symbol:              "BTCUSDC",
		OrderID:             42,
		TransactTime:        time.Date(2026, 3, 15, 12, 0, 1, 0, time.UTC).UnixMilli(),
		ExecutedQuantity:    "0.00169000",
		CummulativeQuoteQty: "99.99000000",
		Status:              "FILLED",
		Side:                binance.OrderSideBuy,
		Fills: []binance.Fill{
			{Price: "59165.68", Qty: "0.00169000", Commission: "0.00000169", CommissionAsset: "BTC"},
		},
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertExpectations(t)

	// The filled market order is persisted immediately.
	trades, err := st.Trades()
	assert.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, int64(42), trades[0].OrderID)
	assert.Equal(t, models.SideBuy, trades[0].Side)
	assert.True(t, trades[0].Quantity.Equal(decimal.RequireFromString("0.00169")))
}

func TestDCAStrategy_LimitBuyAboveTarget(t *testing.T) {
	client := new(MockRestClient)
	s, st := newTestStrategy(t, client)

	// Current 60500 is above the 59780 target: a GTC limit order rests at
	// the target price instead of buying at market.
	seedDailyHigh(t, st, "BTC", "61000")

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("60500"), nil)
	client.On("GetAccount").Return(sufficientAccount(), nil)
	client.On("CreateOrder", mock.MatchedBy(func(order binance.OrderRequest) bool {
		return order.Type == binance.OrderTypeLimit &&
			order.Price.Equal(decimal.RequireFromString("59780")) &&
			order.Quantity.Equal(decimal.RequireFromString("0.00167"))
	})).Return(&binance.CreateOrderResponse{
		Symbol:           "BTCUSDC",
		OrderID:          43,
		ExecutedQuantity: "0.00000000",
		Status:           "NEW",
		Side:             binance.OrderSideBuy,
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertExpectations(t)

	// Nothing executed yet, so nothing is recorded.
	trades, err := st.Trades()
	assert.NoError(t, err)
	assert.Empty(t, trades)
}

func TestDCAStrategy_SkipsWhenBoughtThisMonth(t *testing.T) {
	client := new(MockRestClient)
	s, _ := newTestStrategy(t, client)

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{
		{Symbol: "BTCUSDC", OrderID: 7, IsBuyer: true, Qty: "0.002", QuoteQty: "100"},
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertNotCalled(t, "CreateOrder", mock.Anything)
	client.AssertNotCalled(t, "GetOpenOrders", mock.Anything)
}

func TestDCAStrategy_SellsThisMonthDoNotCountAsBuys(t *testing.T) {
	client := new(MockRestClient)
	s, st := newTestStrategy(t, client)

	seedDailyHigh(t, st, "BTC", "61000")

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{
		{Symbol: "BTCUSDC", OrderID: 7, IsBuyer: false, Qty: "0.002", QuoteQty: "100"},
	}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
	client.On("GetAccount").Return(sufficientAccount(), nil)
	client.On("CreateOrder", mock.Anything).Return(&binance.CreateOrderResponse{
		OrderID:          44,
		ExecutedQuantity: "0.00000000",
		Status:           "NEW",
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertCalled(t, "CreateOrder", mock.Anything)
}

func TestDCAStrategy_RejectsBelowMinimum(t *testing.T) {
	client := new(MockRestClient)
	s, _ := newTestStrategy(t, client)

	user := testUser()
	user.AmountUSD["BTC"] = 10 // below the 15 USDC exchange minimum

	err := s.Run(user)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below the exchange minimum")
	client.AssertNotCalled(t, "CreateOrder", mock.Anything)
	client.AssertNotCalled(t, "GetMyTrades", mock.Anything, mock.Anything, mock.Anything)
}

func TestDCAStrategy_InsufficientFunds(t *testing.T) {
	client := new(MockRestClient)
	s, st := newTestStrategy(t, client)

	seedDailyHigh(t, st, "BTC", "61000")

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
	client.On("GetAccount").Return(&binance.AccountResponse{
		Balances: []binance.RawBalance{
			{Asset: "USDC", Free: "50.00000000", Locked: "0.00000000"},
		},
	}, nil)

	err := s.Run(testUser())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
	client.AssertNotCalled(t, "CreateOrder", mock.Anything)
}

func TestDCAStrategy_CancelsStaleOpenOrders(t *testing.T) {
	client := new(MockRestClient)
	s, st := newTestStrategy(t, client)

	seedDailyHigh(t, st, "BTC", "61000")

	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{
		{Symbol: "BTCUSDC", OrderID: 11, Status: "NEW", Side: "BUY"},
		{Symbol: "BTCUSDC", OrderID: 12, Status: "NEW", Side: "BUY"},
	}, nil)
	client.On("CancelOrder", "BTCUSDC", int64(11)).Return(nil)
	client.On("CancelOrder", "BTCUSDC", int64(12)).Return(nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
	client.On("GetAccount").Return(sufficientAccount(), nil)
	client.On("CreateOrder", mock.Anything).Return(&binance.CreateOrderResponse{
		OrderID:          45,
		ExecutedQuantity: "0.00000000",
		Status:           "NEW",
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDCAStrategy_KlineFallbackWhenNoStoredHigh(t *testing.T) {
	client := new(MockRestClient)
	s, _ := newTestStrategy(t, client)

	// No Daily_High_Price row: yesterday's kline high becomes the reference.
	client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
	client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
	client.On("GetDailyKlines", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.Kline{
		{Open: "60000", High: "61000", Low: "58000", Close: "60500"},
	}, nil)
	client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
	client.On("GetAccount").Return(sufficientAccount(), nil)
	client.On("CreateOrder", mock.MatchedBy(func(order binance.OrderRequest) bool {
		return order.Type == binance.OrderTypeMarket
	})).Return(&binance.CreateOrderResponse{
		OrderID:          46,
		ExecutedQuantity: "0.00000000",
		Status:           "FILLED",
	}, nil)

	err := s.Run(testUser())

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDCAStrategy_MalformedExecutedQuantity(t *testing.T) {
	tests := []struct {
		name        string
		executedQty string
	}{
		{name: "Garbage", executedQty: "not-a-number"},
		{name: "Missing", executedQty: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockRestClient)
			s, st := newTestStrategy(t, client)

			seedDailyHigh(t, st, "BTC", "61000")

			client.On("GetMyTrades", "BTCUSDC", mock.Anything, mock.Anything).Return([]binance.RawTrade{}, nil)
			client.On("GetOpenOrders", "BTCUSDC").Return([]binance.OpenOrder{}, nil)
			client.On("GetSymbolPrice", "BTCUSDC").Return(decimal.RequireFromString("59000"), nil)
			client.On("GetAccount").Return(sufficientAccount(), nil)
			client.On("CreateOrder", mock.Anything).Return(&binance.CreateOrderResponse{
				Symbol:           "BTCUSDC",
				OrderID:          47,
				ExecutedQuantity: tt.executedQty,
				Status:           "FILLED",
				Side:             binance.OrderSideBuy,
			}, nil)

			err := s.Run(testUser())

			// A fill the exchange reports in a shape we cannot parse must
			// surface as an error, not be mistaken for an empty execution.
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "unparsable executedQty")

			trades, err := st.Trades()
			assert.NoError(t, err)
			assert.Empty(t, trades)
		})
	}
}

func TestDCAStrategy_Name(t *testing.T) {
	s := NewDCAStrategy(new(MockRestClient), nil, testBinanceConfig(), zap.NewNop())
	assert.Equal(t, "DCA", s.Name())
}
