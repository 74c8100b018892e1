package jobs

import (
	"time"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/mailer"
	"binance-dca-bot/internal/report"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBufferMonths is how many months of DCA buys the wallet should be
// able to cover before an alert is raised.
const DefaultBufferMonths = 2

// LowBalance alerts the user when the quote asset balance cannot cover the
// next months of scheduled buys.
type LowBalance struct {
	client binance.RestClientInterface
	mailer mailer.Sender
	cfg    *config.Binance
	months int
	logger *zap.Logger
	now    func() time.Time
}

// NewLowBalance wires the low balance job. months <= 0 falls back to the
// default buffer.
func NewLowBalance(client binance.RestClientInterface, sender mailer.Sender, cfg *config.Binance, months int, logger *zap.Logger) *LowBalance {
	if months <= 0 {
		months = DefaultBufferMonths
	}
	return &LowBalance{
		client: client,
		mailer: sender,
		cfg:    cfg,
		months: months,
		logger: logger,
		now:    time.Now,
	}
}

// Run checks the balance and sends an alert when it is too low. A
// sufficient balance is a silent no-op.
func (j *LowBalance) Run(user *config.UserConfig) error {
	required := decimal.NewFromFloat(user.TotalMonthlyAmount()).Mul(decimal.NewFromInt(int64(j.months)))

	account, err := j.client.GetAccount()
	if err != nil {
		return errors.Wrap(err, "could not fetch account")
	}
	balances, err := binance.NormalizeBalances(account.Balances, j.now())
	if err != nil {
		return errors.Wrap(err, "could not normalize balances")
	}

	actual := decimal.Zero
	for _, balance := range balances {
		if balance.Asset == j.cfg.QuoteAsset {
			actual = balance.Total()
			break
		}
	}

	if actual.GreaterThanOrEqual(required) {
		j.logger.Info("Balance sufficient, no alert needed",
			zap.String("actual", actual.StringFixed(2)),
			zap.String("required", required.StringFixed(2)))
		return nil
	}

	body := report.RenderLowBalance(j.cfg.QuoteAsset, actual, required)
	if err := j.mailer.Send(user.Email.To, report.SubjectLowBalance, body); err != nil {
		return errors.Wrap(err, "could not send low balance alert")
	}

	j.logger.Info("Low balance alert sent",
		zap.String("to", user.Email.To),
		zap.String("actual", actual.StringFixed(2)),
		zap.String("required", required.StringFixed(2)))
	return nil
}
