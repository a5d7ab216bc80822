package types

import "time"

// OHLCVBar is a single trading day's bar for one symbol, extended with the
// derived fields the data sources compute alongside raw OHLCV (turnover,
// amplitude, percent change).
type OHLCVBar struct {
	Symbol        string    `json:"symbol"`
	TradeDate     time.Time `json:"trade_date"`
	Open          float64   `json:"open_price"`
	Close         float64   `json:"close_price"`
	High          float64   `json:"high_price"`
	Low           float64   `json:"low_price"`
	Volume        int64     `json:"volume"` // shares, not lots
	Turnover      float64   `json:"turnover"`
	Amplitude     float64   `json:"amplitude"`
	ChangeRate    float64   `json:"change_rate"`
	ChangeAmount  float64   `json:"change_amount"`
	TurnoverRate  float64   `json:"turnover_rate"`
	LastUpdate    time.Time `json:"last_update"`
}

// StockBasicInfo is the static/slow-changing reference record for one symbol.
type StockBasicInfo struct {
	Symbol            string     `gorm:"primaryKey;size:10" json:"symbol"`
	Exchange          string     `json:"exchange"`
	Section           string     `json:"section"`
	StockType         string     `json:"stock_type"`
	Name              string     `json:"name"`
	ListingDate       *time.Time `json:"listing_date,omitempty"`
	Industry          string     `json:"industry,omitempty"`
	TotalShares       float64    `json:"total_shares,omitempty"`
	FloatShares       float64    `json:"float_shares,omitempty"`
	TotalMarketValue  float64    `json:"total_market_value,omitempty"`
	FloatMarketValue  float64    `json:"float_market_value,omitempty"`
	LastUpdate        time.Time  `json:"last_update"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (StockBasicInfo) TableName() string { return "stock_basic_info" }

// StockDailyData is the persisted row shape backing OHLCVBar, with its own
// auto-increment primary key (excluded from upsert VALUES/SET clauses).
type StockDailyData struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol       string    `gorm:"size:10;uniqueIndex:idx_symbol_trade_date" json:"symbol"`
	TradeDate    time.Time `gorm:"uniqueIndex:idx_symbol_trade_date" json:"trade_date"`
	OpenPrice    float64   `json:"open_price"`
	ClosePrice   float64   `json:"close_price"`
	HighPrice    float64   `json:"high_price"`
	LowPrice     float64   `json:"low_price"`
	Volume       int64     `json:"volume"`
	Turnover     float64   `json:"turnover"`
	Amplitude    float64   `json:"amplitude"`
	ChangeRate   float64   `json:"change_rate"`
	ChangeAmount float64   `json:"change_amount"`
	TurnoverRate float64   `json:"turnover_rate"`
	LastUpdate   time.Time `json:"last_update"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (StockDailyData) TableName() string { return "stock_daily_data" }

// ToBar converts a persisted row into the wire/service-level OHLCVBar.
func (d StockDailyData) ToBar() OHLCVBar {
	return OHLCVBar{
		Symbol:       d.Symbol,
		TradeDate:    d.TradeDate,
		Open:         d.OpenPrice,
		Close:        d.ClosePrice,
		High:         d.HighPrice,
		Low:          d.LowPrice,
		Volume:       d.Volume,
		Turnover:     d.Turnover,
		Amplitude:    d.Amplitude,
		ChangeRate:   d.ChangeRate,
		ChangeAmount: d.ChangeAmount,
		TurnoverRate: d.TurnoverRate,
		LastUpdate:   d.LastUpdate,
	}
}

// BarFromRow builds the gorm row shape from a service-level bar.
func BarFromRow(b OHLCVBar) StockDailyData {
	return StockDailyData{
		Symbol:       b.Symbol,
		TradeDate:    b.TradeDate,
		OpenPrice:    b.Open,
		ClosePrice:   b.Close,
		HighPrice:    b.High,
		LowPrice:     b.Low,
		Volume:       b.Volume,
		Turnover:     b.Turnover,
		Amplitude:    b.Amplitude,
		ChangeRate:   b.ChangeRate,
		ChangeAmount: b.ChangeAmount,
		TurnoverRate: b.TurnoverRate,
		LastUpdate:   b.LastUpdate,
	}
}

// StockIndustry is one node of the (self-referential) industry classification tree.
type StockIndustry struct {
	IndustryCode   string  `gorm:"primaryKey;size:20" json:"industry_code"`
	Name           string  `gorm:"uniqueIndex;size:64" json:"name"`
	Level          int     `gorm:"default:1" json:"level"`
	ParentCode     *string `gorm:"size:20;index" json:"parent_code,omitempty"`
	ComponentCount int     `json:"component_count"`
	PERatio        float64 `json:"pe_ratio,omitempty"`
	PERatioTTM     float64 `json:"pe_ratio_ttm,omitempty"`
	PBRatio        float64 `json:"pb_ratio,omitempty"`
	DividendYield  float64 `json:"dividend_yield,omitempty"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (StockIndustry) TableName() string { return "stock_industry" }

// StockIndustryMapping links a symbol to an industry node, with an is-main flag
// since a symbol may carry secondary industry tags.
type StockIndustryMapping struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol       string `gorm:"size:10;uniqueIndex:idx_symbol_industry" json:"symbol"`
	IndustryCode string `gorm:"size:20;uniqueIndex:idx_symbol_industry" json:"industry_code"`
	IsMain       bool   `gorm:"default:true" json:"is_main"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (StockIndustryMapping) TableName() string { return "stock_industry_mapping" }

// BacktestStats is a persisted snapshot of one backtest run's summary metrics.
type BacktestStats struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol       string    `gorm:"size:10;index" json:"symbol"`
	StrategyName string    `gorm:"size:64" json:"strategy_name"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TotalReturn  float64   `json:"total_return"`
	AnnualReturn float64   `json:"annual_return"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	WinRate      float64   `json:"win_rate"`
	TradeCount   int       `json:"trade_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (BacktestStats) TableName() string { return "backtest_stats" }

// Job is the persisted description of one scheduled task: its cron expression
// and the bookkeeping the scheduler needs to survive a process restart.
type Job struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	CronExpr   string     `gorm:"size:64" json:"cron_expr"`
	Executor   string     `gorm:"size:16" json:"executor"` // "async" or "thread"
	RunOnStart bool       `json:"run_on_start"`
	Enabled    bool       `gorm:"default:true" json:"enabled"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// TableName pins the gorm table name to the persistent-state layout.
func (Job) TableName() string { return "scheduler_jobs" }
