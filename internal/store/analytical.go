package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/perpctl/controlplane/internal/dbutil"
	"github.com/perpctl/controlplane/internal/domain"
)

// AnalyticalStore is the wide, high-ingest store for tickers and leaderboard
// batches. Driver selection ("postgres" vs "sqlite") is config-driven so a
// single-node deployment needs no external database.
type AnalyticalStore struct {
	db *gorm.DB
}

// tickerRow and leaderboardRow are the gorm-mapped wide rows; the Ticker/
// LeaderboardEntry domain types stay storage-agnostic and are translated at
// the boundary.
type tickerRow struct {
	Symbol             string `gorm:"primaryKey"`
	EventTime          time.Time
	LastPrice          float64
	OpenPriceValue     float64
	OpenPriceSet       bool
	OpenPriceAsOf      time.Time
	HighPrice          float64
	LowPrice           float64
	BaseVolume         float64
	QuoteVolume        float64
	FirstTradeID       int64
	LastTradeID        int64
	TradeCount         int64
	PriceChange        float64
	PriceChangePercent float64
	ChangePercentText  string
	Side               string
}

func (tickerRow) TableName() string { return "tickers" }

type leaderboardRow struct {
	ID                 uint `gorm:"primaryKey;autoIncrement"`
	Symbol             string
	EventTime          time.Time
	LastPrice          float64
	OpenPriceValue     float64
	OpenPriceSet       bool
	OpenPriceAsOf      time.Time
	HighPrice          float64
	LowPrice           float64
	BaseVolume         float64
	QuoteVolume        float64
	PriceChange        float64
	PriceChangePercent float64
	ChangePercentText  string
	Side               string
	Rank               int
	CreateDatetime     time.Time `gorm:"index"`
	CreateDatetimeLong int64
}

func (leaderboardRow) TableName() string { return "leaderboard_entries" }

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// storedDate rebuilds the nullable-date half of the open-price pair from the
// (set, as_of) columns the wide tables persist it as.
func storedDate(set bool, asOf time.Time) *time.Time {
	if !set {
		return nil
	}
	return &asOf
}

// OpenAnalytical opens the analytical store, dispatching on driver
// ("postgres" for production, "sqlite" for local/dev).
func OpenAnalytical(driver, dsn string) (*AnalyticalStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown analytical driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open analytical store: %w", err)
	}
	if err := db.AutoMigrate(&tickerRow{}, &leaderboardRow{}); err != nil {
		return nil, fmt.Errorf("migrate analytical store: %w", err)
	}
	return &AnalyticalStore{db: db}, nil
}

func toTickerRow(t domain.Ticker) tickerRow {
	op := t.OpenPrice.ToRow()
	return tickerRow{
		Symbol:             t.Symbol,
		EventTime:          t.EventTime,
		LastPrice:          t.LastPrice,
		OpenPriceValue:     op.Value,
		OpenPriceSet:       op.Date != nil,
		OpenPriceAsOf:      derefTime(op.Date),
		HighPrice:          t.HighPrice,
		LowPrice:           t.LowPrice,
		BaseVolume:         t.BaseVolume,
		QuoteVolume:        t.QuoteVolume,
		FirstTradeID:       t.FirstTradeID,
		LastTradeID:        t.LastTradeID,
		TradeCount:         t.TradeCount,
		PriceChange:        t.PriceChange,
		PriceChangePercent: t.PriceChangePercent,
		ChangePercentText:  t.ChangePercentText,
		Side:               string(t.Side),
	}
}

func fromTickerRow(r tickerRow) domain.Ticker {
	return domain.Ticker{
		Symbol:             r.Symbol,
		EventTime:          r.EventTime,
		LastPrice:          r.LastPrice,
		OpenPrice:          domain.OpenPriceFromRow(r.OpenPriceValue, storedDate(r.OpenPriceSet, r.OpenPriceAsOf)),
		HighPrice:          r.HighPrice,
		LowPrice:           r.LowPrice,
		BaseVolume:         r.BaseVolume,
		QuoteVolume:        r.QuoteVolume,
		FirstTradeID:       r.FirstTradeID,
		LastTradeID:        r.LastTradeID,
		TradeCount:         r.TradeCount,
		PriceChange:        r.PriceChange,
		PriceChangePercent: r.PriceChangePercent,
		ChangePercentText:  r.ChangePercentText,
		Side:               domain.LeaderboardSide(r.Side),
	}
}

// UpsertTickers writes the normalized rows. Callers must have already
// resolved OpenPrice against the existing row before calling this — this
// method is a pure upsert keyed by symbol, last write wins on every other
// column.
func (s *AnalyticalStore) UpsertTickers(tickers []domain.Ticker) error {
	if len(tickers) == 0 {
		return nil
	}
	rows := make([]tickerRow, 0, len(tickers))
	for _, t := range tickers {
		rows = append(rows, toTickerRow(t))
	}
	_, err := dbutil.WithConn("upsert_tickers", func() (struct{}, error) {
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).Create(&rows).Error
		return struct{}{}, err
	})
	return err
}

// GetTicker returns the current wide row for symbol, or nil if absent.
func (s *AnalyticalStore) GetTicker(symbol string) (*domain.Ticker, error) {
	return dbutil.WithConn("get_ticker", func() (*domain.Ticker, error) {
		var row tickerRow
		err := s.db.Where("symbol = ?", symbol).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		t := fromTickerRow(row)
		return &t, nil
	})
}

// ListTickersBySymbols fetches the current wide rows for a symbol set.
func (s *AnalyticalStore) ListTickersBySymbols(symbols []string) ([]domain.Ticker, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	return dbutil.WithConn("list_tickers_by_symbols", func() ([]domain.Ticker, error) {
		var rows []tickerRow
		if err := s.db.Where("symbol IN ?", symbols).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]domain.Ticker, 0, len(rows))
		for _, r := range rows {
			out = append(out, fromTickerRow(r))
		}
		return out, nil
	})
}

// InsertLeaderboardBatch writes one synchronizer pass as a single batch; all
// entries share one CreateDatetimeLong.
func (s *AnalyticalStore) InsertLeaderboardBatch(entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]leaderboardRow, 0, len(entries))
	for _, e := range entries {
		op := e.OpenPrice.ToRow()
		rows = append(rows, leaderboardRow{
			Symbol:             e.Symbol,
			EventTime:          e.EventTime,
			LastPrice:          e.LastPrice,
			OpenPriceValue:     op.Value,
			OpenPriceSet:       op.Date != nil,
			OpenPriceAsOf:      derefTime(op.Date),
			HighPrice:          e.HighPrice,
			LowPrice:           e.LowPrice,
			BaseVolume:         e.BaseVolume,
			QuoteVolume:        e.QuoteVolume,
			PriceChange:        e.PriceChange,
			PriceChangePercent: e.PriceChangePercent,
			ChangePercentText:  e.ChangePercentText,
			Side:               string(e.Side),
			Rank:               e.Rank,
			CreateDatetime:     e.CreateDatetime,
			CreateDatetimeLong: e.CreateDatetimeLong,
		})
	}
	_, err := dbutil.WithConn("insert_leaderboard_batch", func() (struct{}, error) {
		return struct{}{}, s.db.Create(&rows).Error
	})
	return err
}

// LatestLeaderboardBatch returns the requested side of the most recent
// batch, ranked ascending. The batch is pinned by the table-wide maximum
// batch id so readers always see one coherent batch, never a mix.
func (s *AnalyticalStore) LatestLeaderboardBatch(side domain.LeaderboardSide, topN int) ([]domain.LeaderboardEntry, error) {
	return dbutil.WithConn("latest_leaderboard_batch", func() ([]domain.LeaderboardEntry, error) {
		var latest int64
		if err := s.db.Model(&leaderboardRow{}).
			Select("COALESCE(MAX(create_datetime_long), 0)").Scan(&latest).Error; err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, nil
		}
		var rows []leaderboardRow
		q := s.db.Where("side = ? AND create_datetime_long = ?", string(side), latest).Order("rank ASC")
		if topN > 0 {
			q = q.Limit(topN)
		}
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]domain.LeaderboardEntry, 0, len(rows))
		for _, r := range rows {
			op := domain.OpenPriceFromRow(r.OpenPriceValue, storedDate(r.OpenPriceSet, r.OpenPriceAsOf))
			out = append(out, domain.LeaderboardEntry{
				Ticker: domain.Ticker{
					Symbol: r.Symbol, EventTime: r.EventTime, LastPrice: r.LastPrice, OpenPrice: op,
					HighPrice: r.HighPrice, LowPrice: r.LowPrice, BaseVolume: r.BaseVolume,
					QuoteVolume: r.QuoteVolume, PriceChange: r.PriceChange,
					PriceChangePercent: r.PriceChangePercent, ChangePercentText: r.ChangePercentText,
					Side: domain.LeaderboardSide(r.Side),
				},
				Rank:               r.Rank,
				CreateDatetime:     r.CreateDatetime,
				CreateDatetimeLong: r.CreateDatetimeLong,
			})
		}
		return out, nil
	})
}

// CleanupLeaderboard deletes batches whose batch id predates the retention
// window, returning the number of rows removed.
func (s *AnalyticalStore) CleanupLeaderboard(retention time.Duration) (int64, error) {
	return dbutil.WithConn("cleanup_leaderboard", func() (int64, error) {
		cutoff := time.Now().UTC().Add(-retention).UnixMilli()
		res := s.db.Where("create_datetime_long < ?", cutoff).Delete(&leaderboardRow{})
		return res.RowsAffected, res.Error
	})
}

// TopGainers returns the current rows where price_change_percent > 0 and
// side = gainer, ordered descending.
func (s *AnalyticalStore) TopGainers(limit int) ([]domain.Ticker, error) {
	return s.topSide(domain.SideGainer, "price_change_percent > 0", "price_change_percent DESC", limit)
}

// TopLosers is the mirror image: side = loser, ordered ascending.
func (s *AnalyticalStore) TopLosers(limit int) ([]domain.Ticker, error) {
	return s.topSide(domain.SideLoser, "price_change_percent < 0", "price_change_percent ASC", limit)
}

func (s *AnalyticalStore) topSide(side domain.LeaderboardSide, filter, order string, limit int) ([]domain.Ticker, error) {
	return dbutil.WithConn("top_side", func() ([]domain.Ticker, error) {
		var rows []tickerRow
		q := s.db.Where("side = ?", string(side)).Where(filter).Order(order)
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]domain.Ticker, 0, len(rows))
		for _, r := range rows {
			out = append(out, fromTickerRow(r))
		}
		return out, nil
	})
}

// SymbolsNeedingRefresh returns the distinct non-empty symbols whose open
// price is unset, or whose anchor date predates today.
func (s *AnalyticalStore) SymbolsNeedingRefresh(today time.Time) ([]string, error) {
	return dbutil.WithConn("symbols_needing_refresh", func() ([]string, error) {
		var symbols []string
		err := s.db.Model(&tickerRow{}).Distinct("symbol").
			Where("symbol <> ''").
			Where("open_price_set = ? OR open_price_as_of < ?", false, today).
			Pluck("symbol", &symbols).Error
		return symbols, err
	})
}
