// Package store is the typed storage adapter: a relational store for
// tenant/accounting entities (raw database/sql, struct + initTables +
// hand-written SQL, no ORM) and an analytical store for high-ingest wide
// tickers and leaderboard batches (see analytical.go).
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/perpctl/controlplane/internal/dbutil"
	"github.com/perpctl/controlplane/internal/domain"
)

// RelationalStore owns the pooled connection to the tenant/accounting
// database: models, positions, trades, conversations, strategies, futures.
type RelationalStore struct {
	db *sql.DB
}

// OpenRelational opens (and migrates) the relational store at dsn.
func OpenRelational(dsn string) (*RelationalStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}
	db.SetMaxOpenConns(8)
	s := &RelationalStore{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate relational store: %w", err)
	}
	return s, nil
}

func (s *RelationalStore) Close() error { return s.db.Close() }

func (s *RelationalStore) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, api_url TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '', provider_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, provider_id TEXT NOT NULL DEFAULT '',
			model_name TEXT NOT NULL DEFAULT '', initial_capital REAL NOT NULL DEFAULT 0,
			leverage INTEGER NOT NULL DEFAULT 1, max_positions INTEGER NOT NULL DEFAULT 1,
			auto_buy_enabled BOOLEAN NOT NULL DEFAULT 0, auto_sell_enabled BOOLEAN NOT NULL DEFAULT 0,
			trade_type TEXT NOT NULL DEFAULT 'strategy', symbol_source TEXT NOT NULL DEFAULT 'leaderboard',
			buy_batch_size INTEGER NOT NULL DEFAULT 1, sell_batch_size INTEGER NOT NULL DEFAULT 1,
			buy_interval_secs INTEGER NOT NULL DEFAULT 0, sell_interval_secs INTEGER NOT NULL DEFAULT 0,
			group_size INTEGER NOT NULL DEFAULT 1, account_alias TEXT NOT NULL DEFAULT '',
			is_virtual BOOLEAN NOT NULL DEFAULT 1, created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS model_prompts (
			model_id TEXT PRIMARY KEY, buy_prompt TEXT NOT NULL DEFAULT '', sell_prompt TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS strategies (
			id TEXT PRIMARY KEY, name TEXT NOT NULL, type TEXT NOT NULL,
			strategy_context TEXT NOT NULL DEFAULT '', strategy_code TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS model_strategies (
			model_id TEXT NOT NULL, strategy_id TEXT NOT NULL, type TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0, created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (model_id, strategy_id, type)
		)`,
		`CREATE TABLE IF NOT EXISTS futures (
			symbol TEXT PRIMARY KEY, contract_symbol TEXT NOT NULL, name TEXT NOT NULL DEFAULT '',
			exchange TEXT NOT NULL DEFAULT '', sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS model_futures (
			model_id TEXT NOT NULL, symbol TEXT NOT NULL, contract_symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '', exchange TEXT NOT NULL DEFAULT '', sort_order INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (model_id, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			model_id TEXT NOT NULL, symbol TEXT NOT NULL, position_side TEXT NOT NULL,
			position_amt REAL NOT NULL, avg_price REAL NOT NULL, leverage INTEGER NOT NULL DEFAULT 1,
			initial_margin REAL NOT NULL DEFAULT 0, unrealized_profit REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (model_id, symbol, position_side)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY, model_id TEXT NOT NULL, symbol TEXT NOT NULL, signal TEXT NOT NULL,
			quantity REAL NOT NULL, price REAL NOT NULL, leverage INTEGER NOT NULL DEFAULT 1,
			side TEXT NOT NULL, pnl REAL NOT NULL DEFAULT 0, fee REAL NOT NULL DEFAULT 0,
			ts DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_model ON trades(model_id)`,
		`CREATE TABLE IF NOT EXISTS account_value_history (
			model_id TEXT NOT NULL, balance REAL NOT NULL, available_balance REAL NOT NULL,
			cross_wallet_balance REAL NOT NULL, cross_un_pnl REAL NOT NULL,
			account_alias TEXT NOT NULL DEFAULT '', ts DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_avh_model ON account_value_history(model_id)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY, model_id TEXT NOT NULL, user_prompt TEXT NOT NULL DEFAULT '',
			ai_response TEXT NOT NULL DEFAULT '', cot_trace TEXT NOT NULL DEFAULT '',
			tokens INTEGER NOT NULL DEFAULT 0, type TEXT NOT NULL, ts DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS strategy_decisions (
			id TEXT PRIMARY KEY, model_id TEXT NOT NULL, strategy_name TEXT NOT NULL,
			strategy_type TEXT NOT NULL, signal TEXT NOT NULL, symbol TEXT NOT NULL DEFAULT '',
			quantity REAL NOT NULL DEFAULT 0, leverage INTEGER NOT NULL DEFAULT 0, price REAL NOT NULL DEFAULT 0,
			stop_price REAL NOT NULL DEFAULT 0, justification TEXT NOT NULL DEFAULT '', ts DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---- Models ----

func (s *RelationalStore) ListEnabledModels() ([]domain.Model, error) {
	return dbutil.WithConn("list_enabled_models", func() ([]domain.Model, error) {
		rows, err := s.db.Query(`SELECT id, name, provider_id, model_name, initial_capital, leverage,
			max_positions, auto_buy_enabled, auto_sell_enabled, trade_type, symbol_source,
			buy_batch_size, sell_batch_size, buy_interval_secs, sell_interval_secs, group_size,
			account_alias, is_virtual FROM models ORDER BY rowid`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []domain.Model
		for rows.Next() {
			var m domain.Model
			var tradeType, symbolSource string
			if err := rows.Scan(&m.ID, &m.Name, &m.ProviderID, &m.ModelName, &m.InitialCapital, &m.Leverage,
				&m.MaxPositions, &m.AutoBuyEnabled, &m.AutoSellEnabled, &tradeType, &symbolSource,
				&m.BuyBatchSize, &m.SellBatchSize, &m.BuyIntervalSecs, &m.SellIntervalSecs, &m.GroupSize,
				&m.AccountAlias, &m.IsVirtual); err != nil {
				return nil, err
			}
			m.TradeType = domain.TradeType(tradeType)
			m.SymbolSource = domain.SymbolSource(symbolSource)
			out = append(out, m)
		}
		return out, rows.Err()
	})
}

func (s *RelationalStore) GetProvider(providerID string) (domain.Provider, error) {
	return dbutil.WithConn("get_provider", func() (domain.Provider, error) {
		var p domain.Provider
		var providerType string
		p.ID = providerID
		err := s.db.QueryRow(`SELECT name, api_url, api_key, provider_type FROM providers WHERE id = ?`, providerID).
			Scan(&p.Name, &p.APIURL, &p.APIKey, &providerType)
		p.ProviderType = domain.ProviderType(providerType)
		return p, err
	})
}

func (s *RelationalStore) GetModelPrompt(modelID string) (domain.ModelPrompt, error) {
	return dbutil.WithConn("get_model_prompt", func() (domain.ModelPrompt, error) {
		var mp domain.ModelPrompt
		mp.ModelID = modelID
		err := s.db.QueryRow(`SELECT buy_prompt, sell_prompt FROM model_prompts WHERE model_id = ?`, modelID).
			Scan(&mp.BuyPrompt, &mp.SellPrompt)
		if err == sql.ErrNoRows {
			return mp, nil
		}
		return mp, err
	})
}

// ---- Strategies ----

func (s *RelationalStore) ListModelStrategies(modelID string, t domain.StrategyType) ([]domain.Strategy, error) {
	return dbutil.WithConn("list_model_strategies", func() ([]domain.Strategy, error) {
		rows, err := s.db.Query(`SELECT s.id, s.name, s.type, s.strategy_context, s.strategy_code
			FROM model_strategies ms JOIN strategies s ON s.id = ms.strategy_id
			WHERE ms.model_id = ? AND ms.type = ?
			ORDER BY ms.priority DESC, ms.created_at ASC`, modelID, string(t))
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []domain.Strategy
		for rows.Next() {
			var st domain.Strategy
			var typ string
			if err := rows.Scan(&st.ID, &st.Name, &typ, &st.StrategyContext, &st.StrategyCode); err != nil {
				return nil, err
			}
			st.Type = domain.StrategyType(typ)
			out = append(out, st)
		}
		return out, rows.Err()
	})
}

func (s *RelationalStore) InsertStrategyDecisions(decs []domain.StrategyDecision) error {
	_, err := dbutil.WithConn("insert_strategy_decisions", func() (struct{}, error) {
		tx, err := s.db.Begin()
		if err != nil {
			return struct{}{}, err
		}
		stmt, err := tx.Prepare(`INSERT INTO strategy_decisions
			(id, model_id, strategy_name, strategy_type, signal, symbol, quantity, leverage, price, stop_price, justification, ts)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			tx.Rollback()
			return struct{}{}, err
		}
		defer stmt.Close()
		for _, d := range decs {
			if d.ID == "" {
				d.ID = uuid.NewString()
			}
			if d.Timestamp.IsZero() {
				d.Timestamp = time.Now().UTC()
			}
			if _, err := stmt.Exec(d.ID, d.ModelID, d.StrategyName, string(d.StrategyType), string(d.Signal),
				d.Symbol, d.Quantity, d.Leverage, d.Price, d.StopPrice, d.Justification, d.Timestamp); err != nil {
				tx.Rollback()
				return struct{}{}, err
			}
		}
		return struct{}{}, tx.Commit()
	})
	return err
}

// ---- Futures ----

func (s *RelationalStore) ListModelFutures(modelID string) ([]domain.Future, error) {
	return dbutil.WithConn("list_model_futures", func() ([]domain.Future, error) {
		rows, err := s.db.Query(`SELECT symbol, contract_symbol, name, exchange, sort_order
			FROM model_futures WHERE model_id = ? ORDER BY sort_order`, modelID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []domain.Future
		for rows.Next() {
			var f domain.Future
			if err := rows.Scan(&f.Symbol, &f.ContractSymbol, &f.Name, &f.Exchange, &f.SortOrder); err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, rows.Err()
	})
}

// DeleteFutureIfUnheld removes the global future row for symbol if no model
// still holds an open position in it.
func (s *RelationalStore) DeleteFutureIfUnheld(symbol string) error {
	_, err := dbutil.WithConn("delete_future_if_unheld", func() (struct{}, error) {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM positions WHERE symbol = ?`, symbol).Scan(&count); err != nil {
			return struct{}{}, err
		}
		if count > 0 {
			return struct{}{}, nil
		}
		_, err := s.db.Exec(`DELETE FROM futures WHERE symbol = ?`, symbol)
		return struct{}{}, err
	})
	return err
}

// ---- Positions ----

func (s *RelationalStore) ListPositions(modelID string) ([]domain.Position, error) {
	return dbutil.WithConn("list_positions", func() ([]domain.Position, error) {
		rows, err := s.db.Query(`SELECT model_id, symbol, position_side, position_amt, avg_price, leverage,
			initial_margin, unrealized_profit FROM positions WHERE model_id = ? AND position_amt <> 0`, modelID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []domain.Position
		for rows.Next() {
			var p domain.Position
			var side string
			if err := rows.Scan(&p.ModelID, &p.Symbol, &side, &p.PositionAmt, &p.AvgPrice, &p.Leverage,
				&p.InitialMargin, &p.UnrealizedProfit); err != nil {
				return nil, err
			}
			p.PositionSide = domain.PositionSide(side)
			out = append(out, p)
		}
		return out, rows.Err()
	})
}

func (s *RelationalStore) GetPosition(modelID, symbol string, side domain.PositionSide) (*domain.Position, error) {
	return dbutil.WithConn("get_position", func() (*domain.Position, error) {
		var p domain.Position
		p.ModelID, p.Symbol, p.PositionSide = modelID, symbol, side
		err := s.db.QueryRow(`SELECT position_amt, avg_price, leverage, initial_margin, unrealized_profit
			FROM positions WHERE model_id = ? AND symbol = ? AND position_side = ?`, modelID, symbol, string(side)).
			Scan(&p.PositionAmt, &p.AvgPrice, &p.Leverage, &p.InitialMargin, &p.UnrealizedProfit)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &p, nil
	})
}

// UpsertPosition writes p to the unique (model, symbol, side) row, or
// deletes the row when the amount is zero; no zero-amount row ever persists.
func (s *RelationalStore) UpsertPosition(p domain.Position) error {
	if !p.PositionSide.Valid() {
		return fmt.Errorf("invalid position side %q", p.PositionSide)
	}
	_, err := dbutil.WithConn("upsert_position", func() (struct{}, error) {
		if p.PositionAmt == 0 {
			_, err := s.db.Exec(`DELETE FROM positions WHERE model_id = ? AND symbol = ? AND position_side = ?`,
				p.ModelID, p.Symbol, string(p.PositionSide))
			return struct{}{}, err
		}
		_, err := s.db.Exec(`INSERT INTO positions
			(model_id, symbol, position_side, position_amt, avg_price, leverage, initial_margin, unrealized_profit)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(model_id, symbol, position_side) DO UPDATE SET
				position_amt=excluded.position_amt, avg_price=excluded.avg_price,
				leverage=excluded.leverage, initial_margin=excluded.initial_margin,
				unrealized_profit=excluded.unrealized_profit`,
			p.ModelID, p.Symbol, string(p.PositionSide), p.PositionAmt, p.AvgPrice, p.Leverage,
			p.InitialMargin, p.UnrealizedProfit)
		return struct{}{}, err
	})
	return err
}

func (s *RelationalStore) DeletePosition(modelID, symbol string, side domain.PositionSide) error {
	_, err := dbutil.WithConn("delete_position", func() (struct{}, error) {
		_, err := s.db.Exec(`DELETE FROM positions WHERE model_id = ? AND symbol = ? AND position_side = ?`,
			modelID, symbol, string(side))
		return struct{}{}, err
	})
	return err
}

// ---- Trades ----

func (s *RelationalStore) AppendTrade(t domain.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	_, err := dbutil.WithConn("append_trade", func() (struct{}, error) {
		_, err := s.db.Exec(`INSERT INTO trades (id, model_id, symbol, signal, quantity, price, leverage, side, pnl, fee, ts)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.ModelID, t.Symbol, string(t.Signal), t.Quantity, t.Price, t.Leverage, string(t.Side), t.PnL, t.Fee, t.Timestamp)
		return struct{}{}, err
	})
	return err
}

func (s *RelationalStore) RealizedPnL(modelID string) (float64, error) {
	return dbutil.WithConn("realized_pnl", func() (float64, error) {
		var total sql.NullFloat64
		err := s.db.QueryRow(`SELECT SUM(pnl) FROM trades WHERE model_id = ?`, modelID).Scan(&total)
		if err != nil {
			return 0, err
		}
		return total.Float64, nil
	})
}

// ---- Conversations ----

func (s *RelationalStore) AppendConversation(c domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := dbutil.WithConn("append_conversation", func() (struct{}, error) {
		_, err := s.db.Exec(`INSERT INTO conversations (id, model_id, user_prompt, ai_response, cot_trace, tokens, type, ts)
			VALUES (?,?,?,?,?,?,?,?)`,
			c.ID, c.ModelID, c.UserPrompt, c.AIResponse, c.CoTTrace, c.Tokens, string(c.Type), c.Timestamp)
		return struct{}{}, err
	})
	return err
}

// ---- AccountValueHistory ----

func (s *RelationalStore) AppendAccountValue(v domain.AccountValue) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	_, err := dbutil.WithConn("append_account_value", func() (struct{}, error) {
		_, err := s.db.Exec(`INSERT INTO account_value_history
			(model_id, balance, available_balance, cross_wallet_balance, cross_un_pnl, account_alias, ts)
			VALUES (?,?,?,?,?,?,?)`,
			v.ModelID, v.Balance, v.AvailableBalance, v.CrossWalletBalance, v.CrossUnPnL, v.AccountAlias, v.Timestamp)
		return struct{}{}, err
	})
	return err
}

