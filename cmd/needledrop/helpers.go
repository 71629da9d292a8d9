package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/quietgrove/needledrop/internal/common"
	"github.com/quietgrove/needledrop/internal/config"
	"github.com/quietgrove/needledrop/internal/discogs"
	"github.com/quietgrove/needledrop/internal/marketdata"
	"github.com/quietgrove/needledrop/internal/model"
	"github.com/quietgrove/needledrop/internal/service"
	"github.com/quietgrove/needledrop/internal/storage"
)

// initStorage opens the sqlite database and brings the schema current.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initMarketplace builds the Discogs client from config.
func initMarketplace() (service.Marketplace, error) {
	return discogs.NewClient(discogs.Config{
		Token:     viper.GetString("discogs.token"),
		Username:  viper.GetString("discogs.username"),
		UserAgent: viper.GetString("discogs.user_agent"),
		BaseURL:   viper.GetString("discogs.base_url"),
	})
}

// initMarketData builds the statistics provider. Offline mode swaps in the
// deterministic static provider, which answers nothing; every listing then
// surfaces as a flagged "no market statistics" item rather than an API call.
func initMarketData(offline bool) (service.MarketData, error) {
	if offline {
		return marketdata.NewStaticProvider(nil), nil
	}
	return marketdata.NewProvider(marketdata.Config{
		BaseURL: viper.GetString("marketdata.base_url"),
		APIKey:  viper.GetString("marketdata.api_key"),
	})
}

// resolveStrategy loads the named strategy, or the active one when name is
// empty.
func resolveStrategy(ctx context.Context, store service.Storage, name string) (*model.Strategy, error) {
	if name != "" {
		return store.GetStrategy(ctx, name)
	}

	strategy, err := store.GetActiveStrategy(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(
			"no active strategy; create one with 'needledrop strategies create <name> --activate'", err)
	}
	return strategy, err
}
