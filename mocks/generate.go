package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/tempo-trading/pkg/marketdata Provider
//go:generate mockgen -destination=./mock_feed.go -package=mocks github.com/rxtech-lab/tempo-trading/internal/feed Feed
