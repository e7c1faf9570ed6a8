package market

import (
	"github.com/shopspring/decimal"

	"github.com/neuracoin/ledger-engine/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Fallback returns the static quotes served when the upstream is unavailable.
func Fallback() []model.Asset {
	return []model.Asset{
		{
			ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin",
			Image:                 "https://assets.coingecko.com/coins/images/1/large/bitcoin.png",
			CurrentPrice:          dec("43750.21"),
			PriceChange24hPercent: dec("2.94"),
			MarketCap:             dec("857234000000"),
			Volume:                dec("23450000000"),
		},
		{
			ID: "ethereum", Symbol: "ETH", Name: "Ethereum",
			Image:                 "https://assets.coingecko.com/coins/images/279/large/ethereum.png",
			CurrentPrice:          dec("2580.75"),
			PriceChange24hPercent: dec("-1.19"),
			MarketCap:             dec("310450000000"),
			Volume:                dec("15670000000"),
		},
		{
			ID: "binancecoin", Symbol: "BNB", Name: "BNB",
			Image:                 "https://assets.coingecko.com/coins/images/825/large/bnb-icon2_2x.png",
			CurrentPrice:          dec("315.42"),
			PriceChange24hPercent: dec("2.65"),
			MarketCap:             dec("47234000000"),
			Volume:                dec("890000000"),
		},
		{
			ID: "cardano", Symbol: "ADA", Name: "Cardano",
			Image:                 "https://assets.coingecko.com/coins/images/975/large/cardano.png",
			CurrentPrice:          dec("0.45"),
			PriceChange24hPercent: dec("4.65"),
			MarketCap:             dec("16000000000"),
			Volume:                dec("450000000"),
		},
		{
			ID: "solana", Symbol: "SOL", Name: "Solana",
			Image:                 "https://assets.coingecko.com/coins/images/4128/large/solana.png",
			CurrentPrice:          dec("95.82"),
			PriceChange24hPercent: dec("4.04"),
			MarketCap:             dec("45000000000"),
			Volume:                dec("2100000000"),
		},
	}
}
