package logic

import (
	"time"

	"refcache-api/internal/model"
	"refcache-api/internal/types"
)

func toSymbol(s *model.Symbols) types.Symbol {
	return types.Symbol{
		IexId:    s.IexId,
		Symbol:   s.Symbol,
		Exchange: s.Exchange.String,
		Name:     s.Name,
		Date:     formatDate(s.Date),
		Type:     s.Type,
		Region:   s.Region,
		Currency: s.Currency,
	}
}

func toSymbols(in []*model.Symbols) []types.Symbol {
	out := make([]types.Symbol, 0, len(in))
	for _, s := range in {
		out = append(out, toSymbol(s))
	}
	return out
}

func toFigis(in []*model.Figis) []types.Figi {
	out := make([]types.Figi, 0, len(in))
	for _, f := range in {
		out = append(out, types.Figi{
			Figi:     f.Figi,
			Name:     f.Name,
			Ticker:   f.Ticker,
			UniqueId: f.UniqueId,
			ExchCode: f.ExchCode.String,
		})
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
