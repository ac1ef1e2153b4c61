package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"refcache-api/internal/model"
)

// symbolRecord is the permitted subset of a provider symbol-list entry.
type symbolRecord struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	IexID    string `json:"iexId"`
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

func (r symbolRecord) toModel() (*model.Symbols, error) {
	s := &model.Symbols{
		IexId:    strings.TrimSpace(r.IexID),
		Symbol:   strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Name:     strings.TrimSpace(r.Name),
		Type:     strings.TrimSpace(r.Type),
		Region:   strings.ToUpper(strings.TrimSpace(r.Region)),
		Currency: strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
	if ex := strings.TrimSpace(r.Exchange); ex != "" {
		s.Exchange = sql.NullString{String: ex, Valid: true}
	}
	switch {
	case s.IexId == "":
		return nil, errors.New("missing iexId")
	case s.Symbol == "":
		return nil, errors.New("missing symbol")
	case s.Name == "":
		return nil, errors.New("missing name")
	case s.Type == "":
		return nil, errors.New("missing type")
	case len(s.Region) != 2:
		return nil, fmt.Errorf("region %q is not a 2-letter code", r.Region)
	case len(s.Currency) != 3:
		return nil, fmt.Errorf("currency %q is not a 3-letter code", r.Currency)
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", r.Date, err)
	}
	s.Date = d
	return s, nil
}

// figiFields maps provider keys to cross-reference columns. Keys not listed are ignored.
var figiFields = []struct {
	key    string
	assign func(f *model.Figis, v string)
}{
	{"figi", func(f *model.Figis, v string) { f.Figi = v }},
	{"name", func(f *model.Figis, v string) { f.Name = v }},
	{"ticker", func(f *model.Figis, v string) { f.Ticker = v }},
	{"uniqueID", func(f *model.Figis, v string) { f.UniqueId = v }},
	{"exchCode", func(f *model.Figis, v string) { f.ExchCode = sql.NullString{String: v, Valid: v != ""} }},
}

func figiFromRecord(rec map[string]any) (*model.Figis, error) {
	f := &model.Figis{}
	for _, field := range figiFields {
		if v, ok := rec[field.key].(string); ok {
			field.assign(f, strings.TrimSpace(v))
		}
	}
	switch {
	case f.Figi == "":
		return nil, errors.New("missing figi")
	case f.Name == "":
		return nil, errors.New("missing name")
	case f.Ticker == "":
		return nil, errors.New("missing ticker")
	case f.UniqueId == "":
		return nil, errors.New("missing uniqueID")
	}
	return f, nil
}
